package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"city-conquest-system/models"
	"city-conquest-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SeasonService reads season reference data and handles season close:
// deactivation, winner selection and archiving the season's event log to R2.
type SeasonService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewSeasonService(db *gorm.DB) *SeasonService {
	return &SeasonService{DB: db, Now: time.Now}
}

// ActiveSeason returns the single active season, if any.
func (s *SeasonService) ActiveSeason() (*models.Season, error) {
	var season models.Season
	if err := s.DB.First(&season, "is_active = ?", true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSeason
		}
		return nil, err
	}
	return &season, nil
}

// CloseSeason deactivates the season, records the winner (highest total
// inhabitants; ties break on id ascending for determinism) and archives the
// season's events to object storage. Archive failure is logged but does not
// block the close — the events stay in the table either way.
func (s *SeasonService) CloseSeason(seasonID string) (*models.Season, error) {
	var season models.Season
	if err := s.DB.First(&season, "id = ?", seasonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}

	var winner models.Profile
	err := s.DB.Order("total_inhabitants DESC, id ASC").First(&winner).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	updates := map[string]interface{}{
		"is_active": false,
		"end_date":  s.Now(),
	}
	if winner.ID != "" {
		updates["winner_id"] = winner.ID
	}

	if archiveURL, archiveErr := s.archiveEvents(seasonID); archiveErr != nil {
		log.Printf("⚠️  [SEASON] event archive failed for %s: %v", seasonID, archiveErr)
	} else if archiveURL != "" {
		updates["archive_url"] = archiveURL
	}

	if err := s.DB.Model(&season).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("close season %s: %w", seasonID, err)
	}
	s.DB.First(&season, "id = ?", seasonID)
	winnerID := "none"
	if season.WinnerID != nil {
		winnerID = *season.WinnerID
	}
	log.Printf("🏁 [SEASON] %s closed, winner: %s", season.Name, winnerID)
	return &season, nil
}

// archiveEvents uploads the season's full event log as JSON. Returns "" when
// object storage is not configured.
func (s *SeasonService) archiveEvents(seasonID string) (string, error) {
	if !utils.R2Enabled() {
		return "", nil
	}
	var events []models.GlobalEvent
	if err := s.DB.Where("season_id = ?", seasonID).Order("created_at ASC").Find(&events).Error; err != nil {
		return "", err
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("seasons/%s/events-%s.json", seasonID, s.Now().UTC().Format("20060102T150405Z"))
	return utils.UploadBytesToR2(payload, key, "application/json")
}

// --- HTTP handlers ---

func (s *SeasonService) GetActiveSeason(c *fiber.Ctx) error {
	season, err := s.ActiveSeason()
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(season)
}

func (s *SeasonService) GetAllSeasons(c *fiber.Ctx) error {
	var seasons []models.Season
	if err := s.DB.Order("created_at DESC").Find(&seasons).Error; err != nil {
		log.Printf("❌ [SEASON] failed to fetch seasons: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch seasons"})
	}
	return c.JSON(seasons)
}

func (s *SeasonService) CloseSeasonHandler(c *fiber.Ctx) error {
	season, err := s.CloseSeason(c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(season)
}
