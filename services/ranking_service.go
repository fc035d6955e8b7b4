package services

import (
	"log"
	"strconv"

	"city-conquest-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RankingService serves the leaderboard projections. Every ordering carries
// a secondary total_inhabitants sort and a final id tiebreak so rankings are
// deterministic.
type RankingService struct {
	DB *gorm.DB
}

func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{DB: db}
}

type RankingEntry struct {
	models.Profile
	Rank int `json:"rank"`
}

func (s *RankingService) top(order string, limit int) ([]RankingEntry, error) {
	var profiles []models.Profile
	err := s.DB.Order(order).Limit(limit).Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	entries := make([]RankingEntry, len(profiles))
	for i, p := range profiles {
		entries[i] = RankingEntry{Profile: p, Rank: i + 1}
	}
	return entries, nil
}

func (s *RankingService) TopByInhabitants(limit int) ([]RankingEntry, error) {
	return s.top("total_inhabitants DESC, id ASC", limit)
}

func (s *RankingService) TopByCities(limit int) ([]RankingEntry, error) {
	return s.top("total_cities DESC, total_inhabitants DESC, id ASC", limit)
}

func (s *RankingService) TopByCountries(limit int) ([]RankingEntry, error) {
	return s.top("conquered_countries DESC, total_inhabitants DESC, id ASC", limit)
}

// UserRank returns a player's 1-based position in each of the three boards.
func (s *RankingService) UserRank(userID string) (map[string]int64, error) {
	var me models.Profile
	if err := s.DB.First(&me, "id = ?", userID).Error; err != nil {
		return nil, err
	}

	ranks := map[string]int64{}
	boards := []struct {
		name   string
		column string
		value  int64
	}{
		{"by_inhabitants", "total_inhabitants", me.TotalInhabitants},
		{"by_cities", "total_cities", me.TotalCities},
		{"by_countries", "conquered_countries", me.ConqueredCountries},
	}
	// Mirrors the board ordering: primary column, then total_inhabitants,
	// then id ascending.
	for _, b := range boards {
		var ahead int64
		err := s.DB.Model(&models.Profile{}).
			Where(b.column+" > ? OR ("+b.column+" = ? AND (total_inhabitants > ? OR (total_inhabitants = ? AND id < ?)))",
				b.value, b.value, me.TotalInhabitants, me.TotalInhabitants, userID).
			Count(&ahead).Error
		if err != nil {
			return nil, err
		}
		ranks[b.name] = ahead + 1
	}
	return ranks, nil
}

// --- HTTP handlers ---

func (s *RankingService) topHandler(c *fiber.Ctx, fetch func(int) ([]RankingEntry, error)) error {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	entries, err := fetch(limit)
	if err != nil {
		log.Printf("❌ [RANKING] failed to fetch leaderboard: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch leaderboard"})
	}
	return c.JSON(entries)
}

func (s *RankingService) GetTopByInhabitants(c *fiber.Ctx) error {
	return s.topHandler(c, s.TopByInhabitants)
}

func (s *RankingService) GetTopByCities(c *fiber.Ctx) error {
	return s.topHandler(c, s.TopByCities)
}

func (s *RankingService) GetTopByCountries(c *fiber.Ctx) error {
	return s.topHandler(c, s.TopByCountries)
}

func (s *RankingService) GetUserRank(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	ranks, err := s.UserRank(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
	}
	return c.JSON(ranks)
}
