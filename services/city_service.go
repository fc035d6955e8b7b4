package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"city-conquest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Share of a city's real-world population granted as virtual inhabitants at
// first purchase.
const purchaseInhabitantShare = 0.1

// CityService covers the purchase path and the read-only city projections
// used by the map.
type CityService struct {
	DB     *gorm.DB
	Events *EventsService
	Stats  *StatsService

	Now func() time.Time
}

func NewCityService(db *gorm.DB) *CityService {
	return &CityService{
		DB:     db,
		Events: NewEventsService(db),
		Stats:  NewStatsService(db),
		Now:    time.Now,
	}
}

// PurchaseCity creates the ownership row for an unowned city: inhabitants
// start at 10% of the city's real population, level 1, no shield. The
// buyer's ledger and the event feed are updated before returning.
func (s *CityService) PurchaseCity(cityID, seasonID, userID string) (*models.CityOwnership, error) {
	var season models.Season
	if err := s.DB.First(&season, "id = ? AND is_active = ?", seasonID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSeason
		}
		return nil, err
	}

	var city models.City
	if err := s.DB.First(&city, "id = ?", cityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCityNotFound
		}
		return nil, err
	}

	var existing int64
	err := s.DB.Model(&models.CityOwnership{}).
		Where("city_id = ? AND season_id = ?", cityID, seasonID).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrCityAlreadyOwned
	}

	inhabitants := int64(float64(city.RealPopulation) * purchaseInhabitantShare)
	ownership := models.CityOwnership{
		ID:                 uuid.NewString(),
		CityID:             cityID,
		SeasonID:           seasonID,
		OwnerID:            userID,
		VirtualInhabitants: inhabitants,
		CityLevel:          1,
		PurchasedAt:        s.Now(),
	}
	// The unique (city_id, season_id) index backstops the existence check
	// above when two buyers race.
	if err := s.DB.Create(&ownership).Error; err != nil {
		return nil, fmt.Errorf("create ownership: %w", err)
	}

	if err := s.Stats.IncrementUserStats(userID, 1, inhabitants); err != nil {
		return &ownership, fmt.Errorf("ownership created but buyer stats not applied: %w", err)
	}

	log.Printf("💰 [PURCHASE] %s bought %s (%d inhabitants)", userID, city.Name, inhabitants)
	if err := s.Events.Append(seasonID, models.EventCityPurchased, userID, &cityID, nil,
		eventPrinter.Sprintf("purchased %s (%d inhabitants)", city.Name, inhabitants)); err != nil {
		return &ownership, err
	}
	if err := s.Events.RecordCountryConquestIfComplete(seasonID, userID, cityID); err != nil {
		return &ownership, err
	}
	return &ownership, nil
}

// GetCities lists every city with its country and any ownership rows.
func (s *CityService) GetCities(c *fiber.Ctx) error {
	var cities []models.City
	err := s.DB.Preload("Country").
		Preload("Ownership.Owner").
		Order("name").
		Find(&cities).Error
	if err != nil {
		log.Printf("❌ [CITIES] failed to fetch cities: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch cities"})
	}
	return c.JSON(cities)
}

// GetAvailableCities lists cities without an owner in the given season.
func (s *CityService) GetAvailableCities(c *fiber.Ctx) error {
	seasonID := c.Query("season_id")
	if seasonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "season_id is required"})
	}
	var cities []models.City
	err := s.DB.Preload("Country").
		Where("id NOT IN (?)", s.DB.Model(&models.CityOwnership{}).
			Select("city_id").Where("season_id = ?", seasonID)).
		Order("name").
		Find(&cities).Error
	if err != nil {
		log.Printf("❌ [CITIES] failed to fetch available cities: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch available cities"})
	}
	return c.JSON(cities)
}

// GetUserCities lists the cities a player owns in a season.
func (s *CityService) GetUserCities(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	seasonID := c.Query("season_id")
	if seasonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "season_id is required"})
	}
	var ownerships []models.CityOwnership
	err := s.DB.Preload("City.Country").
		Where("owner_id = ? AND season_id = ?", userID, seasonID).
		Find(&ownerships).Error
	if err != nil {
		log.Printf("❌ [CITIES] failed to fetch user cities: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch user cities"})
	}
	return c.JSON(ownerships)
}

// GetCityByID returns one city with country and ownership.
func (s *CityService) GetCityByID(c *fiber.Ctx) error {
	var city models.City
	err := s.DB.Preload("Country").
		Preload("Ownership.Owner").
		First(&city, "id = ? OR slug = ?", c.Params("id"), c.Params("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, ErrCityNotFound)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch city"})
	}
	return c.JSON(city)
}

// PurchaseCityHandler wires PurchaseCity to the HTTP surface.
func (s *CityService) PurchaseCityHandler(c *fiber.Ctx) error {
	var body struct {
		SeasonID string `json:"season_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.SeasonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "season_id is required"})
	}
	userID, _ := c.Locals("user_id").(string)

	ownership, err := s.PurchaseCity(c.Params("id"), body.SeasonID, userID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ownership)
}
