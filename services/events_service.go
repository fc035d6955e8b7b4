package services

import (
	"fmt"
	"log"
	"strconv"

	"city-conquest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// eventPrinter formats inhabitant counts with digit grouping for feed
// messages ("gained 1,200 inhabitants").
var eventPrinter = message.NewPrinter(language.English)

// EventsService writes the append-only global event feed. An event row is
// durable before the triggering operation returns; rows are never updated
// or deleted.
type EventsService struct {
	DB    *gorm.DB
	Stats *StatsService
}

func NewEventsService(db *gorm.DB) *EventsService {
	return &EventsService{DB: db, Stats: NewStatsService(db)}
}

// Append writes one event. cityID/countryID may be nil for events that do
// not reference them.
func (s *EventsService) Append(seasonID, eventType, userID string, cityID, countryID *string, msg string) error {
	event := models.GlobalEvent{
		ID:        uuid.NewString(),
		SeasonID:  seasonID,
		EventType: eventType,
		UserID:    userID,
		CityID:    cityID,
		CountryID: countryID,
		Message:   msg,
	}
	if err := s.DB.Create(&event).Error; err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

// RecordCountryConquestIfComplete checks whether userID now owns every city
// of cityID's country in the season; if so it bumps the player's
// conquered-countries counter and appends a country_conquered event. The
// existence check on the event keeps the bump idempotent per
// (player, country, season).
func (s *EventsService) RecordCountryConquestIfComplete(seasonID, userID, cityID string) error {
	var city models.City
	if err := s.DB.Preload("Country").First(&city, "id = ?", cityID).Error; err != nil {
		return fmt.Errorf("load city %s: %w", cityID, err)
	}

	var totalCities, ownedCities int64
	if err := s.DB.Model(&models.City{}).Where("country_id = ?", city.CountryID).Count(&totalCities).Error; err != nil {
		return err
	}
	if totalCities == 0 {
		return nil
	}
	err := s.DB.Model(&models.CityOwnership{}).
		Joins("JOIN cities ON cities.id = city_ownerships.city_id").
		Where("cities.country_id = ? AND city_ownerships.season_id = ? AND city_ownerships.owner_id = ?",
			city.CountryID, seasonID, userID).
		Count(&ownedCities).Error
	if err != nil {
		return err
	}
	if ownedCities < totalCities {
		return nil
	}

	var already int64
	err = s.DB.Model(&models.GlobalEvent{}).
		Where("season_id = ? AND user_id = ? AND country_id = ? AND event_type = ?",
			seasonID, userID, city.CountryID, models.EventCountryConquered).
		Count(&already).Error
	if err != nil {
		return err
	}
	if already > 0 {
		return nil
	}

	if err := s.Stats.IncrementConqueredCountries(userID); err != nil {
		return err
	}
	log.Printf("🌍 [EVENTS] %s conquered all of %s", userID, city.Country.Name)
	return s.Append(seasonID, models.EventCountryConquered, userID, nil, &city.CountryID,
		fmt.Sprintf("conquered all cities of %s", city.Country.Name))
}

// GetGlobalEvents returns the most recent events for a season.
func (s *EventsService) GetGlobalEvents(c *fiber.Ctx) error {
	seasonID := c.Query("season_id")
	if seasonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "season_id is required"})
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var events []models.GlobalEvent
	err := s.DB.Preload("User").Preload("City").
		Where("season_id = ?", seasonID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		log.Printf("❌ [EVENTS] failed to fetch events: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch events"})
	}
	return c.JSON(events)
}
