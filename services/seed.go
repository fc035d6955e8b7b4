package services

import (
	"fmt"
	"log"
	"time"

	"city-conquest-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type seedCity struct {
	name       string
	country    string
	lat, lon   float64
	population int64
	price      float64
	cityType   string
	rarity     string
}

var seedCountries = []models.Country{
	{ID: "es", Name: "Spain", Code: "ES", Continent: "Europe"},
	{ID: "fr", Name: "France", Code: "FR", Continent: "Europe"},
	{ID: "jp", Name: "Japan", Code: "JP", Continent: "Asia"},
	{ID: "br", Name: "Brazil", Code: "BR", Continent: "South America"},
}

var seedCities = []seedCity{
	{"Madrid", "es", 40.4168, -3.7038, 3300000, 5000, "capital", "legendary"},
	{"Barcelona", "es", 41.3874, 2.1686, 1620000, 3500, "port", "epic"},
	{"Sevilla", "es", 37.3891, -5.9845, 688000, 1500, "normal", "rare"},
	{"Paris", "fr", 48.8566, 2.3522, 2100000, 5000, "capital", "legendary"},
	{"Marseille", "fr", 43.2965, 5.3698, 870000, 2000, "port", "epic"},
	{"Lyon", "fr", 45.764, 4.8357, 520000, 1200, "normal", "rare"},
	{"Tokyo", "jp", 35.6762, 139.6503, 13960000, 8000, "capital", "legendary"},
	{"Osaka", "jp", 34.6937, 135.5023, 2750000, 4000, "port", "epic"},
	{"Sapporo", "jp", 43.0618, 141.3545, 1970000, 2500, "island", "rare"},
	{"São Paulo", "br", -23.5505, -46.6333, 12330000, 7000, "normal", "legendary"},
	{"Rio de Janeiro", "br", -22.9068, -43.1729, 6750000, 5500, "port", "epic"},
	{"Salvador", "br", -12.9714, -38.5014, 2900000, 2500, "port", "rare"},
}

// SeedReferenceData loads the static country/city tables on first boot and
// ensures an active season exists. Idempotent: it only writes when the
// tables are empty.
func SeedReferenceData(db *gorm.DB) error {
	var cityCount int64
	if err := db.Model(&models.City{}).Count(&cityCount).Error; err != nil {
		return fmt.Errorf("count cities: %w", err)
	}
	if cityCount == 0 {
		perCountry := map[string]int{}
		for _, c := range seedCities {
			perCountry[c.country]++
		}
		for _, country := range seedCountries {
			country.TotalCities = perCountry[country.ID]
			if err := db.Create(&country).Error; err != nil {
				return fmt.Errorf("seed country %s: %w", country.Name, err)
			}
		}
		for _, c := range seedCities {
			city := models.City{
				ID:             uuid.NewString(),
				Name:           c.name,
				Slug:           slug.Make(c.name),
				CountryID:      c.country,
				Latitude:       c.lat,
				Longitude:      c.lon,
				RealPopulation: c.population,
				BasePrice:      c.price,
				CityType:       c.cityType,
				Rarity:         c.rarity,
			}
			if err := db.Create(&city).Error; err != nil {
				return fmt.Errorf("seed city %s: %w", c.name, err)
			}
		}
		log.Printf("🌱 [SEED] loaded %d countries and %d cities", len(seedCountries), len(seedCities))
	}

	var seasonCount int64
	if err := db.Model(&models.Season{}).Where("is_active = ?", true).Count(&seasonCount).Error; err != nil {
		return fmt.Errorf("count seasons: %w", err)
	}
	if seasonCount == 0 {
		season := models.Season{
			ID:        uuid.NewString(),
			Name:      "Season 1",
			StartDate: time.Now(),
			EndDate:   time.Now().AddDate(0, 3, 0),
			IsActive:  true,
		}
		if err := db.Create(&season).Error; err != nil {
			return fmt.Errorf("seed season: %w", err)
		}
		log.Printf("🌱 [SEED] created active season %s", season.Name)
	}
	return nil
}
