package services

import (
	"fmt"

	"city-conquest-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsService is the stats ledger: per-player aggregate counters mutated
// only through atomic increments/decrements. Decrements clamp at zero so a
// counter can never go negative regardless of operation ordering.
type StatsService struct {
	DB *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// EnsureProfile creates the profile row on first touch so increments never
// hit a missing row.
func (s *StatsService) EnsureProfile(userID string) error {
	profile := models.Profile{ID: userID, Username: userID}
	return s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&profile).Error
}

// IncrementUserStats adds to a player's city and inhabitant counters in a
// single UPDATE.
func (s *StatsService) IncrementUserStats(userID string, cities, inhabitants int64) error {
	if err := s.EnsureProfile(userID); err != nil {
		return fmt.Errorf("ensure profile %s: %w", userID, err)
	}
	res := s.DB.Model(&models.Profile{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"total_cities":      gorm.Expr("total_cities + ?", cities),
		"total_inhabitants": gorm.Expr("total_inhabitants + ?", inhabitants),
	})
	if res.Error != nil {
		return fmt.Errorf("increment stats for %s: %w", userID, res.Error)
	}
	return nil
}

// DecrementUserStats subtracts from a player's counters, clamping each at
// zero inside the UPDATE itself so concurrent decrements cannot drive a
// counter negative.
func (s *StatsService) DecrementUserStats(userID string, cities, inhabitants int64) error {
	if err := s.EnsureProfile(userID); err != nil {
		return fmt.Errorf("ensure profile %s: %w", userID, err)
	}
	res := s.DB.Model(&models.Profile{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"total_cities":      gorm.Expr("CASE WHEN total_cities - ? < 0 THEN 0 ELSE total_cities - ? END", cities, cities),
		"total_inhabitants": gorm.Expr("CASE WHEN total_inhabitants - ? < 0 THEN 0 ELSE total_inhabitants - ? END", inhabitants, inhabitants),
	})
	if res.Error != nil {
		return fmt.Errorf("decrement stats for %s: %w", userID, res.Error)
	}
	return nil
}

// IncrementConqueredCountries bumps the country counter by one.
func (s *StatsService) IncrementConqueredCountries(userID string) error {
	if err := s.EnsureProfile(userID); err != nil {
		return fmt.Errorf("ensure profile %s: %w", userID, err)
	}
	res := s.DB.Model(&models.Profile{}).Where("id = ?", userID).
		Update("conquered_countries", gorm.Expr("conquered_countries + 1"))
	if res.Error != nil {
		return fmt.Errorf("increment conquered countries for %s: %w", userID, res.Error)
	}
	return nil
}

// GetProfile returns a player's aggregate stats.
func (s *StatsService) GetProfile(userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.DB.First(&profile, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
