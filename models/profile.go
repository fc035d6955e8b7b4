package models

import "time"

// Profile is the per-player stats aggregate. The three counters are mutated
// only through StatsService increments/decrements and never go negative.
type Profile struct {
	ID                 string    `json:"id" gorm:"primaryKey"`
	Username           string    `json:"username" gorm:"uniqueIndex"`
	DisplayName        string    `json:"display_name"`
	AvatarURL          string    `json:"avatar_url,omitempty"`
	TotalCities        int64     `json:"total_cities" gorm:"default:0"`
	TotalInhabitants   int64     `json:"total_inhabitants" gorm:"default:0"`
	ConqueredCountries int64     `json:"conquered_countries" gorm:"default:0"`
	CreatedAt          time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
