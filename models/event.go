package models

import "time"

// Event types form a fixed set; each event carries only the references it
// needs (city for purchases/conquests, country for country conquests).
const (
	EventCityPurchased    = "city_purchased"
	EventCityConquered    = "city_conquered"
	EventCountryConquered = "country_conquered"
	EventInvasionStarted  = "invasion_started"
)

// GlobalEvent is an append-only record of a domain occurrence, written by
// the core before an operation returns and consumed by the feed UI. Never
// mutated or deleted.
type GlobalEvent struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	SeasonID  string    `json:"season_id" gorm:"not null;index"`
	EventType string    `json:"event_type" gorm:"type:varchar(32);not null"`
	UserID    string    `json:"user_id" gorm:"not null;index"`
	CityID    *string   `json:"city_id,omitempty"`
	CountryID *string   `json:"country_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`

	User Profile `json:"user,omitempty" gorm:"foreignKey:UserID"`
	City *City   `json:"city,omitempty" gorm:"foreignKey:CityID"`
}
