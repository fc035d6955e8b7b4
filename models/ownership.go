package models

import "time"

// CityOwnership is the mutable city↔season relationship: who holds the city,
// its virtual inhabitants, level and shield. At most one row exists per
// (city, season); created on purchase, mutated only by TransferCity, never
// deleted within a season.
type CityOwnership struct {
	ID                 string     `json:"id" gorm:"primaryKey"`
	CityID             string     `json:"city_id" gorm:"not null;uniqueIndex:idx_city_season"`
	SeasonID           string     `json:"season_id" gorm:"not null;uniqueIndex:idx_city_season"`
	OwnerID            string     `json:"owner_id" gorm:"not null;index"`
	VirtualInhabitants int64      `json:"virtual_inhabitants" gorm:"not null;default:0"`
	CityLevel          int        `json:"city_level" gorm:"default:1"`
	PurchasedAt        time.Time  `json:"purchased_at" gorm:"autoCreateTime"`
	ShieldUntil        *time.Time `json:"shield_until,omitempty"`
	LastAttackedAt     *time.Time `json:"last_attacked_at,omitempty"`

	City  City    `json:"city,omitempty" gorm:"foreignKey:CityID"`
	Owner Profile `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}

// HasShield reports whether the city is immune to invasion at the given time.
func (o *CityOwnership) HasShield(at time.Time) bool {
	return o.ShieldUntil != nil && o.ShieldUntil.After(at)
}
