package models

import "time"

// Invasion statuses. All states other than pending are terminal.
const (
	InvasionPending     = "pending"
	InvasionWonAttacker = "won_attacker"
	InvasionWonDefender = "won_defender"
	InvasionCancelled   = "cancelled"
)

// Invasion is a contested ownership transition. Power values and the
// conquest index are frozen at creation and never recomputed; at most one
// pending invasion exists per (city, season).
type Invasion struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	CityID        string     `json:"city_id" gorm:"not null;index"`
	SeasonID      string     `json:"season_id" gorm:"not null;index"`
	AttackerID    string     `json:"attacker_id" gorm:"not null;index"`
	DefenderID    string     `json:"defender_id" gorm:"not null;index"`
	AttackerPower int64      `json:"attacker_power"`
	DefenderPower int64      `json:"defender_power"`
	ConquestIndex float64    `json:"conquest_index"`
	Status        string     `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	StartedAt     time.Time  `json:"started_at" gorm:"autoCreateTime"`
	EndsAt        time.Time  `json:"ends_at" gorm:"index"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`

	City     City    `json:"city,omitempty" gorm:"foreignKey:CityID"`
	Attacker Profile `json:"attacker,omitempty" gorm:"foreignKey:AttackerID"`
	Defender Profile `json:"defender,omitempty" gorm:"foreignKey:DefenderID"`
}
