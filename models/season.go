package models

import "time"

// Season is a bounded competitive epoch. At most one season is active at a
// time; all ownership and invasion rows are scoped to exactly one season.
type Season struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	IsActive    bool      `json:"is_active" gorm:"default:false;index"`
	WinnerID    *string   `json:"winner_id,omitempty"`
	PrizeAmount float64   `json:"prize_amount" gorm:"default:0"`
	ArchiveURL  string    `json:"archive_url,omitempty"` // set when the event log is archived on close
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}
