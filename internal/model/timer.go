package model

import (
	"fmt"
	"time"
)

// TimerRecord is one brew preset.
type TimerRecord struct {
	ID              string   `gorm:"primaryKey;size:36"`
	Name            string   `gorm:"not null;default:''"`
	DurationSeconds int      `gorm:"not null"`
	Category        Category `gorm:"not null;index:idx_timer_order,priority:1"`
	DisplayOrder    int      `gorm:"not null;index:idx_timer_order,priority:2"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName keeps the table name stable across struct renames.
func (TimerRecord) TableName() string {
	return "timer_records"
}

// Duration returns the brew time as a time.Duration.
func (t TimerRecord) Duration() time.Duration {
	return time.Duration(t.DurationSeconds) * time.Second
}

// DurationText renders the duration as m:ss.
func (t TimerRecord) DurationText() string {
	return FormatSeconds(t.DurationSeconds)
}

// FormatSeconds renders a second count as m:ss.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
