package model

import "time"

// SettingHasSeeded marks that the built-in presets were loaded once.
const SettingHasSeeded = "has_seeded"

// Setting is a persisted key/value flag stored next to the timers.
type Setting struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string
	UpdatedAt time.Time
}
