package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coffee-timer/internal/model"
)

// Snapshot is the committed content of the store file.
type Snapshot struct {
	Records  []model.TimerRecord
	Settings map[string]string
}

// Changeset is one unit of work. Apply writes it atomically.
type Changeset struct {
	Upserts  []model.TimerRecord
	Deletes  []string
	Settings map[string]string
}

// Empty reports whether the changeset carries no writes.
func (c Changeset) Empty() bool {
	return len(c.Upserts) == 0 && len(c.Deletes) == 0 && len(c.Settings) == 0
}

// TimerRepository persists timer presets and settings.
type TimerRepository struct {
	db *gorm.DB
}

func NewTimerRepository(db *gorm.DB) *TimerRepository {
	return &TimerRepository{db: db}
}

// Load reads every record in presentation order along with all settings.
func (r *TimerRepository) Load(ctx context.Context) (Snapshot, error) {
	db := r.db.WithContext(ctx)

	var records []model.TimerRecord
	if err := db.Order("category ASC, display_order ASC, created_at ASC").Find(&records).Error; err != nil {
		return Snapshot{}, fmt.Errorf("load timers: %w", err)
	}

	var settings []model.Setting
	if err := db.Find(&settings).Error; err != nil {
		return Snapshot{}, fmt.Errorf("load settings: %w", err)
	}

	out := Snapshot{
		Records:  records,
		Settings: make(map[string]string, len(settings)),
	}
	for _, s := range settings {
		out.Settings[s.Key] = s.Value
	}
	return out, nil
}

// Apply writes the changeset in a single transaction.
func (r *TimerRepository) Apply(ctx context.Context, changes Changeset) error {
	if changes.Empty() {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range changes.Upserts {
			rec := changes.Upserts[i]
			if err := tx.Save(&rec).Error; err != nil {
				return fmt.Errorf("save timer %s: %w", rec.ID, err)
			}
		}
		if len(changes.Deletes) > 0 {
			if err := tx.Where("id IN ?", changes.Deletes).Delete(&model.TimerRecord{}).Error; err != nil {
				return fmt.Errorf("delete timers: %w", err)
			}
		}
		for key, value := range changes.Settings {
			setting := model.Setting{Key: key, Value: value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&setting).Error
			if err != nil {
				return fmt.Errorf("save setting %s: %w", key, err)
			}
		}
		return nil
	})
}
