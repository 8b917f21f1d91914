// Package bootstrap seeds the built-in presets on first launch.
package bootstrap

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log"

	"gopkg.in/yaml.v3"

	"coffee-timer/internal/model"
	"coffee-timer/internal/store"
)

//go:embed presets.yaml
var defaultPresets []byte

// Preset is one entry of a preset file.
type Preset struct {
	Name            string         `yaml:"name"`
	DurationSeconds int            `yaml:"duration_seconds"`
	Category        model.Category `yaml:"category"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// DefaultPresets returns the built-in seed data.
func DefaultPresets() ([]Preset, error) {
	return ParsePresets(defaultPresets)
}

// ParsePresets decodes a preset YAML document.
func ParsePresets(data []byte) ([]Preset, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse presets yaml: %w", err)
	}
	for i, p := range file.Presets {
		if p.DurationSeconds <= 0 {
			return nil, fmt.Errorf("preset %d (%q): duration must be positive", i, p.Name)
		}
	}
	return file.Presets, nil
}

// Loader seeds a store exactly once per install.
type Loader struct {
	store   *store.Store
	presets []Preset
}

func NewLoader(s *store.Store, presets []Preset) *Loader {
	return &Loader{store: s, presets: presets}
}

// Run inserts the presets and the seeded flag in one commit. It reports
// whether seeding happened. Once the flag is set, even if only pending,
// Run does nothing.
func (l *Loader) Run(ctx context.Context) (bool, error) {
	if v, ok := l.store.Setting(model.SettingHasSeeded); ok && v == "true" {
		if l.store.Pending() {
			if err := l.store.Commit(ctx); err != nil {
				return false, fmt.Errorf("commit seed: %w", err)
			}
		}
		return false, nil
	}

	for _, p := range l.presets {
		if _, err := l.store.Create(store.Draft{
			Name:            p.Name,
			DurationSeconds: p.DurationSeconds,
			Category:        p.Category,
		}); err != nil {
			return false, fmt.Errorf("seed %q: %w", p.Name, err)
		}
	}
	if err := l.store.SetSetting(model.SettingHasSeeded, "true"); err != nil {
		return false, err
	}
	if err := l.store.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}

	log.Printf("[info] seeded %d default timers", len(l.presets))
	return true, nil
}

// Export writes the current presets, in list order, as a preset document.
func Export(w io.Writer, s *store.Store) error {
	var file presetFile
	for _, cat := range model.Categories() {
		for _, rec := range s.Records(cat) {
			file.Presets = append(file.Presets, Preset{
				Name:            rec.Name,
				DurationSeconds: rec.DurationSeconds,
				Category:        rec.Category,
			})
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("encode presets yaml: %w", err)
	}
	return enc.Close()
}
