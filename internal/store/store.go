// Package store keeps the canonical collection of timer presets, tracks
// uncommitted changes and notifies observers about every mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"coffee-timer/internal/model"
	"coffee-timer/internal/repository"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrPersistence   = errors.New("store: persistence failed")
	ErrInvalidRecord = errors.New("store: invalid record")
	ErrNotDraft      = errors.New("store: record is not a draft")
)

// Persister loads committed state and writes changesets atomically.
type Persister interface {
	Load(ctx context.Context) (repository.Snapshot, error)
	Apply(ctx context.Context, changes repository.Changeset) error
}

// Draft describes a record the user is about to create.
type Draft struct {
	Name            string
	DurationSeconds int
	Category        model.Category
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name            *string
	DurationSeconds *int
	Category        *model.Category
	DisplayOrder    *int
}

type entry struct {
	rec       model.TimerRecord
	seq       uint64
	committed bool
}

// Store is the single source of truth for timer presets. It is not safe for
// concurrent use; all calls are expected from the presentation goroutine.
type Store struct {
	persister Persister
	bridge    *Bridge
	now       func() time.Time
	newID     func() string

	records map[string]*entry
	seq     uint64

	dirty   map[string]struct{}
	deleted map[string]struct{}

	settings        map[string]string
	pendingSettings map[string]string
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides record id allocation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// Open loads the committed state from p.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	if p == nil {
		return nil, errors.New("store: nil persister")
	}
	s := &Store{
		persister:       p,
		bridge:          NewBridge(),
		now:             time.Now,
		newID:           uuid.NewString,
		records:         make(map[string]*entry),
		dirty:           make(map[string]struct{}),
		deleted:         make(map[string]struct{}),
		settings:        make(map[string]string),
		pendingSettings: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	for _, rec := range snap.Records {
		s.seq++
		s.records[rec.ID] = &entry{rec: rec, seq: s.seq, committed: true}
	}
	for k, v := range snap.Settings {
		s.settings[k] = v
	}
	return s, nil
}

// Subscribe registers an observer on the notification bridge.
func (s *Store) Subscribe(o Observer) func() {
	return s.bridge.Subscribe(o)
}

// Create inserts a draft record at the end of its category. Nothing is
// written until Commit; an abandoned draft is dropped with Discard.
func (s *Store) Create(d Draft) (string, error) {
	if !d.Category.IsValid() {
		return "", fmt.Errorf("%w: category %d", ErrInvalidRecord, int(d.Category))
	}
	if d.DurationSeconds <= 0 {
		return "", fmt.Errorf("%w: duration must be positive", ErrInvalidRecord)
	}

	id := s.newID()
	if _, exists := s.records[id]; exists {
		return "", fmt.Errorf("%w: duplicate id %s", ErrInvalidRecord, id)
	}

	now := s.now().UTC()
	order := s.Count(d.Category)
	s.seq++
	s.records[id] = &entry{
		rec: model.TimerRecord{
			ID:              id,
			Name:            d.Name,
			DurationSeconds: d.DurationSeconds,
			Category:        d.Category,
			DisplayOrder:    order,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		seq: s.seq,
	}
	s.dirty[id] = struct{}{}

	if order == 0 {
		s.bridge.Publish(SectionsChanged{Category: d.Category, Present: true})
	}
	s.bridge.Publish(Inserted{Category: d.Category, Index: s.indexOf(id), ID: id})
	return id, nil
}

// Discard drops a draft that was never committed.
func (s *Store) Discard(id string) error {
	e, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.committed {
		return fmt.Errorf("%w: %s", ErrNotDraft, id)
	}
	return s.Delete(id)
}

// IsDraft reports whether id exists and has never been committed.
func (s *Store) IsDraft(id string) bool {
	e, ok := s.records[id]
	return ok && !e.committed
}

// Update applies a partial update to the record.
func (s *Store) Update(id string, p Patch) error {
	e, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.DurationSeconds != nil && *p.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidRecord)
	}
	if p.Category != nil && !p.Category.IsValid() {
		return fmt.Errorf("%w: category %d", ErrInvalidRecord, int(*p.Category))
	}
	if p.DisplayOrder != nil && *p.DisplayOrder < 0 {
		return fmt.Errorf("%w: negative display order", ErrInvalidRecord)
	}

	oldCat := e.rec.Category
	oldIdx := s.indexOf(id)

	if p.Name != nil {
		e.rec.Name = *p.Name
	}
	if p.DurationSeconds != nil {
		e.rec.DurationSeconds = *p.DurationSeconds
	}
	if p.Category != nil {
		e.rec.Category = *p.Category
	}
	if p.DisplayOrder != nil {
		e.rec.DisplayOrder = *p.DisplayOrder
	}
	e.rec.UpdatedAt = s.now().UTC()
	s.dirty[id] = struct{}{}

	newCat := e.rec.Category
	newIdx := s.indexOf(id)
	switch {
	case newCat != oldCat:
		s.bridge.Publish(Removed{Category: oldCat, Index: oldIdx, ID: id})
		if s.Count(oldCat) == 0 {
			s.bridge.Publish(SectionsChanged{Category: oldCat, Present: false})
		}
		if s.Count(newCat) == 1 {
			s.bridge.Publish(SectionsChanged{Category: newCat, Present: true})
		}
		s.bridge.Publish(Inserted{Category: newCat, Index: newIdx, ID: id})
	case newIdx != oldIdx:
		s.bridge.Publish(Moved{Category: newCat, From: oldIdx, To: newIdx, ID: id})
	default:
		s.bridge.Publish(Updated{Category: newCat, Index: newIdx, ID: id})
	}
	return nil
}

// Delete removes a record. Remaining records keep their display order;
// gaps close on the next Reorder.
func (s *Store) Delete(id string) error {
	e, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cat := e.rec.Category
	idx := s.indexOf(id)

	delete(s.records, id)
	delete(s.dirty, id)
	if e.committed {
		s.deleted[id] = struct{}{}
	}

	s.bridge.Publish(Removed{Category: cat, Index: idx, ID: id})
	if s.Count(cat) == 0 {
		s.bridge.Publish(SectionsChanged{Category: cat, Present: false})
	}
	return nil
}

// Commit writes every pending mutation in one transaction. On failure the
// in-memory state and the pending set are kept so a later Commit can retry.
func (s *Store) Commit(ctx context.Context) error {
	changes := s.changeset()
	if changes.Empty() {
		return nil
	}
	if err := s.persister.Apply(ctx, changes); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	for id := range s.dirty {
		if e, ok := s.records[id]; ok {
			e.committed = true
		}
	}
	for k, v := range s.pendingSettings {
		s.settings[k] = v
	}
	s.dirty = make(map[string]struct{})
	s.deleted = make(map[string]struct{})
	s.pendingSettings = make(map[string]string)
	return nil
}

// Pending reports whether there are uncommitted mutations.
func (s *Store) Pending() bool {
	return len(s.dirty) > 0 || len(s.deleted) > 0 || len(s.pendingSettings) > 0
}

func (s *Store) changeset() repository.Changeset {
	var out repository.Changeset
	if len(s.dirty) > 0 {
		ids := make([]string, 0, len(s.dirty))
		for id := range s.dirty {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return s.records[ids[i]].seq < s.records[ids[j]].seq })
		for _, id := range ids {
			out.Upserts = append(out.Upserts, s.records[id].rec)
		}
	}
	for id := range s.deleted {
		out.Deletes = append(out.Deletes, id)
	}
	sort.Strings(out.Deletes)
	if len(s.pendingSettings) > 0 {
		out.Settings = make(map[string]string, len(s.pendingSettings))
		for k, v := range s.pendingSettings {
			out.Settings[k] = v
		}
	}
	return out
}

// Get returns a copy of the record.
func (s *Store) Get(id string) (model.TimerRecord, error) {
	e, ok := s.records[id]
	if !ok {
		return model.TimerRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.rec, nil
}

// Position returns the category and index of the record in list order.
func (s *Store) Position(id string) (model.Category, int, error) {
	e, ok := s.records[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.rec.Category, s.indexOf(id), nil
}

// ListByCategory returns record ids sorted by display order ascending.
func (s *Store) ListByCategory(cat model.Category) []string {
	ordered := s.ordered(cat)
	out := make([]string, len(ordered))
	for i, e := range ordered {
		out[i] = e.rec.ID
	}
	return out
}

// Records returns copies of the records of cat in list order.
func (s *Store) Records(cat model.Category) []model.TimerRecord {
	ordered := s.ordered(cat)
	out := make([]model.TimerRecord, len(ordered))
	for i, e := range ordered {
		out[i] = e.rec
	}
	return out
}

// At returns the record at index of cat.
func (s *Store) At(cat model.Category, index int) (model.TimerRecord, error) {
	ordered := s.ordered(cat)
	if index < 0 || index >= len(ordered) {
		return model.TimerRecord{}, fmt.Errorf("%w: %s index %d", ErrNotFound, cat, index)
	}
	return ordered[index].rec, nil
}

// Count returns the number of records in cat.
func (s *Store) Count(cat model.Category) int {
	n := 0
	for _, e := range s.records {
		if e.rec.Category == cat {
			n++
		}
	}
	return n
}

// Len returns the number of records across all categories.
func (s *Store) Len() int {
	return len(s.records)
}

// Setting returns a flag value, including uncommitted writes.
func (s *Store) Setting(key string) (string, bool) {
	if v, ok := s.pendingSettings[key]; ok {
		return v, true
	}
	v, ok := s.settings[key]
	return v, ok
}

// SetSetting stages a flag write for the next Commit.
func (s *Store) SetSetting(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("store: empty setting key")
	}
	s.pendingSettings[key] = value
	return nil
}

func (s *Store) ordered(cat model.Category) []*entry {
	out := make([]*entry, 0, len(s.records))
	for _, e := range s.records {
		if e.rec.Category == cat {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].rec.DisplayOrder != out[j].rec.DisplayOrder {
			return out[i].rec.DisplayOrder < out[j].rec.DisplayOrder
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func (s *Store) indexOf(id string) int {
	e, ok := s.records[id]
	if !ok {
		return -1
	}
	for i, other := range s.ordered(e.rec.Category) {
		if other.rec.ID == id {
			return i
		}
	}
	return -1
}
