package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"coffee-timer/internal/model"
	"coffee-timer/internal/store"
)

// DefaultDraftSeconds is the duration a new timer starts with.
const DefaultDraftSeconds = 180

var ErrNameRequired = errors.New("service: timer name is required")

// Edit carries the values confirmed in the edit flow.
type Edit struct {
	Name            string
	DurationSeconds int
	Category        model.Category
}

// TimerService wraps the store with the create/edit/delete/reorder flows.
// Every mutation is committed immediately.
type TimerService struct {
	store  *store.Store
	drafts map[string]struct{}
}

func NewTimerService(s *store.Store) *TimerService {
	return &TimerService{store: s, drafts: make(map[string]struct{})}
}

// Store exposes the underlying store for read access.
func (s *TimerService) Store() *store.Store {
	return s.store
}

// BeginNew creates an uncommitted timer for the "new timer" flow.
func (s *TimerService) BeginNew(cat model.Category) (string, error) {
	id, err := s.store.Create(store.Draft{Category: cat, DurationSeconds: DefaultDraftSeconds})
	if err != nil {
		return "", err
	}
	s.drafts[id] = struct{}{}
	return id, nil
}

// CancelNew abandons a timer started with BeginNew. Cancelling an edit of an
// existing timer changes nothing.
func (s *TimerService) CancelNew(ctx context.Context, id string) error {
	if _, ok := s.drafts[id]; !ok {
		return nil
	}
	delete(s.drafts, id)
	if s.store.IsDraft(id) {
		return s.store.Discard(id)
	}
	// Flushed by an unrelated commit in the meantime.
	if err := s.store.Delete(id); err != nil {
		return err
	}
	return s.commit(ctx)
}

// Save applies the edit flow's values. Switching category moves the timer
// to the end of the new category.
func (s *TimerService) Save(ctx context.Context, id string, in Edit) (model.TimerRecord, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.TimerRecord{}, ErrNameRequired
	}
	current, err := s.store.Get(id)
	if err != nil {
		return model.TimerRecord{}, err
	}

	patch := store.Patch{Name: &name, DurationSeconds: &in.DurationSeconds}
	if in.Category != current.Category {
		cat := in.Category
		order := s.store.Count(cat)
		patch.Category = &cat
		patch.DisplayOrder = &order
	}
	if err := s.store.Update(id, patch); err != nil {
		return model.TimerRecord{}, err
	}
	delete(s.drafts, id)

	saved, err := s.store.Get(id)
	if err != nil {
		return model.TimerRecord{}, err
	}
	return saved, s.commit(ctx)
}

// Delete removes a timer.
func (s *TimerService) Delete(ctx context.Context, id string) (model.TimerRecord, error) {
	rec, err := s.store.Get(id)
	if err != nil {
		return model.TimerRecord{}, err
	}
	if err := s.store.Delete(id); err != nil {
		return model.TimerRecord{}, err
	}
	delete(s.drafts, id)
	return rec, s.commit(ctx)
}

// Move reorders a timer within its category.
func (s *TimerService) Move(ctx context.Context, cat model.Category, from, to int) error {
	if err := s.store.Reorder(cat, from, to); err != nil {
		return err
	}
	return s.commit(ctx)
}

// DiscardDrafts drops every timer started with BeginNew that was never
// saved. A draft that an unrelated commit already wrote is deleted.
func (s *TimerService) DiscardDrafts(ctx context.Context) error {
	var flushed bool
	for id := range s.drafts {
		delete(s.drafts, id)
		if s.store.IsDraft(id) {
			if err := s.store.Discard(id); err != nil {
				return err
			}
			continue
		}
		if err := s.store.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		flushed = true
	}
	if flushed {
		return s.commit(ctx)
	}
	return nil
}

// Flush commits anything still pending, e.g. before shutdown.
func (s *TimerService) Flush(ctx context.Context) error {
	if !s.store.Pending() {
		return nil
	}
	return s.commit(ctx)
}

func (s *TimerService) commit(ctx context.Context) error {
	if err := s.store.Commit(ctx); err != nil {
		log.Printf("[warn] commit timers: %v", err)
		return fmt.Errorf("save timers: %w", err)
	}
	return nil
}
