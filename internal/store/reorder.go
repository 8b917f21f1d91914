package store

import (
	"fmt"

	"coffee-timer/internal/model"
)

// Reorder moves the record at from to position to within cat and rewrites
// display order as 0..N-1. Observers see a single Moved event.
// An out-of-range to is clamped to the first or last slot of cat.
func (s *Store) Reorder(cat model.Category, from, to int) error {
	if !cat.IsValid() {
		return fmt.Errorf("%w: category %d", ErrInvalidRecord, int(cat))
	}
	ordered := s.ordered(cat)
	n := len(ordered)
	if from < 0 || from >= n {
		return fmt.Errorf("%w: %s index %d", ErrNotFound, cat, from)
	}
	to = clampIndex(to, n)
	if from == to {
		return nil
	}

	moved := ordered[from]
	ordered = append(ordered[:from:from], ordered[from+1:]...)
	ordered = append(ordered[:to], append([]*entry{moved}, ordered[to:]...)...)

	now := s.now().UTC()
	s.bridge.Batch(func() {
		for i, e := range ordered {
			if e.rec.DisplayOrder == i {
				continue
			}
			e.rec.DisplayOrder = i
			e.rec.UpdatedAt = now
			s.dirty[e.rec.ID] = struct{}{}
			s.bridge.Publish(Updated{Category: cat, Index: i, ID: e.rec.ID})
		}
	}, Moved{Category: cat, From: from, To: to, ID: moved.rec.ID})
	return nil
}

// TargetIndexForMove resolves a proposed drop position during a drag.
// Moves inside one category are accepted as proposed. Drags across the
// section boundary snap to the last coffee slot when leaving coffee and to
// the first tea slot when leaving tea, so records never change category by
// dragging.
func (s *Store) TargetIndexForMove(src, dst model.Category, proposed int) int {
	if src == dst {
		return proposed
	}
	if src == model.CategoryCoffee {
		return s.Count(model.CategoryCoffee) - 1
	}
	return 0
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
