package store

import "coffee-timer/internal/model"

// EventKind names an event variant for logging and switch-free filtering.
type EventKind string

const (
	KindInserted        EventKind = "inserted"
	KindRemoved         EventKind = "removed"
	KindUpdated         EventKind = "updated"
	KindMoved           EventKind = "moved"
	KindSectionsChanged EventKind = "sections_changed"
)

// Event is a change notification. The concrete type is one of Inserted,
// Removed, Updated, Moved or SectionsChanged.
type Event interface {
	Kind() EventKind
}

// Inserted reports a record that appeared at Index of its category.
type Inserted struct {
	Category model.Category
	Index    int
	ID       string
}

// Removed reports a record that left Index of its category.
type Removed struct {
	Category model.Category
	Index    int
	ID       string
}

// Updated reports a record whose fields changed in place.
type Updated struct {
	Category model.Category
	Index    int
	ID       string
}

// Moved reports a record that changed position within one category.
type Moved struct {
	Category model.Category
	From     int
	To       int
	ID       string
}

// SectionsChanged reports a category section appearing or disappearing.
type SectionsChanged struct {
	Category model.Category
	Present  bool
}

func (Inserted) Kind() EventKind        { return KindInserted }
func (Removed) Kind() EventKind         { return KindRemoved }
func (Updated) Kind() EventKind         { return KindUpdated }
func (Moved) Kind() EventKind           { return KindMoved }
func (SectionsChanged) Kind() EventKind { return KindSectionsChanged }

// Observer receives store change events.
type Observer interface {
	StoreChanged(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) StoreChanged(ev Event) { f(ev) }

type subscription struct {
	id       int
	observer Observer
}

// Bridge fans store events out to observers in commit order.
type Bridge struct {
	subs      []subscription
	nextID    int
	suspended int
}

func NewBridge() *Bridge {
	return &Bridge{}
}

// Subscribe registers an observer and returns a function that removes it.
func (b *Bridge) Subscribe(o Observer) func() {
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, observer: o})
	return func() {
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev unless a batch is in progress.
func (b *Bridge) Publish(ev Event) {
	if b.suspended > 0 {
		return
	}
	subs := append([]subscription(nil), b.subs...)
	for _, s := range subs {
		s.observer.StoreChanged(ev)
	}
}

// Batch runs fn with per-row events suppressed, then publishes final once.
func (b *Bridge) Batch(fn func(), final Event) {
	b.suspended++
	func() {
		defer func() { b.suspended-- }()
		fn()
	}()
	if final != nil {
		b.Publish(final)
	}
}

func (b *Bridge) inBatch() bool {
	return b.suspended > 0
}
