package countdown

import "time"

// State represents the controller's position in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// EventType defines the type of countdown event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventTick      EventType = "tick"
	EventFinished  EventType = "finished"
	EventCancelled EventType = "cancelled"
)

// Event represents a countdown update for observers.
type Event struct {
	Type      EventType
	State     State
	Remaining time.Duration
	Deadline  time.Time
	At        time.Time
}
