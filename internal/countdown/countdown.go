// Package countdown runs a deadline-based brew countdown.
package countdown

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"coffee-timer/internal/model"
)

var (
	ErrInvalidState    = errors.New("countdown: invalid state")
	ErrInvalidDuration = errors.New("countdown: duration must be positive")
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// AlertHandle identifies a scheduled external alert.
type AlertHandle int

// AlertScheduler fires a user-visible alert at a deadline, independent of
// whether the countdown keeps ticking.
type AlertScheduler interface {
	Schedule(deadline time.Time, message string) (AlertHandle, error)
	Cancel(handle AlertHandle)
}

// Config contains runtime options for Controller.
type Config struct {
	TickInterval time.Duration
	AlertMessage string
}

// Controller is a single countdown: Idle -> Running -> Completed|Cancelled -> Idle.
type Controller struct {
	mu       sync.Mutex
	clock    Clock
	alerts   AlertScheduler
	options  Config
	state    State
	deadline time.Time
	alert    *AlertHandle
	events   []chan Event
}

// New creates an idle controller. alerts may be nil.
func New(clock Clock, alerts AlertScheduler, options Config) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	if options.TickInterval <= 0 {
		options.TickInterval = time.Second
	}
	if options.AlertMessage == "" {
		options.AlertMessage = "Timer Completed!"
	}
	return &Controller{
		clock:   clock,
		alerts:  alerts,
		options: options,
		state:   StateIdle,
	}
}

// Subscribe registers a new observer channel.
func (c *Controller) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	c.mu.Lock()
	c.events = append(c.events, ch)
	c.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it. Events already buffered can still
// be drained.
func (c *Controller) Unsubscribe(ch <-chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.events {
		if existing == ch {
			c.events = append(c.events[:i:i], c.events[i+1:]...)
			close(existing)
			return
		}
	}
}

// Start begins a countdown of durationSeconds and schedules the external
// alert at the deadline.
func (c *Controller) Start(durationSeconds int) error {
	if durationSeconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, durationSeconds)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, c.state)
	}

	now := c.clock.Now()
	deadline := now.Add(time.Duration(durationSeconds) * time.Second)
	if c.alerts != nil {
		handle, err := c.alerts.Schedule(deadline, c.options.AlertMessage)
		if err != nil {
			return fmt.Errorf("schedule alert: %w", err)
		}
		c.alert = &handle
	}
	c.deadline = deadline
	c.state = StateRunning

	c.emitLocked(Event{
		Type:      EventStarted,
		State:     StateRunning,
		Remaining: deadline.Sub(now),
		Deadline:  deadline,
		At:        now,
	})
	return nil
}

// Tick recomputes the remaining time from the deadline. It completes the
// countdown once the rounded remainder reaches zero.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}

	now := c.clock.Now()
	remaining := c.remainingLocked(now)
	if remaining > 0 {
		c.emitLocked(Event{
			Type:      EventTick,
			State:     StateRunning,
			Remaining: remaining,
			Deadline:  c.deadline,
			At:        now,
		})
		return
	}

	c.state = StateCompleted
	c.emitLocked(Event{
		Type:     EventFinished,
		State:    StateCompleted,
		Deadline: c.deadline,
		At:       now,
	})
	c.resetLocked()
}

// Cancel stops a running countdown and withdraws its alert. It is a no-op
// when nothing is running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}

	c.state = StateCancelled
	if c.alerts != nil && c.alert != nil {
		c.alerts.Cancel(*c.alert)
	}
	now := c.clock.Now()
	c.emitLocked(Event{
		Type:      EventCancelled,
		State:     StateCancelled,
		Remaining: c.remainingLocked(now),
		Deadline:  c.deadline,
		At:        now,
	})
	c.resetLocked()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining returns the time left, rounded to whole seconds.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return 0
	}
	return c.remainingLocked(c.clock.Now())
}

// Deadline returns the absolute completion time of the running countdown.
func (c *Controller) Deadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline, c.state == StateRunning
}

// Run ticks every TickInterval until the countdown leaves Running or ctx
// is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
			if c.State() != StateRunning {
				return
			}
		}
	}
}

func (c *Controller) remainingLocked(now time.Time) time.Duration {
	remaining := c.deadline.Sub(now).Round(time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Controller) resetLocked() {
	c.state = StateIdle
	c.deadline = time.Time{}
	c.alert = nil
}

func (c *Controller) emitLocked(event Event) {
	for _, ch := range c.events {
		select {
		case ch <- event:
		default:
			log.Printf("[warn] countdown event %s dropped: observer is full", event.Type)
		}
	}
}

// FormatRemaining renders a duration as m:ss.
func FormatRemaining(d time.Duration) string {
	return model.FormatSeconds(int(d.Round(time.Second) / time.Second))
}
