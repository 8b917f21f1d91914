// Package alert delivers brew-finished notifications at an absolute
// deadline, independent of any countdown ticking.
package alert

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"coffee-timer/internal/countdown"
)

var (
	ErrInvalidDeadline = errors.New("alert: invalid deadline")
	ErrStopped         = errors.New("alert: scheduler stopped")
)

// Alert is a single notification to deliver at Deadline.
type Alert struct {
	Recipient int64
	Deadline  time.Time
	Message   string
}

// Handle identifies a scheduled alert for cancellation.
type Handle int

// Notifier delivers a due alert to the user.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

// onceAt is a cron schedule that fires a single time.
type onceAt time.Time

func (o onceAt) Next(t time.Time) time.Time {
	at := time.Time(o)
	if t.Before(at) {
		return at
	}
	return time.Time{}
}

// Scheduler wraps cron to run one-shot alert jobs.
type Scheduler struct {
	cron     *cron.Cron
	notifier Notifier
	timeout  time.Duration

	mu      sync.Mutex
	next    Handle
	pending map[Handle]cron.EntryID
	stopped bool
}

func NewScheduler(loc *time.Location, notifier Notifier) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	logger := cron.PrintfLogger(log.New(os.Stdout, "[cron] ", log.LstdFlags))
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithLogger(logger)),
		notifier: notifier,
		timeout:  30 * time.Second,
		pending:  make(map[Handle]cron.EntryID),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Schedule registers a to fire at its deadline. Deadlines already in the
// past fire on the next scheduler turn.
func (s *Scheduler) Schedule(a Alert) (Handle, error) {
	if a.Deadline.IsZero() {
		return 0, ErrInvalidDeadline
	}
	if earliest := time.Now().Add(time.Millisecond); a.Deadline.Before(earliest) {
		a.Deadline = earliest
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, ErrStopped
	}

	s.next++
	handle := s.next
	entryID := s.cron.Schedule(onceAt(a.Deadline), cron.FuncJob(func() {
		s.fire(handle, a)
	}))
	s.pending[handle] = entryID
	return handle, nil
}

// Cancel withdraws a pending alert. Unknown or already fired handles are
// ignored.
func (s *Scheduler) Cancel(h Handle) {
	s.mu.Lock()
	entryID, ok := s.pending[h]
	delete(s.pending, h)
	s.mu.Unlock()
	if ok {
		s.cron.Remove(entryID)
	}
}

// Pending returns the number of alerts waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Bind returns a countdown.AlertScheduler delivering to recipient.
func (s *Scheduler) Bind(recipient int64) countdown.AlertScheduler {
	return binding{scheduler: s, recipient: recipient}
}

func (s *Scheduler) fire(h Handle, a Alert) {
	s.mu.Lock()
	entryID, ok := s.pending[h]
	delete(s.pending, h)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.cron.Remove(entryID)

	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, a); err != nil {
		log.Printf("[warn] deliver alert to %d: %v", a.Recipient, err)
	}
}

type binding struct {
	scheduler *Scheduler
	recipient int64
}

func (b binding) Schedule(deadline time.Time, message string) (countdown.AlertHandle, error) {
	h, err := b.scheduler.Schedule(Alert{Recipient: b.recipient, Deadline: deadline, Message: message})
	return countdown.AlertHandle(h), err
}

func (b binding) Cancel(h countdown.AlertHandle) {
	b.scheduler.Cancel(Handle(h))
}
