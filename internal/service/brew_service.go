package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coffee-timer/internal/countdown"
	"coffee-timer/internal/model"
	"coffee-timer/internal/store"
)

// AlertBinder hands out alert schedulers bound to one recipient.
type AlertBinder interface {
	Bind(recipient int64) countdown.AlertScheduler
}

// BrewEventHandler receives countdown events for a chat's active brew.
type BrewEventHandler func(chatID int64, timer model.TimerRecord, ev countdown.Event)

// Brew describes a started countdown.
type Brew struct {
	Timer    model.TimerRecord
	Deadline time.Time
}

type brewSession struct {
	controller *countdown.Controller
	events     <-chan countdown.Event
	timer      model.TimerRecord
	cancel     context.CancelFunc
}

// BrewService keeps one countdown per chat.
type BrewService struct {
	store   *store.Store
	alerts  AlertBinder
	clock   countdown.Clock
	config  countdown.Config
	onEvent BrewEventHandler

	mu       sync.Mutex
	sessions map[int64]*brewSession
	forwards sync.WaitGroup
}

func NewBrewService(s *store.Store, alerts AlertBinder, clock countdown.Clock, cfg countdown.Config, onEvent BrewEventHandler) *BrewService {
	return &BrewService{
		store:    s,
		alerts:   alerts,
		clock:    clock,
		config:   cfg,
		onEvent:  onEvent,
		sessions: make(map[int64]*brewSession),
	}
}

// SetEventHandler replaces the countdown event callback.
func (b *BrewService) SetEventHandler(h BrewEventHandler) {
	b.mu.Lock()
	b.onEvent = h
	b.mu.Unlock()
}

// Start brews timer id for chatID. Only one brew may run per chat.
func (b *BrewService) Start(ctx context.Context, chatID int64, id string) (Brew, error) {
	rec, err := b.store.Get(id)
	if err != nil {
		return Brew{}, err
	}

	session := b.session(chatID)
	b.mu.Lock()
	if session.controller.State() == countdown.StateRunning {
		b.mu.Unlock()
		return Brew{}, fmt.Errorf("%w: %s is already brewing", countdown.ErrInvalidState, session.timer.Name)
	}
	session.timer = rec
	b.mu.Unlock()

	if err := session.controller.Start(rec.DurationSeconds); err != nil {
		return Brew{}, err
	}
	deadline, _ := session.controller.Deadline()

	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	if session.cancel != nil {
		session.cancel()
	}
	session.cancel = cancel
	b.mu.Unlock()
	go session.controller.Run(runCtx)
	return Brew{Timer: rec, Deadline: deadline}, nil
}

// Stop cancels the chat's running brew. It reports whether one was running.
func (b *BrewService) Stop(chatID int64) bool {
	b.mu.Lock()
	session, ok := b.sessions[chatID]
	b.mu.Unlock()
	if !ok || session.controller.State() != countdown.StateRunning {
		return false
	}
	session.controller.Cancel()
	b.mu.Lock()
	if session.cancel != nil {
		session.cancel()
		session.cancel = nil
	}
	b.mu.Unlock()
	return true
}

// Active returns the timer currently brewing in chatID and its remaining time.
func (b *BrewService) Active(chatID int64) (model.TimerRecord, time.Duration, bool) {
	b.mu.Lock()
	session, ok := b.sessions[chatID]
	var timer model.TimerRecord
	if ok {
		timer = session.timer
	}
	b.mu.Unlock()
	if !ok || session.controller.State() != countdown.StateRunning {
		return model.TimerRecord{}, 0, false
	}
	return timer, session.controller.Remaining(), true
}

// StopAll cancels every running brew and releases all sessions. Events
// already emitted are still delivered before it returns.
func (b *BrewService) StopAll() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[int64]*brewSession)
	b.mu.Unlock()

	for _, session := range sessions {
		session.controller.Cancel()
		b.mu.Lock()
		if session.cancel != nil {
			session.cancel()
			session.cancel = nil
		}
		b.mu.Unlock()
		session.controller.Unsubscribe(session.events)
	}
	b.forwards.Wait()
}

func (b *BrewService) sessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *BrewService) session(chatID int64) *brewSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[chatID]; ok {
		return s
	}

	var alerts countdown.AlertScheduler
	if b.alerts != nil {
		alerts = b.alerts.Bind(chatID)
	}
	s := &brewSession{controller: countdown.New(b.clock, alerts, b.config)}
	s.events = s.controller.Subscribe(16)
	b.sessions[chatID] = s

	b.forwards.Add(1)
	go b.forward(chatID, s, s.events)
	return s
}

func (b *BrewService) forward(chatID int64, s *brewSession, events <-chan countdown.Event) {
	defer b.forwards.Done()
	for ev := range events {
		b.mu.Lock()
		handler := b.onEvent
		timer := s.timer
		b.mu.Unlock()
		if handler != nil {
			handler(chatID, timer, ev)
		}
	}
}
