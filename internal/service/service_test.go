package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"coffee-timer/internal/countdown"
	"coffee-timer/internal/model"
	"coffee-timer/internal/repository"
	"coffee-timer/internal/store"
)

type memoryPersister struct {
	applied  []repository.Changeset
	failNext error
}

func (m *memoryPersister) Load(context.Context) (repository.Snapshot, error) {
	return repository.Snapshot{}, nil
}

func (m *memoryPersister) Apply(_ context.Context, changes repository.Changeset) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.applied = append(m.applied, changes)
	return nil
}

func newTimerService(t *testing.T, p *memoryPersister) *TimerService {
	t.Helper()
	n := 0
	s, err := store.Open(context.Background(), p, store.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return NewTimerService(s)
}

func createTimer(t *testing.T, svc *TimerService, name string, seconds int, cat model.Category) string {
	t.Helper()
	id, err := svc.BeginNew(cat)
	if err != nil {
		t.Fatalf("begin new: %v", err)
	}
	if _, err := svc.Save(context.Background(), id, Edit{Name: name, DurationSeconds: seconds, Category: cat}); err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
	return id
}

func timerNames(svc *TimerService, cat model.Category) []string {
	var out []string
	for _, rec := range svc.Store().Records(cat) {
		out = append(out, rec.Name)
	}
	return out
}

func TestSaveCommitsNewTimer(t *testing.T) {
	p := &memoryPersister{}
	svc := newTimerService(t, p)
	id := createTimer(t, svc, "Kenya", 210, model.CategoryCoffee)

	if svc.Store().Pending() {
		t.Fatal("save should commit")
	}
	if len(p.applied) != 1 || len(p.applied[0].Upserts) != 1 {
		t.Fatalf("unexpected commits: %#v", p.applied)
	}
	rec, err := svc.Store().Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Name != "Kenya" || rec.DurationSeconds != 210 || rec.DisplayOrder != 0 {
		t.Fatalf("unexpected record: %#v", rec)
	}
}

func TestSaveRequiresName(t *testing.T) {
	svc := newTimerService(t, &memoryPersister{})
	id, err := svc.BeginNew(model.CategoryTea)
	if err != nil {
		t.Fatalf("begin new: %v", err)
	}
	_, err = svc.Save(context.Background(), id, Edit{Name: "  ", DurationSeconds: 60, Category: model.CategoryTea})
	if !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if !svc.Store().IsDraft(id) {
		t.Fatal("draft should survive a rejected save")
	}
}

func TestSaveRejectsNonPositiveDuration(t *testing.T) {
	svc := newTimerService(t, &memoryPersister{})
	id := createTimer(t, svc, "Sencha", 120, model.CategoryTea)

	_, err := svc.Save(context.Background(), id, Edit{Name: "Sencha", DurationSeconds: 0, Category: model.CategoryTea})
	if !errors.Is(err, store.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestCancelNewDiscardsDraft(t *testing.T) {
	p := &memoryPersister{}
	svc := newTimerService(t, p)
	id, err := svc.BeginNew(model.CategoryCoffee)
	if err != nil {
		t.Fatalf("begin new: %v", err)
	}
	if err := svc.CancelNew(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if svc.Store().Len() != 0 || svc.Store().Pending() {
		t.Fatal("draft should be gone without a write")
	}
	if len(p.applied) != 0 {
		t.Fatalf("nothing should be committed, got %#v", p.applied)
	}
}

func TestCancelNewAfterUnrelatedCommitDeletes(t *testing.T) {
	svc := newTimerService(t, &memoryPersister{})
	other := createTimer(t, svc, "Assam", 300, model.CategoryTea)

	id, err := svc.BeginNew(model.CategoryCoffee)
	if err != nil {
		t.Fatalf("begin new: %v", err)
	}
	if _, err := svc.Delete(context.Background(), other); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.CancelNew(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if svc.Store().Len() != 0 {
		t.Fatalf("expected empty store, got %d records", svc.Store().Len())
	}
}

func TestCancelOfExistingTimerIsNoop(t *testing.T) {
	svc := newTimerService(t, &memoryPersister{})
	id := createTimer(t, svc, "Assam", 300, model.CategoryTea)
	if err := svc.CancelNew(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Store().Get(id); err != nil {
		t.Fatalf("timer should remain: %v", err)
	}
}

func TestSaveChangingCategoryAppends(t *testing.T) {
	svc := newTimerService(t, &memoryPersister{})
	createTimer(t, svc, "Colombian", 240, model.CategoryCoffee)
	createTimer(t, svc, "Green Tea", 400, model.CategoryTea)
	id := createTimer(t, svc, "Mexican", 200, model.CategoryCoffee)

	rec, err := svc.Save(context.Background(), id, Edit{Name: "Mexican", DurationSeconds: 200, Category: model.CategoryTea})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.Category != model.CategoryTea || rec.DisplayOrder != 1 {
		t.Fatalf("expected tea slot 1, got %#v", rec)
	}
	if got := timerNames(svc, model.CategoryTea); !reflect.DeepEqual(got, []string{"Green Tea", "Mexican"}) {
		t.Fatalf("unexpected tea order: %v", got)
	}
}

func TestMoveCommitsOrder(t *testing.T) {
	p := &memoryPersister{}
	svc := newTimerService(t, p)
	createTimer(t, svc, "Green Tea", 400, model.CategoryTea)
	createTimer(t, svc, "Oolong", 400, model.CategoryTea)
	createTimer(t, svc, "Rooibos", 480, model.CategoryTea)

	if err := svc.Move(context.Background(), model.CategoryTea, 0, 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := timerNames(svc, model.CategoryTea); !reflect.DeepEqual(got, []string{"Oolong", "Rooibos", "Green Tea"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if svc.Store().Pending() {
		t.Fatal("move should commit")
	}
}

func TestCommitFailureIsReturnedAndRetried(t *testing.T) {
	p := &memoryPersister{}
	svc := newTimerService(t, p)
	id := createTimer(t, svc, "Colombian", 240, model.CategoryCoffee)

	p.failNext = errors.New("disk full")
	if _, err := svc.Delete(context.Background(), id); !errors.Is(err, store.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !svc.Store().Pending() {
		t.Fatal("failed delete should stay pending")
	}
	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	last := p.applied[len(p.applied)-1]
	if !reflect.DeepEqual(last.Deletes, []string{id}) {
		t.Fatalf("expected retried delete, got %#v", last)
	}
}

func TestFlushWithoutChangesDoesNotWrite(t *testing.T) {
	p := &memoryPersister{}
	svc := newTimerService(t, p)
	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(p.applied) != 0 {
		t.Fatalf("expected no writes, got %d", len(p.applied))
	}
}

func TestDiscardDraftsBeforeShutdownFlush(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "timers.db")
	db, err := repository.NewDB(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := store.Open(ctx, repository.NewTimerRepository(db))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := NewTimerService(s)
	saved := createTimer(t, svc, "Colombian", 240, model.CategoryCoffee)
	if _, err := svc.BeginNew(model.CategoryCoffee); err != nil {
		t.Fatalf("begin new: %v", err)
	}

	if err := svc.DiscardDrafts(ctx); err != nil {
		t.Fatalf("discard drafts: %v", err)
	}
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	reopened, err := store.Open(ctx, repository.NewTimerRepository(db))
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if reopened.Len() != 1 {
		t.Fatalf("expected only the saved timer after restart, got %d records", reopened.Len())
	}
	if _, err := reopened.Get(saved); err != nil {
		t.Fatalf("saved timer lost: %v", err)
	}
}

func TestDiscardDraftsDeletesDraftFlushedEarlier(t *testing.T) {
	p := &memoryPersister{}
	svc := newTimerService(t, p)
	other := createTimer(t, svc, "Assam", 300, model.CategoryTea)
	draft, err := svc.BeginNew(model.CategoryCoffee)
	if err != nil {
		t.Fatalf("begin new: %v", err)
	}
	if _, err := svc.Delete(context.Background(), other); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := svc.DiscardDrafts(context.Background()); err != nil {
		t.Fatalf("discard drafts: %v", err)
	}
	if svc.Store().Len() != 0 || svc.Store().Pending() {
		t.Fatal("flushed draft should be deleted and committed")
	}
	last := p.applied[len(p.applied)-1]
	if !reflect.DeepEqual(last.Deletes, []string{draft}) {
		t.Fatalf("expected the draft delete to be written, got %#v", last)
	}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingBinder struct {
	mu        sync.Mutex
	scheduled map[int64]int
	cancelled map[int64]int
}

func newRecordingBinder() *recordingBinder {
	return &recordingBinder{scheduled: map[int64]int{}, cancelled: map[int64]int{}}
}

func (r *recordingBinder) Bind(recipient int64) countdown.AlertScheduler {
	return boundRecorder{parent: r, recipient: recipient}
}

type boundRecorder struct {
	parent    *recordingBinder
	recipient int64
}

func (b boundRecorder) Schedule(time.Time, string) (countdown.AlertHandle, error) {
	b.parent.mu.Lock()
	defer b.parent.mu.Unlock()
	b.parent.scheduled[b.recipient]++
	return countdown.AlertHandle(b.parent.scheduled[b.recipient]), nil
}

func (b boundRecorder) Cancel(countdown.AlertHandle) {
	b.parent.mu.Lock()
	defer b.parent.mu.Unlock()
	b.parent.cancelled[b.recipient]++
}

type brewEvent struct {
	chatID int64
	timer  string
	ev     countdown.Event
}

func newBrewService(t *testing.T) (*BrewService, *TimerService, *manualClock, *recordingBinder, chan brewEvent) {
	t.Helper()
	timers := newTimerService(t, &memoryPersister{})
	clock := &manualClock{now: time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)}
	binder := newRecordingBinder()
	events := make(chan brewEvent, 64)
	brews := NewBrewService(timers.Store(), binder, clock, countdown.Config{TickInterval: 5 * time.Millisecond},
		func(chatID int64, timer model.TimerRecord, ev countdown.Event) {
			select {
			case events <- brewEvent{chatID: chatID, timer: timer.Name, ev: ev}:
			default:
			}
		})
	t.Cleanup(brews.StopAll)
	return brews, timers, clock, binder, events
}

func waitFor(t *testing.T, events <-chan brewEvent, want countdown.EventType) brewEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-events:
			if got.ev.Type == want {
				return got
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestBrewRunsToCompletion(t *testing.T) {
	brews, timers, clock, binder, events := newBrewService(t)
	id := createTimer(t, timers, "Espresso", 3, model.CategoryCoffee)

	if _, err := brews.Start(context.Background(), 7, id); err != nil {
		t.Fatalf("start: %v", err)
	}
	started := waitFor(t, events, countdown.EventStarted)
	if started.chatID != 7 || started.timer != "Espresso" {
		t.Fatalf("unexpected start event: %#v", started)
	}

	clock.Advance(3 * time.Second)
	waitFor(t, events, countdown.EventFinished)

	if _, _, ok := brews.Active(7); ok {
		t.Fatal("finished brew should not be active")
	}
	binder.mu.Lock()
	defer binder.mu.Unlock()
	if binder.scheduled[7] != 1 || binder.cancelled[7] != 0 {
		t.Fatalf("expected one alert kept scheduled, got %d scheduled %d cancelled", binder.scheduled[7], binder.cancelled[7])
	}
}

func TestBrewRejectsSecondStart(t *testing.T) {
	brews, timers, _, _, _ := newBrewService(t)
	id := createTimer(t, timers, "Espresso", 30, model.CategoryCoffee)

	if _, err := brews.Start(context.Background(), 1, id); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := brews.Start(context.Background(), 1, id); !errors.Is(err, countdown.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if _, err := brews.Start(context.Background(), 2, id); err != nil {
		t.Fatalf("another chat should brew independently: %v", err)
	}
}

func TestBrewStopCancelsAlert(t *testing.T) {
	brews, timers, _, binder, events := newBrewService(t)
	id := createTimer(t, timers, "Oolong", 400, model.CategoryTea)

	if _, err := brews.Start(context.Background(), 5, id); err != nil {
		t.Fatalf("start: %v", err)
	}
	timer, remaining, ok := brews.Active(5)
	if !ok || timer.Name != "Oolong" || remaining != 400*time.Second {
		t.Fatalf("unexpected active brew: %v %v %v", timer.Name, remaining, ok)
	}
	if !brews.Stop(5) {
		t.Fatal("stop should report a running brew")
	}
	waitFor(t, events, countdown.EventCancelled)
	if brews.Stop(5) {
		t.Fatal("second stop should be a no-op")
	}

	binder.mu.Lock()
	defer binder.mu.Unlock()
	if binder.cancelled[5] != 1 {
		t.Fatalf("expected the alert to be withdrawn once, got %d", binder.cancelled[5])
	}
}

func TestBrewReportsDeadline(t *testing.T) {
	brews, timers, clock, _, _ := newBrewService(t)
	id := createTimer(t, timers, "Sencha", 90, model.CategoryTea)

	brew, err := brews.Start(context.Background(), 3, id)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if want := clock.Now().Add(90 * time.Second); !brew.Deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", brew.Deadline, want)
	}
	if brew.Timer.Name != "Sencha" {
		t.Fatalf("unexpected timer: %#v", brew.Timer)
	}
}

func TestStopAllReleasesSessions(t *testing.T) {
	brews, timers, _, binder, _ := newBrewService(t)
	id := createTimer(t, timers, "Oolong", 400, model.CategoryTea)
	for _, chat := range []int64{1, 2, 3} {
		if _, err := brews.Start(context.Background(), chat, id); err != nil {
			t.Fatalf("start chat %d: %v", chat, err)
		}
	}

	done := make(chan struct{})
	go func() {
		brews.StopAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StopAll did not return; event forwarders still running")
	}

	if n := brews.sessionCount(); n != 0 {
		t.Fatalf("expected no sessions after StopAll, got %d", n)
	}
	binder.mu.Lock()
	defer binder.mu.Unlock()
	if binder.cancelled[1]+binder.cancelled[2]+binder.cancelled[3] != 3 {
		t.Fatalf("expected every alert withdrawn, got %v", binder.cancelled)
	}
}

func TestBrewUnknownTimer(t *testing.T) {
	brews, _, _, _, _ := newBrewService(t)
	if _, err := brews.Start(context.Background(), 1, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
