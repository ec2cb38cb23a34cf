package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/care-assistant/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCreateGetUpdateDelete(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id := s.Create()
	if id == "" {
		t.Fatal("expected non-empty id")
	}
	if other := s.Create(); other == id {
		t.Fatal("ids must be unique")
	}

	st, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(st.Messages) != 0 || st.UserID != "" {
		t.Fatalf("expected empty state, got %+v", st)
	}

	st.Messages = append(st.Messages, domain.UserMessage("hello"))
	if err := s.Update(id, st); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := s.Get(id)
	if len(got.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got.Messages))
	}

	if !s.Delete(id) {
		t.Fatal("expected delete to report removal")
	}
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if err := s.Update("missing", &domain.ConversationState{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id := s.Create()
	st, _ := s.Get(id)
	st.Messages = append(st.Messages, domain.UserMessage("not saved"))

	again, _ := s.Get(id)
	if len(again.Messages) != 0 {
		t.Fatal("mutating a returned state must not affect the store")
	}
}

func TestEvictIdleAfterThirtyOneMinutes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))
	id := s.Create()

	clock.Advance(31 * time.Minute)
	if n := s.EvictIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected evicted session to be gone, got %v", err)
	}
}

func TestEvictIdleIsIdempotent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))
	s.Create()
	s.Create()

	clock.Advance(time.Hour)
	if n := s.EvictIdle(30 * time.Minute); n != 2 {
		t.Fatalf("first sweep: expected 2, got %d", n)
	}
	if n := s.EvictIdle(30 * time.Minute); n != 0 {
		t.Fatalf("second sweep: expected 0, got %d", n)
	}
}

func TestGetRefreshesActivity(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))
	id := s.Create()

	clock.Advance(20 * time.Minute)
	if _, err := s.Get(id); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	clock.Advance(20 * time.Minute)
	if n := s.EvictIdle(30 * time.Minute); n != 0 {
		t.Fatalf("recently read session should survive, evicted %d", n)
	}
}

func TestEvictIdleSkipsBusySession(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))
	id := s.Create()

	release, err := s.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	clock.Advance(time.Hour)
	if n := s.EvictIdle(30 * time.Minute); n != 0 {
		t.Fatalf("busy session must not be evicted, got %d", n)
	}
	release()
	if n := s.EvictIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected eviction after release, got %d", n)
	}
}

func TestAcquireSerializesTurns(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id := s.Create()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.Acquire(context.Background(), id)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer release()
			st, err := s.Get(id)
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			st.Messages = append(st.Messages, domain.UserMessage("turn"))
			if err := s.Update(id, st); err != nil {
				t.Errorf("Update failed: %v", err)
			}
		}()
	}
	wg.Wait()

	st, _ := s.Get(id)
	if len(st.Messages) != workers {
		t.Fatalf("expected %d messages, got %d (lost update)", workers, len(st.Messages))
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id := s.Create()
	release, err := s.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Acquire(ctx, id); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestAcquireUnknownSession(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if _, err := s.Acquire(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSweeperStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Create()

	ctx, cancel := context.WithCancel(context.Background())
	sweeps := make(chan int, 16)
	done := StartSweeper(ctx, s, 5*time.Millisecond, 0, func(_ context.Context, n int) {
		select {
		case sweeps <- n:
		default:
		}
	})

	select {
	case <-sweeps:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	if s.Len() != 0 {
		t.Fatalf("expected sweeper to evict the idle session, %d remain", s.Len())
	}
}
