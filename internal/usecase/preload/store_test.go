package preload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"agentdesk/internal/domain"
)

func TestGetLoadsOnFirstAccess(t *testing.T) {
	s := New(time.Minute, nil, slog.Default())
	calls := 0
	s.Register("jobs", func(ctx context.Context) (any, error) {
		calls++
		return []string{"job-1"}, nil
	})

	v, err := s.Get(context.Background(), "jobs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := v.([]string); len(got) != 1 || got[0] != "job-1" {
		t.Fatalf("value = %v", got)
	}
	if calls != 1 {
		t.Fatalf("loader calls = %d", calls)
	}

	// Fresh snapshot is served from cache.
	if _, err := s.Get(context.Background(), "jobs"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("loader called again while fresh: %d", calls)
	}
}

func TestGetRefreshesStaleSnapshot(t *testing.T) {
	s := New(time.Nanosecond, nil, slog.Default())
	calls := 0
	s.Register("k", func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	})

	if _, err := s.Get(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	v, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	if v.(int) != 2 {
		t.Fatalf("stale snapshot not refreshed: %v", v)
	}
}

func TestGetUnknownKey(t *testing.T) {
	s := New(time.Minute, nil, slog.Default())
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRefreshFailureKeepsLastGoodValueForPeek(t *testing.T) {
	s := New(time.Minute, nil, slog.Default())
	fail := false
	s.Register("k", func(ctx context.Context) (any, error) {
		if fail {
			return nil, errors.New("backend down")
		}
		return "good", nil
	})

	if err := s.Refresh(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	fail = true
	if err := s.Refresh(context.Background(), "k"); err == nil {
		t.Fatal("expected refresh error")
	}

	v, ok := s.Peek("k")
	if !ok || v != "good" {
		t.Fatalf("peek = %v, %v; want last good value", v, ok)
	}
}

func TestRefreshAllCoversEveryKeyAndSkipsFailures(t *testing.T) {
	s := New(time.Minute, nil, slog.Default())
	var mu sync.Mutex
	loaded := map[string]int{}
	load := func(key string, err error) Loader {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			loaded[key]++
			mu.Unlock()
			return key, err
		}
	}
	s.Register("a", load("a", nil))
	s.Register("b", load("b", errors.New("boom")))
	s.Register("c", load("c", nil))

	s.RefreshAll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	for _, k := range []string{"a", "b", "c"} {
		if loaded[k] != 1 {
			t.Fatalf("key %q loaded %d times", k, loaded[k])
		}
	}
}

func TestRefreshPublishesEvent(t *testing.T) {
	bus := &recordingBus{}
	s := New(time.Minute, bus, slog.Default())
	s.Register("k", func(ctx context.Context) (any, error) { return 1, nil })

	if err := s.Refresh(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	if bus.count(domain.EventPreloadRefreshed) != 1 {
		t.Fatal("preload.refreshed not published")
	}
}

func TestRegisterReplacesSnapshot(t *testing.T) {
	s := New(time.Minute, nil, slog.Default())
	s.Register("k", func(ctx context.Context) (any, error) { return "old", nil })
	if _, err := s.Get(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}

	s.Register("k", func(ctx context.Context) (any, error) { return "new", nil })
	if _, ok := s.Peek("k"); ok {
		t.Fatal("re-register must discard the old snapshot")
	}
	v, err := s.Get(context.Background(), "k")
	if err != nil || v != "new" {
		t.Fatalf("get = %v, %v", v, err)
	}
}

func TestStartScheduleRejectsBadSpec(t *testing.T) {
	s := New(time.Minute, nil, slog.Default())
	if err := s.StartSchedule(context.Background(), "not a cron spec"); err == nil {
		t.Fatal("expected spec parse error")
	}
}

func TestScheduleRefreshesInBackground(t *testing.T) {
	s := New(time.Minute, nil, slog.Default())
	hit := make(chan struct{}, 4)
	s.Register("k", func(ctx context.Context) (any, error) {
		select {
		case hit <- struct{}{}:
		default:
		}
		return 1, nil
	})

	if err := s.StartSchedule(context.Background(), "@every 10ms"); err != nil {
		t.Fatal(err)
	}
	defer s.StopSchedule()

	select {
	case <-hit:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled refresh never ran")
	}
}

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, ev domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() {
	return func() {}
}

func (b *recordingBus) SubscribeAll(domain.EventHandler) func() { return func() {} }

func (b *recordingBus) Close() {}

func (b *recordingBus) count(t domain.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
