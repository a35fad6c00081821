package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"agentdesk/internal/domain"
)

type fakeTransport struct {
	mu     sync.Mutex
	reqs   []domain.RunRequest
	err    error
	closed int

	// onRun, when set, is invoked with the request while Run blocks.
	onRun func(req domain.RunRequest)
}

func (f *fakeTransport) Run(ctx context.Context, req domain.RunRequest) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	onRun := f.onRun
	err := f.err
	f.mu.Unlock()
	if onRun != nil {
		onRun(req)
	}
	return err
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func staticIdentity(agent, user string) Identity {
	return func() (string, string) { return agent, user }
}

func TestRunnerSendBuildsRequest(t *testing.T) {
	ft := &fakeTransport{}
	agg := newTestAggregator()
	r := NewRunner(ft, agg, staticIdentity("agent-1", "user-1"), slog.Default())

	if err := r.Send(context.Background(), "do the thing"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(ft.reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(ft.reqs))
	}
	req := ft.reqs[0]
	if req.AgentID != "agent-1" || req.UserID != "user-1" {
		t.Fatalf("identity = %q/%q", req.AgentID, req.UserID)
	}
	if req.InputContent != "do the thing" {
		t.Fatalf("input = %q", req.InputContent)
	}
	if req.WorkingSource != domain.WorkingSourceDesktop {
		t.Fatalf("working source = %q", req.WorkingSource)
	}
}

func TestRunnerSendArmsAggregatorBeforeRun(t *testing.T) {
	agg := newTestAggregator()
	ft := &fakeTransport{}
	ft.onRun = func(domain.RunRequest) {
		if !agg.IsStreaming() {
			t.Error("aggregator not armed when Run started")
		}
		if len(agg.Messages()) != 1 {
			t.Errorf("messages = %d, want the user message", len(agg.Messages()))
		}
	}
	r := NewRunner(ft, agg, staticIdentity("a", "u"), slog.Default())

	if err := r.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestRunnerSendWrapsTransportError(t *testing.T) {
	ft := &fakeTransport{err: domain.ErrRetriesExhausted}
	agg := newTestAggregator()
	r := NewRunner(ft, agg, staticIdentity("a", "u"), slog.Default())

	err := r.Send(context.Background(), "hello")
	if !errors.Is(err, domain.ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}

	// Failed run: partial state stays, no history entry, and the streaming
	// flag is released so the UI does not spin forever.
	if len(agg.History()) != 0 {
		t.Fatal("failed run must not create history")
	}
	if agg.IsStreaming() {
		t.Fatal("failed run must not leave the aggregator streaming")
	}
}

func TestRunnerIdentityConsultedPerSend(t *testing.T) {
	ft := &fakeTransport{}
	agg := newTestAggregator()
	agent := "first"
	r := NewRunner(ft, agg, func() (string, string) { return agent, "u" }, slog.Default())

	if err := r.Send(context.Background(), "one"); err != nil {
		t.Fatal(err)
	}
	agent = "second"
	if err := r.Send(context.Background(), "two"); err != nil {
		t.Fatal(err)
	}

	if ft.reqs[0].AgentID != "first" || ft.reqs[1].AgentID != "second" {
		t.Fatalf("agent ids = %q, %q", ft.reqs[0].AgentID, ft.reqs[1].AgentID)
	}
}

func TestRunnerStopClosesTransport(t *testing.T) {
	ft := &fakeTransport{}
	r := NewRunner(ft, newTestAggregator(), staticIdentity("a", "u"), slog.Default())
	r.Stop()
	if ft.closed != 1 {
		t.Fatalf("closed = %d, want 1", ft.closed)
	}
}
