package history

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdesk/internal/domain"
	"agentdesk/internal/usecase/eventbus"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), slog.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func turn(userText, assistantText string, at time.Time) domain.ConversationTurn {
	return domain.ConversationTurn{
		UserMessage:      domain.Message{Role: domain.RoleUser, Content: userText, Timestamp: at},
		AssistantMessage: domain.Message{Role: domain.RoleAssistant, Content: assistantText, Timestamp: at},
		CreatedAt:        at,
	}
}

func TestAppendAndListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	for i, q := range []string{"first", "second", "third"} {
		if err := s.Append(ctx, turn(q, "ok", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("append %q: %v", q, err)
		}
	}

	turns, err := s.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 3 {
		t.Fatalf("turns = %d", len(turns))
	}
	want := []string{"third", "second", "first"}
	for i, w := range want {
		if turns[i].UserMessage.Content != w {
			t.Fatalf("turns[%d] = %q, want %q", i, turns[i].UserMessage.Content, w)
		}
	}
}

func TestListHonorsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, turn("q", "a", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	turns, err := s.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
}

func TestTurnRoundTripPreservesStepsAndToolCalls(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := turn("q", "a", time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	in.Steps = []domain.Step{{ID: "0", Title: "Plan", Status: domain.StepCompleted}}
	in.AssistantMessage.ToolCalls = []domain.ToolCall{{
		Name:      "web_search",
		Input:     []byte(`{"query":"go"}`),
		Timestamp: time.Date(2026, 8, 1, 9, 0, 1, 0, time.UTC),
	}}

	require.NoError(t, s.Append(ctx, in))
	turns, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, turns, 1)

	got := turns[0]
	assert.Equal(t, in.UserMessage.Content, got.UserMessage.Content)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "0", got.Steps[0].ID)
	assert.Equal(t, domain.StepCompleted, got.Steps[0].Status)
	require.Len(t, got.AssistantMessage.ToolCalls, 1)
	assert.Equal(t, "web_search", got.AssistantMessage.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"go"}`, string(got.AssistantMessage.ToolCalls[0].Input))
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, turn("q", "a", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("count = %d after clear", n)
	}
}

func TestAttachArchivesFinalizedTurns(t *testing.T) {
	s := openTestStore(t)
	bus := eventbus.New(slog.Default())
	defer bus.Close()

	unsubscribe := s.Attach(bus)
	defer unsubscribe()

	bus.Publish(context.Background(), domain.NewEvent(domain.EventRunFinalized,
		turn("archived?", "yes", time.Now())))

	// Handlers run asynchronously; poll for the row.
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := s.Count(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("turn never archived, count = %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	turns, err := s.List(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if turns[0].UserMessage.Content != "archived?" {
		t.Fatalf("turn = %+v", turns[0])
	}
}
