package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseStreamEventProgress(t *testing.T) {
	raw := []byte(`{
		"type": "progress",
		"step_id": "3.4.2",
		"title": "Search",
		"description": "searching the index",
		"status": "running",
		"timestamp": "2026-08-01T10:00:00Z"
	}`)

	ev, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Type != StreamProgress {
		t.Fatalf("type = %q, want progress", ev.Type)
	}
	if ev.Step == nil || ev.Step.ID != "3.4.2" || ev.Step.Status != StepRunning {
		t.Fatalf("unexpected step: %+v", ev.Step)
	}
}

func TestParseStreamEventProgressWithToolDetails(t *testing.T) {
	raw := []byte(`{
		"type": "progress",
		"step_id": "2",
		"status": "running",
		"details": {"tool_name": "web_search", "tool_args": {"query": "go"}}
	}`)

	ev, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Step.Details == nil || ev.Step.Details.ToolName != "web_search" {
		t.Fatalf("details not decoded: %+v", ev.Step.Details)
	}
	if len(ev.Step.Details.ToolArgs) == 0 {
		t.Fatal("tool_args empty")
	}
}

func TestParseStreamEventDeltas(t *testing.T) {
	for _, tc := range []struct {
		typ  StreamEventType
		raw  string
		want string
	}{
		{StreamAgentResponse, `{"type":"agent_response","content":"abc"}`, "abc"},
		{StreamAgentThinking, `{"type":"agent_thinking","content":"hmm"}`, "hmm"},
	} {
		ev, err := ParseStreamEvent([]byte(tc.raw))
		if err != nil {
			t.Fatalf("%s: %v", tc.typ, err)
		}
		if ev.Type != tc.typ || ev.Delta != tc.want {
			t.Fatalf("%s: got %+v", tc.typ, ev)
		}
	}
}

func TestParseStreamEventToolCall(t *testing.T) {
	raw := []byte(`{
		"type": "tool_call",
		"tool_name": "mcp__chat__send_message_to_user_directly",
		"tool_input": {"content": "hi there"},
		"timestamp": "2026-08-01T10:00:01Z"
	}`)

	ev, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.ToolCall == nil || ev.ToolCall.Name != "mcp__chat__send_message_to_user_directly" {
		t.Fatalf("unexpected tool call: %+v", ev.ToolCall)
	}
}

func TestParseStreamEventErrorAndComplete(t *testing.T) {
	ev, err := ParseStreamEvent([]byte(`{"type":"error","message":"boom"}`))
	if err != nil {
		t.Fatalf("parse error event: %v", err)
	}
	if ev.Type != StreamError || ev.Message != "boom" {
		t.Fatalf("got %+v", ev)
	}

	ev, err = ParseStreamEvent([]byte(`{"type":"complete"}`))
	if err != nil {
		t.Fatalf("parse complete: %v", err)
	}
	if ev.Type != StreamComplete {
		t.Fatalf("got %+v", ev)
	}
}

func TestParseStreamEventMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"type":"wat"}`,
		`{"content":"no type"}`,
		`{"type":"progress"}`,
		`{"type":"tool_call"}`,
	}
	for _, raw := range cases {
		if _, err := ParseStreamEvent([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestIsMainStepID(t *testing.T) {
	for _, id := range []string{"0", "1", "2", "3", "4", "5"} {
		if !IsMainStepID(id) {
			t.Fatalf("%q should be a main step", id)
		}
	}
	for _, id := range []string{"6", "3.1", "0.2.1", "", "a"} {
		if IsMainStepID(id) {
			t.Fatalf("%q should not be a main step", id)
		}
	}
}

func TestDeliveredContent(t *testing.T) {
	calls := []ToolCall{
		{Name: "web_search", Input: json.RawMessage(`{"query":"x"}`)},
		{Name: "mcp__chat__send_message_to_user_directly", Input: json.RawMessage(`{"content":"hi there"}`)},
	}
	got, ok := DeliveredContent(calls)
	if !ok || got != "hi there" {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestDeliveredContentAbsent(t *testing.T) {
	calls := []ToolCall{
		{Name: "web_search", Input: json.RawMessage(`{"query":"x"}`)},
		// Suffix matches but no content field — still no reply.
		{Name: "send_message_to_user_directly", Input: json.RawMessage(`{}`)},
	}
	if _, ok := DeliveredContent(calls); ok {
		t.Fatal("expected no delivered content")
	}
	if _, ok := DeliveredContent(nil); ok {
		t.Fatal("expected no delivered content for nil")
	}
}

func TestToolCallKey(t *testing.T) {
	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	a := ToolCall{Name: "t", Timestamp: ts}
	b := ToolCall{Name: "t", Timestamp: ts.In(time.FixedZone("X", 3600))}
	if a.Key() != b.Key() {
		t.Fatal("keys should normalize timezone")
	}
	c := ToolCall{Name: "t", Timestamp: ts.Add(time.Millisecond)}
	if a.Key() == c.Key() {
		t.Fatal("different timestamps must differ")
	}
}
