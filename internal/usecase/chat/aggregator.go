// Package chat owns the conversation state of the client: the aggregator
// that folds the streaming event sequence into a turn, and the runner that
// pairs it with a transport.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"agentdesk/internal/domain"
)

// Aggregator folds the ordered stream of protocol events into incrementally
// observable turn state and finalizes exactly once per run.
//
// Mutation happens only on the single event-delivery goroutine (plus the
// synchronous control methods); the mutex exists so UI readers may observe
// any intermediate state. Steps and accumulated text only ever grow between
// StartRun calls.
type Aggregator struct {
	mu sync.Mutex

	steps     []domain.Step
	stepIndex map[string]int // step id -> position in steps
	thinking  strings.Builder
	rawText   strings.Builder
	toolCalls []domain.ToolCall
	toolSeen  map[string]struct{} // ToolCall.Key() -> present
	active    bool
	runGen    uint64 // bumped by StartRun; guards stale aborts

	messages []domain.Message          // current conversation, for immediate display
	history  []domain.ConversationTurn // finalized turns, newest first

	bus    domain.EventBus
	logger *slog.Logger
}

// NewAggregator creates an empty aggregator publishing change notifications
// on bus.
func NewAggregator(bus domain.EventBus, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		stepIndex: make(map[string]int),
		toolSeen:  make(map[string]struct{}),
		bus:       bus,
		logger:    logger,
	}
}

// AddUserMessage appends a user-role message to the current message list and
// returns its id. Always synchronous, never fails.
func (a *Aggregator) AddUserMessage(text string) string {
	a.mu.Lock()
	msg := domain.Message{
		ID:        ulid.Make().String(),
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	}
	a.messages = append(a.messages, msg)
	a.mu.Unlock()

	a.publish(domain.EventChatChanged, nil)
	return msg.ID
}

// StartRun clears all current-run fields and arms the aggregator for a new
// event stream. Re-arming discards whatever partial state existed; it never
// merges into history. The returned generation identifies this run for
// AbortRun.
func (a *Aggregator) StartRun() uint64 {
	a.mu.Lock()
	a.resetRunLocked()
	a.active = true
	a.runGen++
	gen := a.runGen
	a.mu.Unlock()

	a.publish(domain.EventRunStarted, nil)
	a.publish(domain.EventChatChanged, nil)
	return gen
}

// AbortRun clears the active flag after a run that can no longer make
// progress (the transport gave up or the caller cancelled). Partial steps
// and text stay visible; nothing is finalized and no history entry is
// created. gen must be the value StartRun returned for the run being
// aborted: a stale abort from a superseded run is a no-op.
func (a *Aggregator) AbortRun(gen uint64) {
	a.mu.Lock()
	if !a.active || gen != a.runGen {
		a.mu.Unlock()
		return
	}
	a.active = false
	a.mu.Unlock()

	a.publish(domain.EventChatChanged, nil)
}

func (a *Aggregator) resetRunLocked() {
	a.steps = nil
	a.stepIndex = make(map[string]int)
	a.thinking.Reset()
	a.rawText.Reset()
	a.toolCalls = nil
	a.toolSeen = make(map[string]struct{})
}

// OnEvent dispatches one protocol event. Events are processed strictly in
// arrival order; the transport guarantees non-reentrant delivery.
func (a *Aggregator) OnEvent(ev domain.StreamEvent) {
	switch ev.Type {
	case domain.StreamProgress:
		a.onProgress(ev.Step)
	case domain.StreamAgentResponse:
		a.appendText(&a.rawText, ev.Delta)
	case domain.StreamAgentThinking:
		a.appendText(&a.thinking, ev.Delta)
	case domain.StreamToolCall:
		if ev.ToolCall != nil {
			a.onToolCall(*ev.ToolCall)
		}
	case domain.StreamError:
		// Observational only: never mutates turn state, never finalizes.
		a.logger.Warn("run reported error", "message", ev.Message)
		a.publish(domain.EventRunError, map[string]string{"message": ev.Message})
	case domain.StreamComplete:
		a.FinalizeRun()
	}
}

// onProgress upserts the step by id: in-place replacement when the id is
// known, append otherwise, preserving first-seen order. Tool details
// embedded in the event synthesize a ToolCall.
func (a *Aggregator) onProgress(step *domain.Step) {
	if step == nil {
		return
	}
	a.mu.Lock()
	if i, ok := a.stepIndex[step.ID]; ok {
		a.steps[i] = *step
	} else {
		a.stepIndex[step.ID] = len(a.steps)
		a.steps = append(a.steps, *step)
	}

	if d := step.Details; d != nil && d.ToolName != "" && len(d.ToolArgs) > 0 {
		a.addToolCallLocked(domain.ToolCall{
			Name:      d.ToolName,
			Input:     d.ToolArgs,
			Timestamp: step.Timestamp,
		})
	}
	a.mu.Unlock()

	a.publish(domain.EventChatChanged, nil)
}

func (a *Aggregator) appendText(b *strings.Builder, delta string) {
	if delta == "" {
		return
	}
	a.mu.Lock()
	b.WriteString(delta)
	a.mu.Unlock()

	a.publish(domain.EventChatChanged, nil)
}

func (a *Aggregator) onToolCall(call domain.ToolCall) {
	a.mu.Lock()
	a.addToolCallLocked(call)
	a.mu.Unlock()

	a.publish(domain.EventChatChanged, nil)
}

// addToolCallLocked appends unless an entry with the same (name, timestamp)
// already exists. The same call can arrive both as a dedicated tool_call
// event and embedded in progress details; the first occurrence keeps its
// position and the duplicate is dropped.
func (a *Aggregator) addToolCallLocked(call domain.ToolCall) {
	key := call.Key()
	if _, dup := a.toolSeen[key]; dup {
		return
	}
	a.toolSeen[key] = struct{}{}
	a.toolCalls = append(a.toolCalls, call)
}

// FinalizeRun performs the one-time transition from "run in progress" to
// "run complete". Idempotent: re-entry when no run is active is a no-op.
func (a *Aggregator) FinalizeRun() {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}

	content, ok := domain.DeliveredContent(a.toolCalls)
	if !ok {
		content = domain.NoReplySentinel
	}

	// A finished run must not leave visually-stuck in-progress indicators,
	// even if the server skipped a final progress event for some step.
	for i := range a.steps {
		completeStep(&a.steps[i])
	}

	assistant := domain.Message{
		ID:        ulid.Make().String(),
		Role:      domain.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
	if t := a.thinking.String(); t != "" {
		assistant.Thinking = t
	} else if r := a.rawText.String(); r != "" {
		assistant.Thinking = r
	}
	if len(a.toolCalls) > 0 {
		assistant.ToolCalls = append([]domain.ToolCall(nil), a.toolCalls...)
	}

	var turn *domain.ConversationTurn
	if user, ok := a.lastUserMessageLocked(); ok {
		turn = &domain.ConversationTurn{
			UserMessage:      user,
			AssistantMessage: assistant,
			Steps:            append([]domain.Step(nil), a.steps...),
			CreatedAt:        time.Now(),
		}
		a.history = append([]domain.ConversationTurn{*turn}, a.history...)
	}

	a.messages = append(a.messages, assistant)
	a.active = false
	a.mu.Unlock()

	if turn != nil {
		a.publish(domain.EventRunFinalized, turn)
	}
	a.publish(domain.EventChatChanged, nil)
}

func completeStep(s *domain.Step) {
	if s.Status == domain.StepRunning {
		s.Status = domain.StepCompleted
	}
	for i := range s.Substeps {
		completeStep(&s.Substeps[i])
	}
}

func (a *Aggregator) lastUserMessageLocked() (domain.Message, bool) {
	for i := len(a.messages) - 1; i >= 0; i-- {
		if a.messages[i].Role == domain.RoleUser {
			return a.messages[i], true
		}
	}
	return domain.Message{}, false
}

// DisplayedResponse returns the user-visible answer derived from the current
// tool-call list. Usable mid-stream, before finalization, so the UI can show
// the answer as soon as the delivering tool call arrives.
func (a *Aggregator) DisplayedResponse() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.DeliveredContent(a.toolCalls)
}

// IsStreaming reports whether a run is currently active.
func (a *Aggregator) IsStreaming() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Steps returns a copy of the current step list in first-seen order.
func (a *Aggregator) Steps() []domain.Step {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Step(nil), a.steps...)
}

// MainStepProgress reports completed and total counts over main pipeline
// steps only; sub-steps are excluded.
func (a *Aggregator) MainStepProgress() (completed, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.steps {
		if !domain.IsMainStepID(s.ID) {
			continue
		}
		total++
		if s.Status == domain.StepCompleted {
			completed++
		}
	}
	return completed, total
}

// Thinking returns the accumulated thinking text.
func (a *Aggregator) Thinking() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.thinking.String()
}

// RawText returns the accumulated internal response text.
func (a *Aggregator) RawText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rawText.String()
}

// ToolCalls returns a copy of the deduplicated tool-call list.
func (a *Aggregator) ToolCalls() []domain.ToolCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.ToolCall(nil), a.toolCalls...)
}

// Messages returns a copy of the current conversation view.
func (a *Aggregator) Messages() []domain.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Message(nil), a.messages...)
}

// History returns a copy of the finalized turns, newest first.
func (a *Aggregator) History() []domain.ConversationTurn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.ConversationTurn(nil), a.history...)
}

// ClearCurrent resets the transient conversation state, leaving History
// intact.
func (a *Aggregator) ClearCurrent() {
	a.mu.Lock()
	a.resetRunLocked()
	a.messages = nil
	a.active = false
	a.mu.Unlock()

	a.publish(domain.EventChatChanged, nil)
}

// ClearAll resets transient state and History.
func (a *Aggregator) ClearAll() {
	a.mu.Lock()
	a.resetRunLocked()
	a.messages = nil
	a.history = nil
	a.active = false
	a.mu.Unlock()

	a.publish(domain.EventChatChanged, nil)
}

func (a *Aggregator) publish(t domain.EventType, payload any) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(context.Background(), domain.NewEvent(t, payload))
}
