package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WorkingSourceDesktop identifies this client as the UI entry point in run
// requests. The backend uses it to attribute runs to a surface.
const WorkingSourceDesktop = "desktop"

// RunRequest is the single JSON object sent after opening a streaming
// connection. It is immutable for the lifetime of a connection attempt,
// including reconnects, which re-send it verbatim.
type RunRequest struct {
	AgentID       string `json:"agent_id"`
	UserID        string `json:"user_id"`
	InputContent  string `json:"input_content"`
	WorkingSource string `json:"working_source"`
}

// StreamEventType tags inbound streaming protocol events.
type StreamEventType string

const (
	StreamProgress      StreamEventType = "progress"
	StreamAgentResponse StreamEventType = "agent_response"
	StreamAgentThinking StreamEventType = "agent_thinking"
	StreamToolCall      StreamEventType = "tool_call"
	StreamError         StreamEventType = "error"
	StreamComplete      StreamEventType = "complete"
)

// StepStatus is the lifecycle state of an execution step.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
	StepSkipped   StepStatus = "skipped"
)

// StepDetails carries optional structured data attached to a progress event.
// When both ToolName and ToolArgs are present the event also describes a tool
// invocation and a ToolCall is synthesized from it.
type StepDetails struct {
	ToolName string          `json:"tool_name,omitempty"`
	ToolArgs json.RawMessage `json:"tool_args,omitempty"`
}

// Step is one unit of server-side progress. IDs are dotted hierarchical keys:
// top-level ids ("0".."5") are main pipeline steps, dotted children ("3.4.2")
// are sub-steps.
type Step struct {
	ID          string       `json:"step_id"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Status      StepStatus   `json:"status"`
	Substeps    []Step       `json:"substeps,omitempty"`
	Details     *StepDetails `json:"details,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// MainStepCount is the number of main pipeline steps the backend reports.
const MainStepCount = 6

// IsMainStepID reports whether id names a main pipeline step. Sub-steps use
// dotted ids and are excluded from top-level progress counts.
func IsMainStepID(id string) bool {
	if strings.Contains(id, ".") {
		return false
	}
	switch id {
	case "0", "1", "2", "3", "4", "5":
		return true
	}
	return false
}

// ToolCall is a fully-formed tool invocation observed during a run.
type ToolCall struct {
	Name      string          `json:"tool_name"`
	Input     json.RawMessage `json:"tool_input,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Key returns the identity used for deduplication. The same call may arrive
// both as a dedicated tool_call event and embedded in progress details; the
// (name, timestamp) pair identifies it across both paths.
func (c ToolCall) Key() string {
	return c.Name + "|" + c.Timestamp.UTC().Format(time.RFC3339Nano)
}

// DeliverToolSuffix marks the tool the agent uses to send content to the end
// user. Matched by suffix because the runtime namespaces tool names (for
// example "mcp__chat__send_message_to_user_directly").
const DeliverToolSuffix = "send_message_to_user_directly"

// NoReplySentinel is the displayed content when a run finishes without a
// deliver-to-user tool call.
const NoReplySentinel = "(the agent did not send a reply)"

// DeliveredContent scans calls for the deliver-to-user tool and returns the
// content of its input. The first matching call with a content field wins.
func DeliveredContent(calls []ToolCall) (string, bool) {
	for _, call := range calls {
		if !strings.HasSuffix(call.Name, DeliverToolSuffix) {
			continue
		}
		var input struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(call.Input, &input); err != nil {
			continue
		}
		if input.Content != "" {
			return input.Content, true
		}
	}
	return "", false
}

// StreamEvent is the decoded form of one inbound streaming message.
// Exactly one of the pointer/payload fields is populated, per Type.
type StreamEvent struct {
	Type     StreamEventType
	Step     *Step     // progress
	Delta    string    // agent_response / agent_thinking
	ToolCall *ToolCall // tool_call
	Message  string    // error
}

// streamEnvelope mirrors the wire shape: a flat JSON object whose "type"
// field selects which of the remaining fields are meaningful.
type streamEnvelope struct {
	Type        StreamEventType `json:"type"`
	StepID      string          `json:"step_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      StepStatus      `json:"status"`
	Substeps    []Step          `json:"substeps"`
	Details     *StepDetails    `json:"details"`
	Content     string          `json:"content"`
	ToolName    string          `json:"tool_name"`
	ToolInput   json.RawMessage `json:"tool_input"`
	Message     string          `json:"message"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ParseStreamEvent decodes one inbound streaming message. Unknown or missing
// types are errors; the transport logs and drops such messages without
// failing the connection.
func ParseStreamEvent(data []byte) (StreamEvent, error) {
	var env streamEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return StreamEvent{}, fmt.Errorf("decode stream event: %w", err)
	}

	switch env.Type {
	case StreamProgress:
		if env.StepID == "" {
			return StreamEvent{}, fmt.Errorf("progress event without step_id")
		}
		return StreamEvent{
			Type: StreamProgress,
			Step: &Step{
				ID:          env.StepID,
				Title:       env.Title,
				Description: env.Description,
				Status:      env.Status,
				Substeps:    env.Substeps,
				Details:     env.Details,
				Timestamp:   env.Timestamp,
			},
		}, nil
	case StreamAgentResponse, StreamAgentThinking:
		return StreamEvent{Type: env.Type, Delta: env.Content}, nil
	case StreamToolCall:
		if env.ToolName == "" {
			return StreamEvent{}, fmt.Errorf("tool_call event without tool_name")
		}
		return StreamEvent{
			Type: StreamToolCall,
			ToolCall: &ToolCall{
				Name:      env.ToolName,
				Input:     env.ToolInput,
				Timestamp: env.Timestamp,
			},
		}, nil
	case StreamError:
		return StreamEvent{Type: StreamError, Message: env.Message}, nil
	case StreamComplete:
		return StreamEvent{Type: StreamComplete}, nil
	case "":
		return StreamEvent{}, fmt.Errorf("stream event without type")
	default:
		return StreamEvent{}, fmt.Errorf("unknown stream event type %q", env.Type)
	}
}
