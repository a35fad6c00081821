package domain

import (
	"encoding/json"
	"time"
)

// Job is a unit of agent work tracked by the platform.
type Job struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	DependsOn   []string  `json:"depends_on,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InboxItem is a notification addressed to the user.
type InboxItem struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentInboxItem is a message waiting in an agent's inbox for the user to
// respond to.
type AgentInboxItem struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Question  string    `json:"question"`
	Responded bool      `json:"responded"`
	CreatedAt time.Time `json:"created_at"`
}

// Awareness is the agent's editable self-description of what it knows about
// the user and its standing instructions.
type Awareness struct {
	AgentID   string    `json:"agent_id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contact is an entry in the agent social network.
type Contact struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// SearchMode selects how the social network is searched.
type SearchMode string

const (
	SearchKeyword  SearchMode = "keyword"
	SearchSemantic SearchMode = "semantic"
)

// ChatNarrative is a summarized span of past conversation returned by the
// chat-history endpoint, with the raw events that produced it.
type ChatNarrative struct {
	ID        string            `json:"id"`
	Summary   string            `json:"summary"`
	Events    []json.RawMessage `json:"events,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// SimpleChatMessage is one entry in the flat last-N history view.
type SimpleChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FileInfo describes an uploaded workspace file.
type FileInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// RAGStatus is the ingestion state of a RAG file.
type RAGStatus string

const (
	RAGPending   RAGStatus = "pending"
	RAGUploading RAGStatus = "uploading"
	RAGCompleted RAGStatus = "completed"
	RAGFailed    RAGStatus = "failed"
)

// RAGFile is a document in the retrieval index.
type RAGFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    RAGStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Skill is an installable agent capability.
type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	Source      string `json:"source,omitempty"` // "github" or "zip"
}

// SkillStudyTask tracks an asynchronous skill-study request. Status moves
// from "running" to "completed" or "failed"; the client polls for it.
type SkillStudyTask struct {
	ID       string `json:"id"`
	SkillID  string `json:"skill_id"`
	Status   string `json:"status"`
	Progress string `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
}

// MCPConnector is a configured MCP server connection.
type MCPConnector struct {
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name"`
	Transport string            `json:"transport"` // "sse" or "http"
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Enabled   bool              `json:"enabled"`
}

// AgentRef identifies a known agent for the selection UI.
type AgentRef struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
