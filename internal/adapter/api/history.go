package api

import (
	"context"
	"net/url"
	"strconv"

	"agentdesk/internal/domain"
)

// GetChatHistory returns summarized narrative spans with their raw events.
func (c *Client) GetChatHistory(ctx context.Context, agentID string) ([]domain.ChatNarrative, error) {
	var out struct {
		Narratives []domain.ChatNarrative `json:"narratives"`
	}
	path := "/api/chat-history?agent_id=" + url.QueryEscape(agentID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Narratives, nil
}

// GetSimpleChatHistory returns the flat last-N message view.
func (c *Client) GetSimpleChatHistory(ctx context.Context, agentID string, limit int) ([]domain.SimpleChatMessage, error) {
	var out struct {
		Messages []domain.SimpleChatMessage `json:"messages"`
	}
	path := "/api/simple-chat-history?agent_id=" + url.QueryEscape(agentID) +
		"&limit=" + strconv.Itoa(limit)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}
