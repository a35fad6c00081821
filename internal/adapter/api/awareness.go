package api

import (
	"context"
	"net/url"

	"agentdesk/internal/domain"
)

// GetAwareness returns the agent's self-description record.
func (c *Client) GetAwareness(ctx context.Context, agentID string) (*domain.Awareness, error) {
	var out domain.Awareness
	path := "/api/awareness?agent_id=" + url.QueryEscape(agentID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAwareness replaces the agent's awareness content.
func (c *Client) UpdateAwareness(ctx context.Context, agentID, content string) error {
	body := map[string]string{"agent_id": agentID, "content": content}
	return c.put(ctx, "/api/awareness", body, nil)
}
