package api

import (
	"context"
	"net/url"

	"agentdesk/internal/domain"
)

// ListInbox returns the user's notification inbox for one agent.
func (c *Client) ListInbox(ctx context.Context, agentID string) ([]domain.InboxItem, error) {
	var out struct {
		Items []domain.InboxItem `json:"items"`
	}
	path := "/api/inbox?agent_id=" + url.QueryEscape(agentID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// MarkInboxRead marks one notification as read.
func (c *Client) MarkInboxRead(ctx context.Context, itemID string) error {
	return c.post(ctx, "/api/inbox/"+url.PathEscape(itemID)+"/read", nil, nil)
}

// ListAgentInbox returns questions waiting in the agent's inbox for the user.
func (c *Client) ListAgentInbox(ctx context.Context, agentID string) ([]domain.AgentInboxItem, error) {
	var out struct {
		Items []domain.AgentInboxItem `json:"items"`
	}
	path := "/api/agent-inbox?agent_id=" + url.QueryEscape(agentID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// RespondAgentInbox answers one waiting agent question.
func (c *Client) RespondAgentInbox(ctx context.Context, itemID, response string) error {
	body := map[string]string{"response": response}
	return c.post(ctx, "/api/agent-inbox/"+url.PathEscape(itemID)+"/respond", body, nil)
}
