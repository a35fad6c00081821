package api

import (
	"context"
	"net/url"

	"agentdesk/internal/domain"
)

// ListMCPConnectors returns the configured MCP connectors.
func (c *Client) ListMCPConnectors(ctx context.Context) ([]domain.MCPConnector, error) {
	var out struct {
		Connectors []domain.MCPConnector `json:"connectors"`
	}
	if err := c.get(ctx, "/api/mcp/connectors", &out); err != nil {
		return nil, err
	}
	return out.Connectors, nil
}

// CreateMCPConnector registers a new connector.
func (c *Client) CreateMCPConnector(ctx context.Context, conn domain.MCPConnector) (*domain.MCPConnector, error) {
	var out domain.MCPConnector
	if err := c.post(ctx, "/api/mcp/connectors", conn, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMCPConnector replaces an existing connector definition.
func (c *Client) UpdateMCPConnector(ctx context.Context, conn domain.MCPConnector) error {
	return c.put(ctx, "/api/mcp/connectors/"+url.PathEscape(conn.ID), conn, nil)
}

// DeleteMCPConnector removes a connector.
func (c *Client) DeleteMCPConnector(ctx context.Context, connectorID string) error {
	return c.delete(ctx, "/api/mcp/connectors/"+url.PathEscape(connectorID))
}
