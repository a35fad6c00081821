package api

import (
	"context"
	"net/url"

	"agentdesk/internal/domain"
)

// ListContacts returns the agent social network.
func (c *Client) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	var out struct {
		Contacts []domain.Contact `json:"contacts"`
	}
	if err := c.get(ctx, "/api/social", &out); err != nil {
		return nil, err
	}
	return out.Contacts, nil
}

// GetContact returns one contact by id.
func (c *Client) GetContact(ctx context.Context, contactID string) (*domain.Contact, error) {
	var out domain.Contact
	if err := c.get(ctx, "/api/social/"+url.PathEscape(contactID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchContacts searches the social network in the given mode.
func (c *Client) SearchContacts(ctx context.Context, query string, mode domain.SearchMode) ([]domain.Contact, error) {
	var out struct {
		Contacts []domain.Contact `json:"contacts"`
	}
	path := "/api/social/search?q=" + url.QueryEscape(query) + "&mode=" + url.QueryEscape(string(mode))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Contacts, nil
}
