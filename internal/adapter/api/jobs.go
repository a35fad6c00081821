package api

import (
	"context"
	"net/url"

	"agentdesk/internal/domain"
)

// ListJobs returns the jobs for one agent.
func (c *Client) ListJobs(ctx context.Context, agentID string) ([]domain.Job, error) {
	var out struct {
		Jobs []domain.Job `json:"jobs"`
	}
	path := "/api/jobs?agent_id=" + url.QueryEscape(agentID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob returns one job by id.
func (c *Client) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var out domain.Job
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(jobID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJob submits a new job for the agent.
func (c *Client) CreateJob(ctx context.Context, job domain.Job) (*domain.Job, error) {
	var out domain.Job
	if err := c.post(ctx, "/api/jobs", job, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelJob requests cancellation of a running job.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.post(ctx, "/api/jobs/"+url.PathEscape(jobID)+"/cancel", nil, nil)
}
