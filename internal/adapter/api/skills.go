package api

import (
	"context"
	"io"
	"net/url"

	"agentdesk/internal/domain"
)

// ListSkills returns the installed skills.
func (c *Client) ListSkills(ctx context.Context) ([]domain.Skill, error) {
	var out struct {
		Skills []domain.Skill `json:"skills"`
	}
	if err := c.get(ctx, "/api/skills", &out); err != nil {
		return nil, err
	}
	return out.Skills, nil
}

// InstallSkillFromGitHub installs a skill from a repository URL.
func (c *Client) InstallSkillFromGitHub(ctx context.Context, repoURL string) (*domain.Skill, error) {
	var out domain.Skill
	body := map[string]string{"source": "github", "url": repoURL}
	if err := c.post(ctx, "/api/skills/install", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InstallSkillFromZip uploads a skill archive.
func (c *Client) InstallSkillFromZip(ctx context.Context, name string, r io.Reader) (*domain.Skill, error) {
	info, err := c.upload(ctx, "/api/skills/install/zip", name, r)
	if err != nil {
		return nil, err
	}
	return &domain.Skill{ID: info.ID, Name: info.Name, Source: "zip", Enabled: true}, nil
}

// EnableSkill turns one skill on.
func (c *Client) EnableSkill(ctx context.Context, skillID string) error {
	return c.post(ctx, "/api/skills/"+url.PathEscape(skillID)+"/enable", nil, nil)
}

// DisableSkill turns one skill off.
func (c *Client) DisableSkill(ctx context.Context, skillID string) error {
	return c.post(ctx, "/api/skills/"+url.PathEscape(skillID)+"/disable", nil, nil)
}

// RemoveSkill uninstalls one skill.
func (c *Client) RemoveSkill(ctx context.Context, skillID string) error {
	return c.delete(ctx, "/api/skills/"+url.PathEscape(skillID))
}

// StudySkill starts an asynchronous deep-study pass over one skill and
// returns the task to poll.
func (c *Client) StudySkill(ctx context.Context, skillID string) (*domain.SkillStudyTask, error) {
	var out domain.SkillStudyTask
	if err := c.post(ctx, "/api/skills/"+url.PathEscape(skillID)+"/study", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStudyTask returns the current state of a study task.
func (c *Client) GetStudyTask(ctx context.Context, taskID string) (*domain.SkillStudyTask, error) {
	var out domain.SkillStudyTask
	if err := c.get(ctx, "/api/skills/study/"+url.PathEscape(taskID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
