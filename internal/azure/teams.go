package azure

import (
	"context"
	"fmt"
	"net/url"
)

// Team is an Azure DevOps team within a project.
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type teamList struct {
	Value []Team `json:"value"`
}

// GetTeam returns the named team, or nil if it does not exist.
func (c *Client) GetTeam(ctx context.Context, project, team string) (*Team, error) {
	path := "/_apis/projects/" + url.PathEscape(project) + "/teams/" + url.PathEscape(team)
	var t Team
	err := c.getWithRetry(ctx, "GET", path, nil, nil, &t)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTeams returns all teams of a project.
func (c *Client) ListTeams(ctx context.Context, project string) ([]Team, error) {
	path := "/_apis/projects/" + url.PathEscape(project) + "/teams"
	var list teamList
	if err := c.getWithRetry(ctx, "GET", path, nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Value, nil
}

// DefaultTeam returns the project's default team. When a project is created
// Azure DevOps creates one team automatically, named after the project (with
// or without a " Team" suffix).
func (c *Client) DefaultTeam(ctx context.Context, project string) (*Team, error) {
	teams, err := c.ListTeams(ctx, project)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		if teams[i].Name == project || teams[i].Name == project+" Team" {
			return &teams[i], nil
		}
	}
	if len(teams) > 0 {
		return &teams[0], nil
	}
	return nil, fmt.Errorf("project %q has no teams", project)
}

// CreateTeam creates a team in the project.
func (c *Client) CreateTeam(ctx context.Context, project, name, description string) (*Team, error) {
	path := "/_apis/projects/" + url.PathEscape(project) + "/teams"
	body := map[string]string{"name": name, "description": description}

	var t Team
	if err := c.do(ctx, "POST", path, nil, body, &t); err != nil {
		return nil, fmt.Errorf("failed to create team %q in %q: %w", name, project, err)
	}
	c.logger.Printf("created team %q in project %q (id %s)", name, project, t.ID)
	return &t, nil
}

// RenameTeam renames an existing team.
func (c *Client) RenameTeam(ctx context.Context, project, teamID, newName string) (*Team, error) {
	path := "/_apis/projects/" + url.PathEscape(project) + "/teams/" + url.PathEscape(teamID)
	body := map[string]string{"name": newName}

	var t Team
	if err := c.do(ctx, "PATCH", path, nil, body, &t); err != nil {
		return nil, fmt.Errorf("failed to rename team %s to %q: %w", teamID, newName, err)
	}
	return &t, nil
}
