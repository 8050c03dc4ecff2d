package azure

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Node is a classification node: an iteration or area path element.
type Node struct {
	ID          int             `json:"id"`
	Identifier  string          `json:"identifier,omitempty"`
	Name        string          `json:"name"`
	Path        string          `json:"path,omitempty"`
	HasChildren bool            `json:"hasChildren,omitempty"`
	Attributes  *NodeAttributes `json:"attributes,omitempty"`
	Children    []Node          `json:"children,omitempty"`
}

// NodeAttributes carries iteration dates.
type NodeAttributes struct {
	StartDate  *time.Time `json:"startDate,omitempty"`
	FinishDate *time.Time `json:"finishDate,omitempty"`
}

// nodePath builds the classification nodes endpoint path for a project.
// group is "iterations" or "areas"; nodeName may be empty for the root.
func nodePath(project, group, nodeName string) string {
	p := "/" + url.PathEscape(project) + "/_apis/wit/classificationnodes/" + group
	if nodeName != "" {
		// Nested node names are slash-separated; escape each segment.
		for _, seg := range strings.Split(nodeName, "/") {
			p += "/" + url.PathEscape(seg)
		}
	}
	return p
}

// GetIterationNode returns the iteration node at the given name/path under
// the project, or nil if it does not exist. An empty name returns the root.
func (c *Client) GetIterationNode(ctx context.Context, project, name string) (*Node, error) {
	var n Node
	err := c.getWithRetry(ctx, "GET", nodePath(project, "iterations", name), nil, nil, &n)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateIteration creates an iteration node. parent may be empty to create
// under the root. When dates are supplied they become the sprint window.
// A 409 means the node already exists; the existing node is fetched and
// returned so callers can continue idempotently.
func (c *Client) CreateIteration(ctx context.Context, project, parent, name string, start, finish *time.Time) (*Node, error) {
	body := map[string]any{"name": name}
	if start != nil && finish != nil {
		body["attributes"] = NodeAttributes{StartDate: start, FinishDate: finish}
	}

	var n Node
	err := c.do(ctx, "POST", nodePath(project, "iterations", parent), nil, body, &n)
	if IsConflict(err) {
		existingPath := name
		if parent != "" {
			existingPath = parent + "/" + name
		}
		return c.GetIterationNode(ctx, project, existingPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create iteration %q in %q: %w", name, project, err)
	}
	return &n, nil
}

// GetAreaNode returns the area node with the given name, or nil if absent.
func (c *Client) GetAreaNode(ctx context.Context, project, name string) (*Node, error) {
	var n Node
	err := c.getWithRetry(ctx, "GET", nodePath(project, "areas", name), nil, nil, &n)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateArea creates an area node under the project root. As with
// iterations, a 409 resolves to the existing node.
func (c *Client) CreateArea(ctx context.Context, project, name string) (*Node, error) {
	var n Node
	err := c.do(ctx, "POST", nodePath(project, "areas", ""), nil, map[string]any{"name": name}, &n)
	if IsConflict(err) {
		return c.GetAreaNode(ctx, project, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create area %q in %q: %w", name, project, err)
	}
	return &n, nil
}

// IterationRef names an iteration in team settings.
type IterationRef struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// TeamSettings is the subset of team configuration the provisioning
// pipeline manages.
type TeamSettings struct {
	DefaultAreaPath     string          `json:"defaultAreaPath,omitempty"`
	BacklogIteration    *IterationRef   `json:"backlogIteration,omitempty"`
	DefaultIteration    *IterationRef   `json:"defaultIteration,omitempty"`
	BacklogVisibilities map[string]bool `json:"backlogVisibilities,omitempty"`
}

// AddTeamIteration subscribes a team to an iteration path.
func (c *Client) AddTeamIteration(ctx context.Context, project, teamID, iterationPath string) error {
	path := "/" + url.PathEscape(project) + "/_apis/work/teamsettings/iterations"
	query := url.Values{"teamId": {teamID}}
	body := map[string]string{"id": iterationPath}

	if err := c.do(ctx, "POST", path, query, body, nil); err != nil {
		return fmt.Errorf("failed to add iteration %q to team %s: %w", iterationPath, teamID, err)
	}
	return nil
}

// UpdateTeamSettings patches a team's default area, backlog and default
// iterations, and backlog level visibilities.
func (c *Client) UpdateTeamSettings(ctx context.Context, project, teamID string, settings *TeamSettings) error {
	path := "/" + url.PathEscape(project) + "/" + url.PathEscape(teamID) + "/_apis/work/teamsettings"
	if err := c.do(ctx, "PATCH", path, nil, settings, nil); err != nil {
		return fmt.Errorf("failed to update settings of team %s: %w", teamID, err)
	}
	return nil
}
