package azure

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Project is an Azure DevOps project.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	State       string `json:"state,omitempty"`
}

// operation is the async handle returned by project creation.
type operation struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// processTemplates maps process template names to the system type GUIDs
// Azure DevOps assigns to its default processes.
var processTemplates = map[string]string{
	"Scrum": "6b724908-ef14-45cf-84f8-768b5384da45",
	"Agile": "adcc42ab-9882-485e-a3ed-7678f01f66bc",
	"Basic": "b8a3a935-7e91-48b8-a94c-606d37c3e9f2",
	"CMMI":  "27450541-8e31-4150-9947-dc59f998fc01",
}

// ProcessTemplateID returns the type GUID for a process template name,
// defaulting to Scrum for unknown names.
func ProcessTemplateID(name string) string {
	if id, ok := processTemplates[name]; ok {
		return id
	}
	return processTemplates["Scrum"]
}

// GetProject returns the project with the given name, or nil if it does
// not exist.
func (c *Client) GetProject(ctx context.Context, name string) (*Project, error) {
	var p Project
	err := c.getWithRetry(ctx, "GET", "/_apis/projects/"+url.PathEscape(name), nil, nil, &p)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a project and waits for the asynchronous creation
// operation to complete. The caller is expected to have checked for an
// existing project first; a 409 from the API surfaces as an error here.
func (c *Client) CreateProject(ctx context.Context, name, description, processTemplate string) (*Project, error) {
	body := map[string]any{
		"name":        name,
		"description": description,
		"visibility":  "private",
		"capabilities": map[string]any{
			"versioncontrol": map[string]any{
				"sourceControlType": "Git",
			},
			"processTemplate": map[string]any{
				"templateTypeId": ProcessTemplateID(processTemplate),
			},
		},
	}

	var op operation
	if err := c.do(ctx, "POST", "/_apis/projects", nil, body, &op); err != nil {
		return nil, fmt.Errorf("failed to create project %q: %w", name, err)
	}
	if op.ID == "" {
		return nil, fmt.Errorf("project creation for %q returned no operation id", name)
	}

	if err := c.waitForOperation(ctx, op.ID); err != nil {
		return nil, fmt.Errorf("project creation for %q did not complete: %w", name, err)
	}

	p, err := c.GetProject(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %q missing after successful creation operation", name)
	}
	c.logger.Printf("created project %q (id %s)", name, p.ID)
	return p, nil
}

// waitForOperation polls an async operation until it succeeds, fails, or
// the poll budget is exhausted. Project creation on Azure DevOps typically
// takes a few seconds.
func (c *Client) waitForOperation(ctx context.Context, operationID string) error {
	const (
		pollInterval = 2 * time.Second
		maxAttempts  = 30
	)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var op operation
		err := c.getWithRetry(ctx, "GET", "/_apis/operations/"+url.PathEscape(operationID), nil, nil, &op)
		if err != nil {
			return err
		}
		switch op.Status {
		case "succeeded":
			return nil
		case "failed", "cancelled":
			return fmt.Errorf("operation %s ended with status %q", operationID, op.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return fmt.Errorf("operation %s still pending after %d attempts", operationID, maxAttempts)
}
