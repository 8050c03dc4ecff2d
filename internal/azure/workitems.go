package azure

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// WorkItem is a work item (Product Backlog Item, Task, ...) in a project.
type WorkItem struct {
	ID     int            `json:"id"`
	URL    string         `json:"url,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// patchOp is one entry of a JSON Patch document, the format the work item
// endpoints require for creation and update.
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// WorkItemFields are the field values for a new work item.
type WorkItemFields struct {
	Title         string
	Description   string
	AreaPath      string
	IterationPath string
	Tags          string
}

func (f *WorkItemFields) patchDocument() []patchOp {
	doc := []patchOp{
		{Op: "add", Path: "/fields/System.Title", Value: f.Title},
	}
	if f.Description != "" {
		doc = append(doc, patchOp{Op: "add", Path: "/fields/System.Description", Value: f.Description})
	}
	if f.AreaPath != "" {
		doc = append(doc, patchOp{Op: "add", Path: "/fields/System.AreaPath", Value: f.AreaPath})
	}
	if f.IterationPath != "" {
		doc = append(doc, patchOp{Op: "add", Path: "/fields/System.IterationPath", Value: f.IterationPath})
	}
	if f.Tags != "" {
		doc = append(doc, patchOp{Op: "add", Path: "/fields/System.Tags", Value: f.Tags})
	}
	return doc
}

// CreateWorkItem creates a work item of the given type. When parentURL is
// non-empty the new item is linked as a child of that item through a
// hierarchy-reverse relation.
func (c *Client) CreateWorkItem(ctx context.Context, project, itemType string, fields *WorkItemFields, parentURL string) (*WorkItem, error) {
	doc := fields.patchDocument()
	if parentURL != "" {
		doc = append(doc, patchOp{
			Op:   "add",
			Path: "/relations/-",
			Value: map[string]any{
				"rel": "System.LinkTypes.Hierarchy-Reverse",
				"url": parentURL,
			},
		})
	}

	path := "/" + url.PathEscape(project) + "/_apis/wit/workitems/$" + url.PathEscape(itemType)
	var wi WorkItem
	if err := c.send(ctx, "POST", path, nil, "application/json-patch+json", doc, &wi); err != nil {
		return nil, fmt.Errorf("failed to create %s %q: %w", itemType, fields.Title, err)
	}
	c.logger.Printf("created %s #%d (%s)", itemType, wi.ID, fields.Title)
	return &wi, nil
}

// WorkItemURL returns the API URL of a work item in this organization.
// Parent links reference items by this URL.
func (c *Client) WorkItemURL(id int) string {
	return fmt.Sprintf("%s/_apis/wit/workItems/%d", c.baseURL, id)
}

// GetWorkItem returns the work item with the given id, or nil if absent.
func (c *Client) GetWorkItem(ctx context.Context, id int) (*WorkItem, error) {
	path := fmt.Sprintf("/_apis/wit/workitems/%d", id)
	var wi WorkItem
	err := c.getWithRetry(ctx, "GET", path, nil, nil, &wi)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wi, nil
}

// wiqlResult is the shape of a WIQL query response.
type wiqlResult struct {
	WorkItems []struct {
		ID  int    `json:"id"`
		URL string `json:"url"`
	} `json:"workItems"`
}

// FindWorkItemByTitle queries the project for a work item of the given
// type whose title contains the given key and returns its id, or 0 when
// none matches. The key is expected to be a stable business identifier
// with its trailing delimiter (a requirement sequence code as "RF-001 - ",
// or a full task title), so at most one item should match; when several
// do, the oldest (lowest id) wins, matching creation order. The type
// filter keeps a requirement probe from matching its own tasks, whose
// titles start with the same sequence code.
//
// This is the remote half of the duplicate check: it catches work items
// created by an earlier pass whose id linkage was lost locally.
func (c *Client) FindWorkItemByTitle(ctx context.Context, project, itemType, titleKey string) (int, error) {
	// WIQL string literals escape single quotes by doubling them.
	escaped := strings.ReplaceAll(titleKey, "'", "''")
	query := map[string]string{
		"query": fmt.Sprintf(
			"SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project AND [System.WorkItemType] = '%s' AND [System.Title] CONTAINS '%s' ORDER BY [System.Id]",
			strings.ReplaceAll(itemType, "'", "''"), escaped),
	}

	path := "/" + url.PathEscape(project) + "/_apis/wit/wiql"
	var res wiqlResult
	// WIQL is a POST but semantically a read; bounded retry is safe.
	if err := c.getWithRetry(ctx, "POST", path, nil, query, &res); err != nil {
		return 0, fmt.Errorf("work item query for %q failed: %w", titleKey, err)
	}
	if len(res.WorkItems) == 0 {
		return 0, nil
	}
	return res.WorkItems[0].ID, nil
}
