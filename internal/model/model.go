// Package model defines the domain records that specsync reconciles:
// internally tracked project structures and SDD spec projects on one side,
// and the Azure DevOps resources provisioned from them on the other.
//
// The two internal datasets are independently keyed. A ProjectStructure is
// declared by operators when a deployment project is registered; a SpecProject
// is created by specification authors. Neither holds a foreign key to the
// other, so matching them is an explicit correlation step (see the correlate
// package) rather than a join.
package model

import "time"

// ProjectStructure is an internally declared deployment/organizational unit.
// Operators create these; linking one to a base application is an out-of-band
// repair performed when correlation fails. Structures are never auto-deleted.
type ProjectStructure struct {
	ID                string     `json:"id"`
	Product           string     `json:"product"`
	Project           string     `json:"project"`
	BaseApplicationID string     `json:"base_application_id,omitempty"`
	TeamName          string     `json:"team_name,omitempty"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	SprintWeeks       int        `json:"sprint_weeks,omitempty"`
	ProcessTemplate   string     `json:"process_template,omitempty"`
}

// SpecProject is an SDD tracking unit: the container for requirements, tasks
// and architectural decisions authored against one application.
//
// Only ApplicationID, ProjectName and Generator participate in correlation.
// Uniqueness of (ApplicationID, ProjectName) among generator projects is
// assumed but not enforced here; duplicate candidates must surface as an
// ambiguous correlation, never be silently resolved.
type SpecProject struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id,omitempty"`
	ProjectName   string    `json:"project_name"`
	Agent         string    `json:"agent"` // authoring agent (claude, gemini, copilot, ...)
	Constitution  string    `json:"constitution,omitempty"`
	Generator     bool      `json:"generator"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Requirement belongs to exactly one SpecProject. Status transitions are the
// only mutation channel the sync engine cares about; the previous status is
// retained for rollback and audit.
//
// RemoteItemID is the persisted linkage to the Azure DevOps backlog item
// created for this requirement. Zero means no remote item has been recorded.
type Requirement struct {
	ID             string            `json:"id"`
	ProjectID      string            `json:"project_id"`
	Sequence       string            `json:"sequence"` // e.g. "RF-001"
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Status         RequirementStatus `json:"status"`
	PreviousStatus RequirementStatus `json:"previous_status,omitempty"`
	RemoteItemID   int               `json:"remote_item_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Task belongs to exactly one Requirement. Its transition into TO_DO under an
// eligible requirement is what makes it a sync candidate.
type Task struct {
	ID            string     `json:"id"`
	RequirementID string     `json:"requirement_id"`
	Description   string     `json:"description"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Status        TaskStatus `json:"status"`
	RemoteTaskID  int        `json:"remote_task_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Decision is an architectural decision record tracked under a SpecProject.
// Decisions are read-only from the sync engine's point of view: they are
// carried for completeness and never pushed to the external system.
type Decision struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	ADRID     string         `json:"adr_id"`
	Title     string         `json:"title,omitempty"`
	Status    DecisionStatus `json:"status"`
	StartDate time.Time      `json:"start_date"`
	EndDate   *time.Time     `json:"end_date,omitempty"`
}

// DecisionStatus is the ADR lifecycle state.
type DecisionStatus string

const (
	DecisionProposed   DecisionStatus = "PROPOSED"
	DecisionAccepted   DecisionStatus = "ACCEPTED"
	DecisionSuperseded DecisionStatus = "SUPERSEDED"
	DecisionDeprecated DecisionStatus = "DEPRECATED"
)
