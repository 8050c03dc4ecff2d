package model

import "time"

// ProvisioningStatus is the state of a provisioning run.
//
// pending → provisioning → succeeded | failed. A failed record retains
// references to every resource that was created before the failing step.
type ProvisioningStatus string

const (
	ProvisioningPending   ProvisioningStatus = "pending"
	ProvisioningRunning   ProvisioningStatus = "provisioning"
	ProvisioningSucceeded ProvisioningStatus = "succeeded"
	ProvisioningFailed    ProvisioningStatus = "failed"
)

// ProvisioningRequest is the declarative configuration for provisioning an
// Azure DevOps project with its teams, iterations and areas. A request is
// submitted once and produces exactly one ProvisioningRecord.
type ProvisioningRequest struct {
	Product         string    `json:"product" yaml:"product"`
	Project         string    `json:"project" yaml:"project"`
	ProcessTemplate string    `json:"process_template" yaml:"process_template"` // Scrum, Agile, Basic, CMMI
	TeamName        string    `json:"team_name" yaml:"team_name"`
	StartDate       time.Time `json:"start_date" yaml:"start_date"`
	Sustaining      bool      `json:"sustaining" yaml:"sustaining"`
	IterationCount  int       `json:"iteration_count" yaml:"iteration_count"`
	SprintWeeks     int       `json:"sprint_weeks" yaml:"sprint_weeks"`
	Areas           []string  `json:"areas,omitempty" yaml:"areas,omitempty"`
}

// ProvisioningRecord is the durable result of a provisioning run. The
// reference fields record exactly which remote resources exist, which can be
// a strict subset of the request if a later step failed. That makes a retry
// resumable: completed steps are skipped by their existence checks.
type ProvisioningRecord struct {
	ID      string              `json:"id"`
	Request ProvisioningRequest `json:"request"`
	Status  ProvisioningStatus  `json:"status"`
	Error   string              `json:"error,omitempty"`

	// References to remote resources actually created or confirmed.
	ProjectID      string   `json:"project_id,omitempty"`
	ProjectURL     string   `json:"project_url,omitempty"`
	TeamIDs        []string `json:"team_ids,omitempty"`
	IterationPaths []string `json:"iteration_paths,omitempty"`
	AreaNames      []string `json:"area_names,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
