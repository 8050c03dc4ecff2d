// Package provision drives multi-step Azure DevOps project provisioning
// as an explicit state machine with a durable record.
//
// The remote API offers no multi-resource transaction, so the pipeline
// never pretends one exists: each step is existence-checked before it
// creates anything, every status transition and every created resource is
// persisted immediately, and a failing step leaves everything already
// created in place. A failed record therefore describes exactly which
// resources exist, and resuming it re-runs only the steps whose resources
// are still missing. There are no compensating deletes.
package provision

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/auditoria-ti/specsync/internal/azure"
	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/store"
)

// sustainingSuffix names the extra team that tracks sustaining work in
// monthly iterations.
const sustainingSuffix = "_SUSTENTACAO"

// API is the subset of the Azure DevOps client the pipeline needs.
// Satisfied by *azure.Client; tests substitute a fake.
type API interface {
	GetProject(ctx context.Context, name string) (*azure.Project, error)
	CreateProject(ctx context.Context, name, description, processTemplate string) (*azure.Project, error)
	ProjectURL(project string) string
	DefaultTeam(ctx context.Context, project string) (*azure.Team, error)
	GetTeam(ctx context.Context, project, team string) (*azure.Team, error)
	CreateTeam(ctx context.Context, project, name, description string) (*azure.Team, error)
	RenameTeam(ctx context.Context, project, teamID, newName string) (*azure.Team, error)
	CreateIteration(ctx context.Context, project, parent, name string, start, finish *time.Time) (*azure.Node, error)
	CreateArea(ctx context.Context, project, name string) (*azure.Node, error)
	AddTeamIteration(ctx context.Context, project, teamID, iterationPath string) error
	UpdateTeamSettings(ctx context.Context, project, teamID string, settings *azure.TeamSettings) error
}

// Pipeline provisions Azure DevOps projects from ProvisioningRequests.
type Pipeline struct {
	store        *store.Store
	api          API
	logger       *log.Logger
	defaultAreas []string
	now          func() time.Time
	notify       func(*model.ProvisioningRecord)
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the pipeline logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithDefaultAreas sets the area names created when a request does not
// list any. When neither is present the team's own area is created.
func WithDefaultAreas(areas []string) Option {
	return func(p *Pipeline) { p.defaultAreas = areas }
}

// WithClock overrides the clock used for monthly iteration windows.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithNotify registers a callback invoked after every persisted status
// transition of a record.
func WithNotify(fn func(*model.ProvisioningRecord)) Option {
	return func(p *Pipeline) { p.notify = fn }
}

// New creates a Pipeline over the given store and API.
func New(st *store.Store, api API, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  st,
		api:    api,
		logger: log.New(os.Stderr, "[provision] ", log.LstdFlags),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run provisions the request and returns its record. A step failure is
// not an error from Run's point of view: the returned record carries
// status failed and the step's error, together with references to every
// resource created before the failure. The returned error is reserved for
// persistence problems that prevent the record from being tracked at all.
func (p *Pipeline) Run(ctx context.Context, req *model.ProvisioningRequest) (*model.ProvisioningRecord, error) {
	now := p.now()
	rec := &model.ProvisioningRecord{
		ID:        uuid.NewString(),
		Request:   *req,
		Status:    model.ProvisioningPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.save(ctx, rec); err != nil {
		return nil, err
	}
	return p.execute(ctx, rec)
}

// Resume re-runs a non-succeeded record. Steps whose resources already
// exist are skipped by their existence checks, so only the remaining work
// is performed.
func (p *Pipeline) Resume(ctx context.Context, recordID string) (*model.ProvisioningRecord, error) {
	rec, err := p.store.GetProvisioningRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load provisioning record %s: %w", recordID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("provisioning record %s not found", recordID)
	}
	if rec.Status == model.ProvisioningSucceeded {
		return rec, nil
	}
	rec.Error = ""
	return p.execute(ctx, rec)
}

func (p *Pipeline) execute(ctx context.Context, rec *model.ProvisioningRecord) (*model.ProvisioningRecord, error) {
	rec.Status = model.ProvisioningRunning
	if err := p.save(ctx, rec); err != nil {
		return nil, err
	}

	steps := []struct {
		name string
		run  func(context.Context, *model.ProvisioningRecord) error
	}{
		{"create project", p.ensureProject},
		{"configure teams", p.ensureTeams},
		{"create iterations", p.ensureIterations},
		{"create areas", p.ensureAreas},
		{"apply team settings", p.applyTeamSettings},
	}

	for _, step := range steps {
		if err := step.run(ctx, rec); err != nil {
			rec.Status = model.ProvisioningFailed
			rec.Error = fmt.Sprintf("%s: %v", step.name, err)
			p.logger.Printf("record %s failed at %s: %v", rec.ID, step.name, err)
			if saveErr := p.save(ctx, rec); saveErr != nil {
				return nil, saveErr
			}
			return rec, nil
		}
		// Persist step progress so a crash leaves a resumable record.
		if err := p.save(ctx, rec); err != nil {
			return nil, err
		}
	}

	rec.Status = model.ProvisioningSucceeded
	if err := p.save(ctx, rec); err != nil {
		return nil, err
	}
	p.logger.Printf("record %s: project %q provisioned", rec.ID, rec.Request.Project)
	return rec, nil
}

func (p *Pipeline) save(ctx context.Context, rec *model.ProvisioningRecord) error {
	rec.UpdatedAt = p.now()
	if err := p.store.SaveProvisioningRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist provisioning record %s: %w", rec.ID, err)
	}
	if p.notify != nil {
		p.notify(rec)
	}
	return nil
}

// teamName resolves the sanitized primary team name of a request.
func teamName(req *model.ProvisioningRequest) string {
	if req.TeamName != "" {
		return SanitizeTeamName(req.TeamName)
	}
	return DefaultTeamName(req.Project)
}

func sustainingTeamName(req *model.ProvisioningRequest) string {
	return teamName(req) + sustainingSuffix
}

func (p *Pipeline) ensureProject(ctx context.Context, rec *model.ProvisioningRecord) error {
	req := &rec.Request

	proj, err := p.api.GetProject(ctx, req.Project)
	if err != nil {
		return err
	}
	if proj == nil {
		description := fmt.Sprintf("%s - %s", req.Product, req.Project)
		proj, err = p.api.CreateProject(ctx, req.Project, description, req.ProcessTemplate)
		if err != nil {
			return err
		}
	} else {
		p.logger.Printf("project %q already exists, reusing", req.Project)
	}

	rec.ProjectID = proj.ID
	rec.ProjectURL = p.api.ProjectURL(req.Project)
	return nil
}

func (p *Pipeline) ensureTeams(ctx context.Context, rec *model.ProvisioningRecord) error {
	req := &rec.Request
	name := teamName(req)

	primary, err := p.api.GetTeam(ctx, req.Project, name)
	if err != nil {
		return err
	}
	if primary == nil {
		def, err := p.api.DefaultTeam(ctx, req.Project)
		if err != nil {
			return err
		}
		primary, err = p.api.RenameTeam(ctx, req.Project, def.ID, name)
		if err != nil {
			return err
		}
	}
	addTeamID(rec, primary.ID)

	if !req.Sustaining {
		return nil
	}
	susName := sustainingTeamName(req)
	sus, err := p.api.GetTeam(ctx, req.Project, susName)
	if err != nil {
		return err
	}
	if sus == nil {
		sus, err = p.api.CreateTeam(ctx, req.Project, susName,
			fmt.Sprintf("Time de sustentação do projeto %s", req.Project))
		if err != nil {
			return err
		}
	}
	addTeamID(rec, sus.ID)
	return nil
}

func (p *Pipeline) ensureIterations(ctx context.Context, rec *model.ProvisioningRecord) error {
	req := &rec.Request
	name := teamName(req)

	start := req.StartDate
	if start.IsZero() {
		start = p.now()
	}

	if err := p.createIterationTree(ctx, rec, name, SprintWindows(start, req.IterationCount, req.SprintWeeks)); err != nil {
		return err
	}
	if req.Sustaining {
		if err := p.createIterationTree(ctx, rec, sustainingTeamName(req), MonthlyWindows(p.now())); err != nil {
			return err
		}
	}
	return nil
}

// createIterationTree creates a root iteration named after the team and
// one child per window, recording every resulting path on the record.
func (p *Pipeline) createIterationTree(ctx context.Context, rec *model.ProvisioningRecord, root string, windows []Window) error {
	project := rec.Request.Project

	if _, err := p.api.CreateIteration(ctx, project, "", root, nil, nil); err != nil {
		return err
	}
	addIterationPath(rec, `\`+root)

	for _, w := range windows {
		start, finish := w.Start, w.Finish
		if _, err := p.api.CreateIteration(ctx, project, root, w.Name, &start, &finish); err != nil {
			return err
		}
		addIterationPath(rec, `\`+root+`\`+w.Name)
	}
	return nil
}

func (p *Pipeline) ensureAreas(ctx context.Context, rec *model.ProvisioningRecord) error {
	req := &rec.Request

	areas := req.Areas
	if len(areas) == 0 {
		areas = p.defaultAreas
	}
	if len(areas) == 0 {
		areas = []string{teamName(req)}
	}

	for _, area := range areas {
		if _, err := p.api.CreateArea(ctx, req.Project, area); err != nil {
			return err
		}
		addAreaName(rec, area)
	}
	return nil
}

func (p *Pipeline) applyTeamSettings(ctx context.Context, rec *model.ProvisioningRecord) error {
	req := &rec.Request
	if err := p.configureTeam(ctx, rec, teamName(req)); err != nil {
		return err
	}
	if req.Sustaining {
		return p.configureTeam(ctx, rec, sustainingTeamName(req))
	}
	return nil
}

// configureTeam subscribes a team to its iteration tree and points its
// defaults at its own area and root iteration.
func (p *Pipeline) configureTeam(ctx context.Context, rec *model.ProvisioningRecord, name string) error {
	project := rec.Request.Project

	team, err := p.api.GetTeam(ctx, project, name)
	if err != nil {
		return err
	}
	if team == nil {
		return fmt.Errorf("team %q missing after team step", name)
	}

	rootPath := `\` + name
	for _, path := range rec.IterationPaths {
		if path == rootPath || hasPrefixPath(path, rootPath) {
			if err := p.api.AddTeamIteration(ctx, project, team.ID, path); err != nil {
				return err
			}
		}
	}

	settings := &azure.TeamSettings{
		DefaultAreaPath:  project + `\` + name,
		BacklogIteration: &azure.IterationRef{Name: name, Path: rootPath},
		DefaultIteration: &azure.IterationRef{Name: name, Path: rootPath},
		BacklogVisibilities: map[string]bool{
			"Microsoft.EpicCategory":        true,
			"Microsoft.FeatureCategory":     true,
			"Microsoft.RequirementCategory": true,
		},
	}
	return p.api.UpdateTeamSettings(ctx, project, team.ID, settings)
}

func hasPrefixPath(path, root string) bool {
	return len(path) > len(root) && path[:len(root)] == root && path[len(root)] == '\\'
}

func addTeamID(rec *model.ProvisioningRecord, id string) {
	for _, existing := range rec.TeamIDs {
		if existing == id {
			return
		}
	}
	rec.TeamIDs = append(rec.TeamIDs, id)
}

func addIterationPath(rec *model.ProvisioningRecord, path string) {
	for _, existing := range rec.IterationPaths {
		if existing == path {
			return
		}
	}
	rec.IterationPaths = append(rec.IterationPaths, path)
}

func addAreaName(rec *model.ProvisioningRecord, name string) {
	for _, existing := range rec.AreaNames {
		if existing == name {
			return
		}
	}
	rec.AreaNames = append(rec.AreaNames, name)
}
