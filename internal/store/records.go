package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/auditoria-ti/specsync/internal/model"
)

// UpsertStructure inserts or updates a project structure.
func (s *Store) UpsertStructure(ctx context.Context, ps *model.ProjectStructure) error {
	query := `
	INSERT INTO project_structures (id, product, project, base_application_id, team_name, start_date, sprint_weeks, process_template)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		product = excluded.product,
		project = excluded.project,
		base_application_id = excluded.base_application_id,
		team_name = excluded.team_name,
		start_date = excluded.start_date,
		sprint_weeks = excluded.sprint_weeks,
		process_template = excluded.process_template`

	_, err := s.conn.ExecContext(ctx, query,
		ps.ID, ps.Product, ps.Project,
		nullStr(ps.BaseApplicationID), nullStr(ps.TeamName),
		nullTime(ps.StartDate), ps.SprintWeeks, ps.ProcessTemplate)
	if err != nil {
		return fmt.Errorf("failed to upsert structure %s: %w", ps.ID, err)
	}
	return nil
}

// GetStructure returns the structure with the given id, or nil if absent.
func (s *Store) GetStructure(ctx context.Context, id string) (*model.ProjectStructure, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, product, project, base_application_id, team_name, start_date, sprint_weeks, process_template
	FROM project_structures WHERE id = ?`, id)
	ps, err := scanStructure(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ps, err
}

// ListStructures returns all project structures.
func (s *Store) ListStructures(ctx context.Context) ([]*model.ProjectStructure, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, product, project, base_application_id, team_name, start_date, sprint_weeks, process_template
	FROM project_structures ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("failed to list structures: %w", err)
	}
	defer rows.Close()

	var out []*model.ProjectStructure
	for rows.Next() {
		ps, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStructure(row scanner) (*model.ProjectStructure, error) {
	var ps model.ProjectStructure
	var appID, teamName sql.NullString
	var start sql.NullTime
	err := row.Scan(&ps.ID, &ps.Product, &ps.Project, &appID, &teamName, &start, &ps.SprintWeeks, &ps.ProcessTemplate)
	if err != nil {
		return nil, err
	}
	ps.BaseApplicationID = appID.String
	ps.TeamName = teamName.String
	if start.Valid {
		t := start.Time
		ps.StartDate = &t
	}
	return &ps, nil
}

// UpsertSpecProject inserts or updates a spec project.
func (s *Store) UpsertSpecProject(ctx context.Context, sp *model.SpecProject) error {
	query := `
	INSERT INTO spec_projects (id, application_id, project_name, agent, constitution, generator, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		application_id = excluded.application_id,
		project_name = excluded.project_name,
		agent = excluded.agent,
		constitution = excluded.constitution,
		generator = excluded.generator,
		updated_at = excluded.updated_at`

	now := time.Now().UTC()
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = now
	}
	sp.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx, query,
		sp.ID, nullStr(sp.ApplicationID), sp.ProjectName, sp.Agent,
		nullStr(sp.Constitution), boolInt(sp.Generator), sp.CreatedAt, sp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert spec project %s: %w", sp.ID, err)
	}
	return nil
}

// GetSpecProject returns the spec project with the given id, or nil if absent.
func (s *Store) GetSpecProject(ctx context.Context, id string) (*model.SpecProject, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, application_id, project_name, agent, constitution, generator, created_at, updated_at
	FROM spec_projects WHERE id = ?`, id)
	sp, err := scanSpecProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sp, err
}

// FindGeneratorProjects returns every generator-flagged spec project matching
// the correlation keys (application id, project name). The caller decides
// what zero or multiple matches mean; this query never picks one.
func (s *Store) FindGeneratorProjects(ctx context.Context, applicationID, projectName string) ([]*model.SpecProject, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, application_id, project_name, agent, constitution, generator, created_at, updated_at
	FROM spec_projects
	WHERE application_id = ? AND project_name = ? AND generator = 1
	ORDER BY created_at`, applicationID, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to query generator projects: %w", err)
	}
	defer rows.Close()

	var out []*model.SpecProject
	for rows.Next() {
		sp, err := scanSpecProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func scanSpecProject(row scanner) (*model.SpecProject, error) {
	var sp model.SpecProject
	var appID, constitution sql.NullString
	var generator int
	err := row.Scan(&sp.ID, &appID, &sp.ProjectName, &sp.Agent, &constitution, &generator, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sp.ApplicationID = appID.String
	sp.Constitution = constitution.String
	sp.Generator = generator != 0
	return &sp, nil
}

// UpsertRequirement inserts or updates a requirement.
func (s *Store) UpsertRequirement(ctx context.Context, r *model.Requirement) error {
	query := `
	INSERT INTO requirements (id, project_id, sequence, name, description, status, previous_status, remote_item_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		sequence = excluded.sequence,
		name = excluded.name,
		description = excluded.description,
		status = excluded.status,
		previous_status = excluded.previous_status,
		updated_at = excluded.updated_at`

	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx, query,
		r.ID, r.ProjectID, r.Sequence, r.Name, nullStr(r.Description),
		string(r.Status), nullStr(string(r.PreviousStatus)), r.RemoteItemID,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert requirement %s: %w", r.ID, err)
	}
	return nil
}

// ListRequirements returns all requirements of a spec project.
func (s *Store) ListRequirements(ctx context.Context, projectID string) ([]*model.Requirement, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, project_id, sequence, name, description, status, previous_status, remote_item_id, created_at, updated_at
	FROM requirements WHERE project_id = ? ORDER BY sequence`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requirements: %w", err)
	}
	defer rows.Close()

	var out []*model.Requirement
	for rows.Next() {
		var r model.Requirement
		var desc, prev sql.NullString
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Sequence, &r.Name, &desc,
			(*string)(&r.Status), &prev, &r.RemoteItemID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Description = desc.String
		r.PreviousStatus = model.RequirementStatus(prev.String)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// SetRequirementRemoteID records the remote backlog item linkage for a
// requirement. The update only applies when no linkage exists yet; a second
// writer observing a stale read cannot overwrite an established linkage.
// Returns true if the linkage was written.
func (s *Store) SetRequirementRemoteID(ctx context.Context, id string, remoteID int) (bool, error) {
	res, err := s.conn.ExecContext(ctx, `
	UPDATE requirements SET remote_item_id = ?, updated_at = ?
	WHERE id = ? AND remote_item_id = 0`, remoteID, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to set remote item id for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertTask inserts or updates a task.
func (s *Store) UpsertTask(ctx context.Context, t *model.Task) error {
	query := `
	INSERT INTO sdd_tasks (id, requirement_id, description, start_date, end_date, status, remote_task_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		description = excluded.description,
		start_date = excluded.start_date,
		end_date = excluded.end_date,
		status = excluded.status,
		updated_at = excluded.updated_at`

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx, query,
		t.ID, t.RequirementID, t.Description, t.StartDate, nullTime(t.EndDate),
		string(t.Status), t.RemoteTaskID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
	}
	return nil
}

// ListTasks returns all tasks of a requirement.
func (s *Store) ListTasks(ctx context.Context, requirementID string) ([]*model.Task, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, requirement_id, description, start_date, end_date, status, remote_task_id, created_at, updated_at
	FROM sdd_tasks WHERE requirement_id = ? ORDER BY start_date`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		var t model.Task
		var end sql.NullTime
		if err := rows.Scan(&t.ID, &t.RequirementID, &t.Description, &t.StartDate, &end,
			(*string)(&t.Status), &t.RemoteTaskID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if end.Valid {
			e := end.Time
			t.EndDate = &e
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// SetTaskRemoteID records the remote task linkage, first writer wins.
// Returns true if the linkage was written.
func (s *Store) SetTaskRemoteID(ctx context.Context, id string, remoteID int) (bool, error) {
	res, err := s.conn.ExecContext(ctx, `
	UPDATE sdd_tasks SET remote_task_id = ?, updated_at = ?
	WHERE id = ? AND remote_task_id = 0`, remoteID, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to set remote task id for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertDecision inserts or updates an architectural decision record.
func (s *Store) UpsertDecision(ctx context.Context, d *model.Decision) error {
	query := `
	INSERT INTO decisions (id, project_id, adr_id, title, status, start_date, end_date)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		status = excluded.status,
		end_date = excluded.end_date`

	_, err := s.conn.ExecContext(ctx, query,
		d.ID, d.ProjectID, d.ADRID, nullStr(d.Title), string(d.Status),
		d.StartDate, nullTime(d.EndDate))
	if err != nil {
		return fmt.Errorf("failed to upsert decision %s: %w", d.ID, err)
	}
	return nil
}

// ListDecisions returns all decisions of a spec project.
func (s *Store) ListDecisions(ctx context.Context, projectID string) ([]*model.Decision, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, project_id, adr_id, title, status, start_date, end_date
	FROM decisions WHERE project_id = ? ORDER BY start_date`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var out []*model.Decision
	for rows.Next() {
		var d model.Decision
		var title sql.NullString
		var end sql.NullTime
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.ADRID, &title,
			(*string)(&d.Status), &d.StartDate, &end); err != nil {
			return nil, err
		}
		d.Title = title.String
		if end.Valid {
			e := end.Time
			d.EndDate = &e
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
