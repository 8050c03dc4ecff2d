package store

// schemaSQL defines the full specsync schema. Statements are idempotent so
// InitSchema can run on every startup.
//
// requirements and sdd_tasks carry the remote-ID linkage columns
// (remote_item_id, remote_task_id). Those columns are the durable half of the
// synchronizer's idempotency contract: a non-zero value means a remote
// resource exists for the record and no creation call may be issued again.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS project_structures (
    id                  TEXT PRIMARY KEY,
    product             TEXT NOT NULL,
    project             TEXT NOT NULL,
    base_application_id TEXT,
    team_name           TEXT,
    start_date          TIMESTAMP,
    sprint_weeks        INTEGER NOT NULL DEFAULT 2,
    process_template    TEXT NOT NULL DEFAULT 'Scrum'
);

CREATE TABLE IF NOT EXISTS spec_projects (
    id             TEXT PRIMARY KEY,
    application_id TEXT,
    project_name   TEXT NOT NULL,
    agent          TEXT NOT NULL DEFAULT 'claude',
    constitution   TEXT,
    generator      INTEGER NOT NULL DEFAULT 0,
    created_at     TIMESTAMP NOT NULL,
    updated_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spec_projects_correlation
    ON spec_projects(application_id, project_name, generator);

CREATE TABLE IF NOT EXISTS requirements (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL REFERENCES spec_projects(id) ON DELETE CASCADE,
    sequence        TEXT NOT NULL,
    name            TEXT NOT NULL,
    description     TEXT,
    status          TEXT NOT NULL,
    previous_status TEXT,
    remote_item_id  INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL,
    UNIQUE(project_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_requirements_status
    ON requirements(project_id, status);

CREATE TABLE IF NOT EXISTS sdd_tasks (
    id             TEXT PRIMARY KEY,
    requirement_id TEXT NOT NULL REFERENCES requirements(id) ON DELETE CASCADE,
    description    TEXT NOT NULL,
    start_date     TIMESTAMP NOT NULL,
    end_date       TIMESTAMP,
    status         TEXT NOT NULL,
    remote_task_id INTEGER NOT NULL DEFAULT 0,
    created_at     TIMESTAMP NOT NULL,
    updated_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sdd_tasks_requirement
    ON sdd_tasks(requirement_id, status);

CREATE TABLE IF NOT EXISTS decisions (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES spec_projects(id) ON DELETE CASCADE,
    adr_id     TEXT NOT NULL,
    title      TEXT,
    status     TEXT NOT NULL,
    start_date TIMESTAMP NOT NULL,
    end_date   TIMESTAMP
);

CREATE TABLE IF NOT EXISTS provisioning_records (
    id              TEXT PRIMARY KEY,
    request_json    TEXT NOT NULL,
    status          TEXT NOT NULL,
    error           TEXT,
    project_id      TEXT,
    project_url     TEXT,
    team_ids        TEXT,
    iteration_paths TEXT,
    area_names      TEXT,
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provisioning_status
    ON provisioning_records(status);
`
