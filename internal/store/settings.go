package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/auditoria-ti/specsync/internal/model"
)

// GetSetting returns the raw value stored under key, or "" if absent.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores value under key, replacing any existing value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `
	INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// SaveProvisioningRecord persists a provisioning record, including every
// status transition. The request and remote-resource references are stored
// as JSON columns; the record must be durable mid-run so a crash between
// steps still leaves an inspectable, resumable record.
func (s *Store) SaveProvisioningRecord(ctx context.Context, rec *model.ProvisioningRecord) error {
	reqJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("failed to encode provisioning request: %w", err)
	}
	teamsJSON, err := json.Marshal(rec.TeamIDs)
	if err != nil {
		return fmt.Errorf("failed to encode team ids: %w", err)
	}
	itersJSON, err := json.Marshal(rec.IterationPaths)
	if err != nil {
		return fmt.Errorf("failed to encode iteration paths: %w", err)
	}
	areasJSON, err := json.Marshal(rec.AreaNames)
	if err != nil {
		return fmt.Errorf("failed to encode area names: %w", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.conn.ExecContext(ctx, `
	INSERT INTO provisioning_records
		(id, request_json, status, error, project_id, project_url, team_ids, iteration_paths, area_names, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		error = excluded.error,
		project_id = excluded.project_id,
		project_url = excluded.project_url,
		team_ids = excluded.team_ids,
		iteration_paths = excluded.iteration_paths,
		area_names = excluded.area_names,
		updated_at = excluded.updated_at`,
		rec.ID, string(reqJSON), string(rec.Status), nullStr(rec.Error),
		nullStr(rec.ProjectID), nullStr(rec.ProjectURL),
		string(teamsJSON), string(itersJSON), string(areasJSON),
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save provisioning record %s: %w", rec.ID, err)
	}
	return nil
}

// GetProvisioningRecord returns the record with the given id, or nil if absent.
func (s *Store) GetProvisioningRecord(ctx context.Context, id string) (*model.ProvisioningRecord, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, request_json, status, error, project_id, project_url, team_ids, iteration_paths, area_names, created_at, updated_at
	FROM provisioning_records WHERE id = ?`, id)
	rec, err := scanProvisioningRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListProvisioningRecords returns all provisioning records, newest first.
func (s *Store) ListProvisioningRecords(ctx context.Context) ([]*model.ProvisioningRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, request_json, status, error, project_id, project_url, team_ids, iteration_paths, area_names, created_at, updated_at
	FROM provisioning_records ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list provisioning records: %w", err)
	}
	defer rows.Close()

	var out []*model.ProvisioningRecord
	for rows.Next() {
		rec, err := scanProvisioningRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanProvisioningRecord(row scanner) (*model.ProvisioningRecord, error) {
	var rec model.ProvisioningRecord
	var reqJSON, teamsJSON, itersJSON, areasJSON string
	var errMsg, projectID, projectURL sql.NullString

	err := row.Scan(&rec.ID, &reqJSON, (*string)(&rec.Status), &errMsg,
		&projectID, &projectURL, &teamsJSON, &itersJSON, &areasJSON,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(reqJSON), &rec.Request); err != nil {
		return nil, fmt.Errorf("failed to decode provisioning request for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(teamsJSON), &rec.TeamIDs); err != nil {
		return nil, fmt.Errorf("failed to decode team ids for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(itersJSON), &rec.IterationPaths); err != nil {
		return nil, fmt.Errorf("failed to decode iteration paths for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(areasJSON), &rec.AreaNames); err != nil {
		return nil, fmt.Errorf("failed to decode area names for %s: %w", rec.ID, err)
	}

	rec.Error = errMsg.String
	rec.ProjectID = projectID.String
	rec.ProjectURL = projectURL.String
	return &rec, nil
}
