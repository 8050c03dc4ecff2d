package correlate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/store"
)

const appID = "09490777-a5db-4f8a-aeed-e4e68dec8f71"

func setupResolver(t *testing.T) (*Resolver, *store.Store) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return NewResolver(s), s
}

func seedProject(t *testing.T, s *store.Store, id, applicationID, name string, generator bool) {
	t.Helper()
	sp := &model.SpecProject{
		ID:            id,
		ApplicationID: applicationID,
		ProjectName:   name,
		Agent:         "claude",
		Generator:     generator,
	}
	if err := s.UpsertSpecProject(context.Background(), sp); err != nil {
		t.Fatalf("failed to seed spec project: %v", err)
	}
}

func structure(project, baseAppID string) *model.ProjectStructure {
	return &model.ProjectStructure{
		ID:                "projeto-1767892009925",
		Product:           "Plataforma Digital",
		Project:           project,
		BaseApplicationID: baseAppID,
	}
}

func TestResolveExactMatch(t *testing.T) {
	r, s := setupResolver(t)
	seedProject(t, s, "sdd-1", appID, "TODOS-JUNTOS", true)

	res, err := r.Resolve(context.Background(), structure("TODOS-JUNTOS", appID))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Outcome != Resolved {
		t.Fatalf("outcome = %s, want resolved", res.Outcome)
	}
	if res.Project == nil || res.Project.ID != "sdd-1" {
		t.Errorf("resolved project = %+v, want sdd-1", res.Project)
	}
	if res.Err() != nil {
		t.Errorf("resolved result should have nil Err, got %v", res.Err())
	}
}

func TestResolveNotFound(t *testing.T) {
	r, s := setupResolver(t)

	// Generator flag off: must not match.
	seedProject(t, s, "sdd-1", appID, "TODOS-JUNTOS", false)

	res, err := r.Resolve(context.Background(), structure("TODOS-JUNTOS", appID))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Outcome != NotFound {
		t.Fatalf("outcome = %s, want not-found", res.Outcome)
	}
	if !errors.Is(res.Err(), ErrCorrelationNotFound) {
		t.Errorf("Err() = %v, want ErrCorrelationNotFound", res.Err())
	}
}

func TestResolveEmptyBaseApplicationID(t *testing.T) {
	r, s := setupResolver(t)
	seedProject(t, s, "sdd-1", appID, "TODOS-JUNTOS", true)

	res, err := r.Resolve(context.Background(), structure("TODOS-JUNTOS", ""))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Outcome != NotFound {
		t.Fatalf("outcome = %s, want not-found for empty base application id", res.Outcome)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	r, s := setupResolver(t)
	seedProject(t, s, "sdd-1", appID, "TODOS-JUNTOS", true)
	seedProject(t, s, "sdd-2", appID, "TODOS-JUNTOS", true)

	res, err := r.Resolve(context.Background(), structure("TODOS-JUNTOS", appID))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Outcome != Ambiguous {
		t.Fatalf("outcome = %s, want ambiguous", res.Outcome)
	}
	if res.Project != nil {
		t.Error("ambiguous result must not pick a project")
	}
	if len(res.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(res.Candidates))
	}

	err = res.Err()
	if !errors.Is(err, ErrCorrelationAmbiguous) {
		t.Fatalf("Err() = %v, want ErrCorrelationAmbiguous", err)
	}
	// The error must name the candidates so the operator can act on it.
	if !strings.Contains(err.Error(), "sdd-1") || !strings.Contains(err.Error(), "sdd-2") {
		t.Errorf("error message should list candidate ids: %v", err)
	}
}

// TestResolveTotality checks that for any structure with a non-empty base
// application id, exactly one of the three outcomes is produced.
func TestResolveTotality(t *testing.T) {
	r, s := setupResolver(t)
	seedProject(t, s, "sdd-1", appID, "UM", true)
	seedProject(t, s, "sdd-2", appID, "DOIS", true)
	seedProject(t, s, "sdd-3", appID, "DOIS", true)

	cases := []struct {
		project string
		want    Outcome
	}{
		{"UM", Resolved},
		{"DOIS", Ambiguous},
		{"TRES", NotFound},
	}
	for _, tc := range cases {
		res, err := r.Resolve(context.Background(), structure(tc.project, appID))
		if err != nil {
			t.Fatalf("resolve %s failed: %v", tc.project, err)
		}
		if res.Outcome != tc.want {
			t.Errorf("project %s: outcome = %s, want %s", tc.project, res.Outcome, tc.want)
		}
	}
}
