package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/auditoria-ti/specsync/internal/model"
)

// setupTestStore creates a temporary database for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return s
}

func seedSpecProject(t *testing.T, s *Store, id, appID, name string, generator bool) {
	t.Helper()
	sp := &model.SpecProject{
		ID:            id,
		ApplicationID: appID,
		ProjectName:   name,
		Agent:         "claude",
		Generator:     generator,
	}
	if err := s.UpsertSpecProject(context.Background(), sp); err != nil {
		t.Fatalf("failed to seed spec project: %v", err)
	}
}

func TestStructureRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	ps := &model.ProjectStructure{
		ID:                "projeto-1767892009925",
		Product:           "Plataforma Digital",
		Project:           "TODOS-JUNTOS",
		BaseApplicationID: "09490777-a5db-4f8a-aeed-e4e68dec8f71",
		TeamName:          "Time TODOS JUNTOS",
		StartDate:         &start,
		SprintWeeks:       2,
		ProcessTemplate:   "Scrum",
	}
	if err := s.UpsertStructure(ctx, ps); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := s.GetStructure(ctx, ps.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("structure not found after upsert")
	}
	if got.Project != "TODOS-JUNTOS" || got.BaseApplicationID != ps.BaseApplicationID {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Errorf("start date mismatch: %v", got.StartDate)
	}

	// Upsert with a changed field replaces, not duplicates.
	ps.TeamName = "Time_TODOS_JUNTOS"
	if err := s.UpsertStructure(ctx, ps); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	all, err := s.ListStructures(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 structure, got %d", len(all))
	}
	if all[0].TeamName != "Time_TODOS_JUNTOS" {
		t.Errorf("team name not updated: %s", all[0].TeamName)
	}
}

func TestGetStructureMissing(t *testing.T) {
	s := setupTestStore(t)
	got, err := s.GetStructure(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing structure")
	}
}

func TestFindGeneratorProjects(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	appID := "09490777-a5db-4f8a-aeed-e4e68dec8f71"
	seedSpecProject(t, s, "sdd-1", appID, "TODOS-JUNTOS", true)
	seedSpecProject(t, s, "sdd-2", appID, "TODOS-JUNTOS", false) // generator off
	seedSpecProject(t, s, "sdd-3", appID, "OUTRO-PROJETO", true) // different name
	seedSpecProject(t, s, "sdd-4", "other-app", "TODOS-JUNTOS", true)

	got, err := s.FindGeneratorProjects(ctx, appID, "TODOS-JUNTOS")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "sdd-1" {
		t.Fatalf("expected exactly sdd-1, got %d matches", len(got))
	}

	// A duplicate generator project must be returned too, not hidden.
	seedSpecProject(t, s, "sdd-5", appID, "TODOS-JUNTOS", true)
	got, err = s.FindGeneratorProjects(ctx, appID, "TODOS-JUNTOS")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
}

func TestRequirementRemoteIDFirstWriterWins(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	seedSpecProject(t, s, "sdd-1", "app-1", "P", true)
	r := &model.Requirement{
		ID:        "req-1",
		ProjectID: "sdd-1",
		Sequence:  "RF-001",
		Name:      "Login",
		Status:    model.StatusReadyForDev,
	}
	if err := s.UpsertRequirement(ctx, r); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	wrote, err := s.SetRequirementRemoteID(ctx, "req-1", 4711)
	if err != nil {
		t.Fatalf("set remote id failed: %v", err)
	}
	if !wrote {
		t.Fatal("first write should succeed")
	}

	// Second write must not overwrite the established linkage.
	wrote, err = s.SetRequirementRemoteID(ctx, "req-1", 9999)
	if err != nil {
		t.Fatalf("set remote id failed: %v", err)
	}
	if wrote {
		t.Fatal("second write should be rejected")
	}

	reqs, err := s.ListRequirements(ctx, "sdd-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(reqs) != 1 || reqs[0].RemoteItemID != 4711 {
		t.Fatalf("remote id = %d, want 4711", reqs[0].RemoteItemID)
	}
}

func TestTaskRoundTripAndRemoteID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	seedSpecProject(t, s, "sdd-1", "app-1", "P", true)
	r := &model.Requirement{ID: "req-1", ProjectID: "sdd-1", Sequence: "RF-001", Name: "N", Status: model.StatusReadyForDev}
	if err := s.UpsertRequirement(ctx, r); err != nil {
		t.Fatalf("upsert requirement failed: %v", err)
	}

	task := &model.Task{
		ID:            "task-1",
		RequirementID: "req-1",
		Description:   "Implement endpoint",
		StartDate:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Status:        model.TaskToDo,
	}
	if err := s.UpsertTask(ctx, task); err != nil {
		t.Fatalf("upsert task failed: %v", err)
	}

	if wrote, err := s.SetTaskRemoteID(ctx, "task-1", 101); err != nil || !wrote {
		t.Fatalf("set task remote id: wrote=%v err=%v", wrote, err)
	}
	if wrote, _ := s.SetTaskRemoteID(ctx, "task-1", 202); wrote {
		t.Fatal("second task remote id write should be rejected")
	}

	tasks, err := s.ListTasks(ctx, "req-1")
	if err != nil {
		t.Fatalf("list tasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].RemoteTaskID != 101 {
		t.Fatalf("task remote id = %d, want 101", tasks[0].RemoteTaskID)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	got, err := s.GetSetting(ctx, "integration-config")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty value for missing key, got %q", got)
	}

	if err := s.SetSetting(ctx, "integration-config", `{"azureDevOps":{}}`); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := s.SetSetting(ctx, "integration-config", `{"azureDevOps":{"organizationUrl":"x"}}`); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err = s.GetSetting(ctx, "integration-config")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != `{"azureDevOps":{"organizationUrl":"x"}}` {
		t.Errorf("unexpected value: %s", got)
	}
}

func TestProvisioningRecordRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := &model.ProvisioningRecord{
		ID: "prov-1",
		Request: model.ProvisioningRequest{
			Product:         "Produto",
			Project:         "NOVO-PROJETO",
			ProcessTemplate: "Scrum",
			TeamName:        "Time Novo",
			StartDate:       time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
			IterationCount:  6,
			SprintWeeks:     2,
		},
		Status: model.ProvisioningPending,
	}
	if err := s.SaveProvisioningRecord(ctx, rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Simulate the partial-failure shape: project and teams exist,
	// iterations failed.
	rec.Status = model.ProvisioningFailed
	rec.Error = "create iterations: transient network error"
	rec.ProjectID = "proj-guid"
	rec.ProjectURL = "https://dev.azure.com/org/NOVO-PROJETO"
	rec.TeamIDs = []string{"team-guid"}
	if err := s.SaveProvisioningRecord(ctx, rec); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := s.GetProvisioningRecord(ctx, "prov-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("record not found")
	}
	if got.Status != model.ProvisioningFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.ProjectID != "proj-guid" || len(got.TeamIDs) != 1 {
		t.Errorf("resource references lost: %+v", got)
	}
	if len(got.IterationPaths) != 0 || len(got.AreaNames) != 0 {
		t.Errorf("unexpected iteration/area references on failed record")
	}
	if got.Request.Project != "NOVO-PROJETO" || got.Request.IterationCount != 6 {
		t.Errorf("request round trip mismatch: %+v", got.Request)
	}

	all, err := s.ListProvisioningRecords(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
}
