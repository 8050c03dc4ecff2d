package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/auditoria-ti/specsync/internal/azure"
	"github.com/auditoria-ti/specsync/internal/config"
	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/store"
	"github.com/auditoria-ti/specsync/internal/syncer"
)

type fakeRemote struct {
	mu      sync.Mutex
	nextID  int
	created []string
}

func (f *fakeRemote) FindWorkItemByTitle(context.Context, string, string, string) (int, error) {
	return 0, nil
}

func (f *fakeRemote) CreateWorkItem(_ context.Context, _, _ string, fields *azure.WorkItemFields, _ string) (*azure.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created = append(f.created, fields.Title)
	return &azure.WorkItem{ID: f.nextID}, nil
}

func (f *fakeRemote) WorkItemURL(id int) string {
	return fmt.Sprintf("https://dev.azure.com/test/_apis/wit/workItems/%d", id)
}

func (f *fakeRemote) creationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return s
}

func seedCredentials(t *testing.T, s *store.Store, org string) {
	t.Helper()
	blob := fmt.Sprintf(`{"azureDevOps":{"organizationUrl":"https://dev.azure.com/%s","personalAccessToken":"pat-123"}}`, org)
	if err := s.SetSetting(context.Background(), config.IntegrationConfigKey, blob); err != nil {
		t.Fatalf("failed to seed credentials: %v", err)
	}
}

func seedCorrelatedPair(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()

	ps := &model.ProjectStructure{
		ID:                "ps-1",
		Product:           "Auditoria",
		Project:           "TODOS-JUNTOS",
		BaseApplicationID: "09490777-a5db-4f8a-aeed-e4e68dec8f71",
	}
	if err := s.UpsertStructure(ctx, ps); err != nil {
		t.Fatalf("seed structure: %v", err)
	}

	sp := &model.SpecProject{
		ID:            "sp-1",
		ApplicationID: ps.BaseApplicationID,
		ProjectName:   ps.Project,
		Agent:         "claude",
		Generator:     true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := s.UpsertSpecProject(ctx, sp); err != nil {
		t.Fatalf("seed spec project: %v", err)
	}

	r := &model.Requirement{
		ID:        "r1",
		ProjectID: sp.ID,
		Sequence:  "RF-001",
		Name:      "Login",
		Status:    model.StatusReadyForDev,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.UpsertRequirement(ctx, r); err != nil {
		t.Fatalf("seed requirement: %v", err)
	}
}

func newTestDaemon(t *testing.T, s *store.Store, remote syncer.Remote, configFile string) *Daemon {
	t.Helper()

	cfg := DefaultConfig()
	cfg.SyncInterval = time.Hour // passes are driven manually in tests
	cfg.DebounceInterval = 20 * time.Millisecond
	cfg.Logger.SetOutput(os.Stderr)

	d, err := New(s, config.NewResolver(s), configFile, cfg)
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}
	d.newRemote = func(*config.Credentials) syncer.Remote { return remote }
	return d
}

func TestRunPassSyncsCorrelatedStructures(t *testing.T) {
	s := setupTestStore(t)
	seedCredentials(t, s, "auditoria-ti")
	seedCorrelatedPair(t, s)

	remote := &fakeRemote{}
	d := newTestDaemon(t, s, remote, "")

	if err := d.RunPass(context.Background()); err != nil {
		t.Fatalf("pass failed: %v", err)
	}
	if remote.creationCount() != 1 {
		t.Errorf("creations = %d, want 1", remote.creationCount())
	}

	// A second pass finds the linkage and creates nothing.
	if err := d.RunPass(context.Background()); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if remote.creationCount() != 1 {
		t.Errorf("creations after second pass = %d, want 1", remote.creationCount())
	}
}

func TestRunPassRequiresCredentials(t *testing.T) {
	s := setupTestStore(t)
	seedCorrelatedPair(t, s)

	d := newTestDaemon(t, s, &fakeRemote{}, "")
	err := d.RunPass(context.Background())
	if err == nil {
		t.Fatal("expected error without integration config")
	}
	if !strings.Contains(err.Error(), "credentials") {
		t.Errorf("err = %v", err)
	}
}

func TestRunPassSkipsUncorrelatedStructures(t *testing.T) {
	s := setupTestStore(t)
	seedCredentials(t, s, "auditoria-ti")

	// A structure with no matching spec project.
	ps := &model.ProjectStructure{
		ID:                "ps-orphan",
		Product:           "Auditoria",
		Project:           "ORFAO",
		BaseApplicationID: "missing-app",
	}
	if err := s.UpsertStructure(context.Background(), ps); err != nil {
		t.Fatalf("seed structure: %v", err)
	}

	remote := &fakeRemote{}
	d := newTestDaemon(t, s, remote, "")
	if err := d.RunPass(context.Background()); err != nil {
		t.Fatalf("pass must not fail on uncorrelated structures: %v", err)
	}
	if remote.creationCount() != 0 {
		t.Errorf("creations = %d, want 0", remote.creationCount())
	}
}

func TestConfigWatchInvalidatesCredentialCache(t *testing.T) {
	s := setupTestStore(t)
	seedCredentials(t, s, "org-one")

	dir := t.TempDir()
	configFile := filepath.Join(dir, "specsync.yaml")
	if err := os.WriteFile(configFile, []byte("store: a\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	d := newTestDaemon(t, s, &fakeRemote{}, configFile)
	resolver := d.resolver

	// Prime the cache.
	creds, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds.Organization != "org-one" {
		t.Fatalf("organization = %q", creds.Organization)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	// Give Start time to register the config watch; a write that lands
	// before the watch exists is never seen.
	time.Sleep(500 * time.Millisecond)

	// Change the stored credentials. The cached copy still wins until
	// the config file watch triggers an invalidation.
	seedCredentials(t, s, "org-two")
	if err := os.WriteFile(configFile, []byte("store: b\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		creds, err := resolver.Resolve(context.Background())
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if creds.Organization == "org-two" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("credential cache was never invalidated after config change")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("daemon exit: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}
