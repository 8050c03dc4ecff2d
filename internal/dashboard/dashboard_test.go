package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/store"
	"github.com/auditoria-ti/specsync/internal/syncer"
)

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

func newTestServer(t *testing.T, st *store.Store) *Server {
	t.Helper()

	server := NewServer(st, &Config{
		Addr:   "localhost:0", // random available port
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	time.Sleep(100 * time.Millisecond)
	return server
}

func TestServerStartStop(t *testing.T) {
	server := newTestServer(t, setupTestStore(t))

	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestBroadcastSyncOutcome(t *testing.T) {
	server := newTestServer(t, setupTestStore(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	server.BroadcastSyncOutcome(syncer.Outcome{
		Kind:     "requirement",
		RecordID: "r1",
		Title:    "RF-001 - Login",
		Action:   syncer.ActionCreated,
		RemoteID: 101,
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeSyncOutcome {
		t.Errorf("message type = %s", msg.Type)
	}

	var outcome SyncOutcomeData
	if err := json.Unmarshal(msg.Data, &outcome); err != nil {
		t.Fatalf("Failed to unmarshal outcome: %v", err)
	}
	if outcome.Title != "RF-001 - Login" || outcome.Action != "created" || outcome.RemoteID != 101 {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestBroadcastFailedOutcomeCarriesError(t *testing.T) {
	server := newTestServer(t, setupTestStore(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	server.BroadcastSyncOutcome(syncer.Outcome{
		Kind:     "task",
		RecordID: "t1",
		Action:   syncer.ActionFailed,
		Err:      errors.New("connection reset"),
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}
	var msg Message
	_ = json.Unmarshal(data, &msg)
	var outcome SyncOutcomeData
	_ = json.Unmarshal(msg.Data, &outcome)
	if outcome.Error != "connection reset" {
		t.Errorf("error = %q", outcome.Error)
	}
}

func TestProvisioningEndpoint(t *testing.T) {
	st := setupTestStore(t)
	server := newTestServer(t, st)

	rec := &model.ProvisioningRecord{
		ID: "rec-1",
		Request: model.ProvisioningRequest{
			Product: "Auditoria",
			Project: "TODOS-JUNTOS",
		},
		Status:    model.ProvisioningFailed,
		Error:     "create iterations: connection reset",
		ProjectID: "proj-1",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := st.SaveProvisioningRecord(context.Background(), rec); err != nil {
		t.Fatalf("save record: %v", err)
	}

	resp, err := http.Get("http://" + server.GetAddr() + "/provisioning")
	if err != nil {
		t.Fatalf("GET /provisioning: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var records []*model.ProvisioningRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].ID != "rec-1" || records[0].Status != model.ProvisioningFailed {
		t.Errorf("record = %+v", records[0])
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, setupTestStore(t))

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}
}
