// Package dashboard provides a real-time WebSocket server for monitoring
// synchronization and provisioning activity.
//
// The dashboard broadcasts per-record sync outcomes, pass summaries, and
// provisioning status transitions to connected WebSocket clients, and
// serves the stored provisioning records over a JSON endpoint.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/store"
	"github.com/auditoria-ti/specsync/internal/syncer"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeSyncOutcome indicates one record was processed by a sync pass
	MessageTypeSyncOutcome MessageType = "sync_outcome"

	// MessageTypeSyncPass indicates a sync pass over one project completed
	MessageTypeSyncPass MessageType = "sync_pass"

	// MessageTypeProvisioning indicates a provisioning record changed status
	MessageTypeProvisioning MessageType = "provisioning"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncOutcomeData describes one synchronized record
type SyncOutcomeData struct {
	Kind     string `json:"kind"`
	RecordID string `json:"record_id"`
	Title    string `json:"title"`
	Action   string `json:"action"`
	RemoteID int    `json:"remote_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SyncPassData summarizes a completed pass
type SyncPassData struct {
	ProjectID string `json:"project_id"`
	Created   int    `json:"created"`
	Linked    int    `json:"linked"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// ProvisioningData describes a provisioning record transition
type ProvisioningData struct {
	RecordID string `json:"record_id"`
	Project  string `json:"project"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Server manages WebSocket connections and broadcasts dashboard messages
type Server struct {
	addr     string
	store    *store.Store
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Addr to listen on (default: localhost:8080)
	Addr string

	// Logger for server activity (default: the standard logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:   "localhost:8080",
		Logger: log.Default(),
	}
}

// NewServer creates a dashboard server. The store backs the provisioning
// records endpoint.
func NewServer(st *store.Store, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      config.Addr,
		store:     st,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/provisioning", s.handleProvisioning)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// BroadcastSyncOutcome publishes one synchronized record.
func (s *Server) BroadcastSyncOutcome(o syncer.Outcome) {
	data := SyncOutcomeData{
		Kind:     o.Kind,
		RecordID: o.RecordID,
		Title:    o.Title,
		Action:   string(o.Action),
		RemoteID: o.RemoteID,
	}
	if o.Err != nil {
		data.Error = o.Err.Error()
	}
	s.broadcastData(MessageTypeSyncOutcome, data)
}

// BroadcastSyncPass publishes a pass summary.
func (s *Server) BroadcastSyncPass(res *syncer.Result) {
	s.broadcastData(MessageTypeSyncPass, SyncPassData{
		ProjectID: res.ProjectID,
		Created:   res.Created,
		Linked:    res.Linked,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
	})
}

// BroadcastProvisioning publishes a provisioning record transition.
func (s *Server) BroadcastProvisioning(rec *model.ProvisioningRecord) {
	s.broadcastData(MessageTypeProvisioning, ProvisioningData{
		RecordID: rec.ID,
		Project:  rec.Request.Project,
		Status:   string(rec.Status),
		Error:    rec.Error,
	})
}

func (s *Server) broadcastData(msgType MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal %s data: %v", msgType, err)
		return
	}
	s.Broadcast(Message{Type: msgType, Timestamp: time.Now(), Data: raw})
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send to clients outside the read lock to avoid blocking
			// concurrent broadcasts.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	go s.readLoop(conn)
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Client messages are not processed, the stream is one-way.
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleProvisioning lists the stored provisioning records as JSON.
func (s *Server) handleProvisioning(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListProvisioningRecords(r.Context())
	if err != nil {
		s.logger.Printf("Failed to list provisioning records: %v", err)
		http.Error(w, `{"error":"failed to load provisioning records"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*model.ProvisioningRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>specsync Dashboard</title>
</head>
<body>
    <h1>specsync Dashboard Server</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Provisioning records: <a href="/provisioning">/provisioning</a></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Connect a WebSocket client to receive sync and provisioning events.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
