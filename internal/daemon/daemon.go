// Package daemon provides the background synchronization service.
//
// The daemon:
// 1. Runs a sync pass over every registered project structure at a fixed interval
// 2. Watches the application config file and reloads credentials on change
// 3. Handles graceful shutdown
//
// A pass resolves credentials, correlates each structure against the spec
// projects, and pushes eligible records through the synchronizer. Structures
// that fail to correlate are logged and skipped; they never stop the pass.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/auditoria-ti/specsync/internal/azure"
	"github.com/auditoria-ti/specsync/internal/config"
	"github.com/auditoria-ti/specsync/internal/correlate"
	"github.com/auditoria-ti/specsync/internal/store"
	"github.com/auditoria-ti/specsync/internal/syncer"
)

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often a full sync pass runs.
	SyncInterval time.Duration

	// DebounceInterval is how long to wait after a config file event
	// before reloading credentials. This batches rapid editor writes.
	DebounceInterval time.Duration

	// Parallelism is passed through to the synchronizer.
	Parallelism int

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     5 * time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		Parallelism:      1,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon runs periodic sync passes and keeps credentials fresh.
type Daemon struct {
	store      *store.Store
	resolver   *config.Resolver
	correlator *correlate.Resolver
	configFile string
	cfg        *Config

	// newRemote builds the remote client from resolved credentials.
	// Tests override it to avoid real HTTP.
	newRemote func(*config.Credentials) syncer.Remote

	// notify, when set, receives every sync outcome (dashboard feed).
	notify func(syncer.Outcome)

	watcher *fsnotify.Watcher

	reloadMu sync.Mutex
	reloadAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon. configFile is the application config file to watch
// for credential reloads; empty disables the watch.
func New(st *store.Store, resolver *config.Resolver, configFile string, cfg *Config) (*Daemon, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		store:      st,
		resolver:   resolver,
		correlator: correlate.NewResolver(st),
		configFile: configFile,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
	}
	d.newRemote = func(creds *config.Credentials) syncer.Remote {
		return azure.NewClient(creds.Organization, creds.AccessToken)
	}
	return d, nil
}

// SetNotify registers a callback for every sync outcome. Must be called
// before Start.
func (d *Daemon) SetNotify(fn func(syncer.Outcome)) {
	d.notify = fn
}

// Start begins the daemon's operation.
//
// An initial pass runs immediately, then one per SyncInterval. This blocks
// until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.cfg.Logger.Println("Starting daemon")

	if d.configFile != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		d.watcher = watcher
		// Watch the directory: editors replace files, which drops a
		// watch held on the file itself.
		if err := d.watcher.Add(filepath.Dir(d.configFile)); err != nil {
			return fmt.Errorf("failed to watch config directory: %w", err)
		}
		d.cfg.Logger.Printf("Watching config file: %s", d.configFile)

		d.wg.Add(2)
		go d.watchConfigEvents()
		go d.processReloads()
	}

	d.wg.Add(1)
	go d.syncLoop()

	select {
	case <-ctx.Done():
		d.cfg.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.cfg.Logger.Println("Stopping daemon")

	d.cancel()
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.cfg.Logger.Printf("Error closing watcher: %v", err)
		}
	}
	d.wg.Wait()

	d.cfg.Logger.Println("Daemon stopped")
	return nil
}

// syncLoop runs the periodic sync passes.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.SyncInterval)
	defer ticker.Stop()

	if err := d.RunPass(d.ctx); err != nil {
		d.cfg.Logger.Printf("Initial pass failed: %v", err)
	}

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.RunPass(d.ctx); err != nil {
				d.cfg.Logger.Printf("Pass failed: %v", err)
			}
		}
	}
}

// RunPass performs one synchronization pass over all project structures.
// Per-structure problems are logged and skipped; the returned error covers
// only conditions that invalidate the whole pass, like missing credentials.
func (d *Daemon) RunPass(ctx context.Context) error {
	creds, err := d.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) || errors.Is(err, config.ErrConfigIncomplete) {
			return fmt.Errorf("integration credentials unavailable: %w", err)
		}
		return err
	}

	structures, err := d.store.ListStructures(ctx)
	if err != nil {
		return fmt.Errorf("failed to list project structures: %w", err)
	}
	if len(structures) == 0 {
		d.cfg.Logger.Println("No project structures registered")
		return nil
	}

	opts := []syncer.Option{
		syncer.WithParallelism(d.cfg.Parallelism),
		syncer.WithLogger(d.cfg.Logger),
	}
	if d.notify != nil {
		opts = append(opts, syncer.WithNotify(d.notify))
	}
	sy := syncer.New(d.store, d.newRemote(creds), opts...)

	var synced, skipped int
	for _, ps := range structures {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := d.correlator.Resolve(ctx, ps)
		if err != nil {
			d.cfg.Logger.Printf("Structure %s: correlation query failed: %v", ps.ID, err)
			skipped++
			continue
		}
		if result.Outcome != correlate.Resolved {
			d.cfg.Logger.Printf("Structure %s: %v", ps.ID, result.Err())
			skipped++
			continue
		}

		res, err := sy.Sync(ctx, ps.Project, result.Project)
		if err != nil {
			d.cfg.Logger.Printf("Structure %s: sync pass aborted: %v", ps.ID, err)
			skipped++
			continue
		}
		d.cfg.Logger.Printf("Structure %s: %s", ps.ID, res.Summary())
		synced++
	}

	d.cfg.Logger.Printf("Pass complete: %d synced, %d skipped", synced, skipped)
	return nil
}

// watchConfigEvents monitors filesystem events on the config directory.
func (d *Daemon) watchConfigEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.configFile) {
				continue
			}
			d.cfg.Logger.Printf("Config file event: %s %s", event.Op, event.Name)
			d.queueReload()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.cfg.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueReload marks a pending credential reload with debouncing.
func (d *Daemon) queueReload() {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()
	d.reloadAt = time.Now()
}

// processReloads invalidates the credential cache once the debounce window
// after the last config event has passed.
func (d *Daemon) processReloads() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.reloadMu.Lock()
			pending := !d.reloadAt.IsZero() && time.Since(d.reloadAt) >= d.cfg.DebounceInterval
			if pending {
				d.reloadAt = time.Time{}
			}
			d.reloadMu.Unlock()

			if pending {
				d.cfg.Logger.Println("Reloading integration credentials")
				d.resolver.Invalidate()
			}
		}
	}
}
