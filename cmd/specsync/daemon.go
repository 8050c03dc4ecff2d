package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/auditoria-ti/specsync/internal/config"
	"github.com/auditoria-ti/specsync/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "service",
	Short:   "Run periodic synchronization passes in the background",
	Long: `Run the synchronization daemon.

The daemon syncs every correlated project structure at the configured
interval and watches the config file for credential changes:

  1. Resolves integration credentials from the local database
  2. Correlates each structure against the spec projects
  3. Pushes eligible requirements and tasks to Azure DevOps
  4. Reloads credentials when the config file changes

Example usage:
  specsync daemon                          # interval from config (default 5m)
  SPECSYNC_SYNC_INTERVAL=1m specsync daemon`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		cfg := daemon.DefaultConfig()
		cfg.SyncInterval = app.SyncInterval
		cfg.Parallelism = app.SyncParallelism
		cfg.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)

		d, err := daemon.New(s, config.NewResolver(s), config.ConfigFileUsed(configPath), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Daemon started (interval %s)\n", app.SyncInterval)
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
