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
	"github.com/auditoria-ti/specsync/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "service",
	Short:   "Start the real-time monitoring dashboard",
	Long: `Start a WebSocket dashboard server for monitoring sync and provisioning.

The server broadcasts events to connected clients and serves the stored
provisioning records as JSON:

  sync_outcome  one record was created, linked, skipped or failed
  sync_pass     a pass over one project completed
  provisioning  a provisioning record changed status

By default the sync daemon runs in-process so its events feed the
dashboard; --no-daemon serves the stored records only.

Example usage:
  specsync dashboard                          # default localhost:8080
  specsync dashboard --addr localhost:9000

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		noDaemon, _ := cmd.Flags().GetBool("no-daemon")
		if addr == "" {
			addr = app.DashboardAddr
		}

		s, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		server := dashboard.NewServer(s, &dashboard.Config{
			Addr:   addr,
			Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		})
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Dashboard server started on http://%s\n", server.GetAddr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.GetAddr())
		fmt.Printf("Provisioning records: http://%s/provisioning\n", server.GetAddr())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if !noDaemon {
			cfg := daemon.DefaultConfig()
			cfg.SyncInterval = app.SyncInterval
			cfg.Parallelism = app.SyncParallelism

			d, err := daemon.New(s, config.NewResolver(s), config.ConfigFileUsed(configPath), cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			d.SetNotify(server.BroadcastSyncOutcome)

			go func() {
				if err := d.Start(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
				}
			}()
		}

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Dashboard server stopped")
	},
}

func init() {
	dashboardCmd.Flags().String("addr", "", "Listen address (default from config)")
	dashboardCmd.Flags().Bool("no-daemon", false, "Serve stored records only, without sync passes")

	rootCmd.AddCommand(dashboardCmd)
}
