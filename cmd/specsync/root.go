package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/auditoria-ti/specsync/internal/azure"
	"github.com/auditoria-ti/specsync/internal/config"
	"github.com/auditoria-ti/specsync/internal/store"
)

var (
	configPath string
	app        *config.App
)

var rootCmd = &cobra.Command{
	Use:   "specsync",
	Short: "SDD to Azure DevOps work item synchronization and provisioning",
	Long: `specsync reconciles internally tracked SDD specifications with Azure DevOps.

It correlates project structures against spec projects, pushes eligible
requirements and tasks as backlog items (at most once per record), and
provisions new Azure DevOps projects with teams, iterations and areas.

Configuration is read from specsync.yaml (working directory or
~/.specsync), overridable with SPECSYNC_* environment variables.
Integration credentials (organization URL and personal access token) live
in the integration-config setting of the local database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		app, err = config.LoadApp(configPath)
		if err != nil {
			return err
		}
		if app.LogFile != "" {
			log.SetOutput(&lumberjack.Logger{
				Filename:   app.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			})
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default: ./specsync.yaml or ~/.specsync/specsync.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Synchronization Commands:"},
		&cobra.Group{ID: "provision", Title: "Provisioning Commands:"},
		&cobra.Group{ID: "service", Title: "Service Commands:"},
	)
}

// openStore opens the configured database and ensures the schema exists.
func openStore() (*store.Store, error) {
	s, err := store.Open(app.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", app.StorePath, err)
	}
	if err := s.InitSchema(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// newAzureClient resolves integration credentials and builds a client.
func newAzureClient(ctx context.Context, s *store.Store) (*azure.Client, error) {
	creds, err := config.NewResolver(s).Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return azure.NewClient(creds.Organization, creds.AccessToken), nil
}
