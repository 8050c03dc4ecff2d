package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/auditoria-ti/specsync/internal/config"
	"github.com/auditoria-ti/specsync/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "service",
	Short:   "Inspect the application configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration and credential status",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s\n", ui.RenderHeader("Application"))
		if file := config.ConfigFileUsed(configPath); file != "" {
			fmt.Printf("   Config file:   %s\n", file)
		} else {
			fmt.Printf("   Config file:   %s\n", ui.RenderMuted("(defaults)"))
		}
		fmt.Printf("   Store:         %s\n", app.StorePath)
		fmt.Printf("   Dashboard:     %s\n", app.DashboardAddr)
		fmt.Printf("   Sync interval: %s\n", app.SyncInterval)
		fmt.Printf("   Parallelism:   %d\n", app.SyncParallelism)
		if len(app.DefaultAreas) > 0 {
			fmt.Printf("   Default areas: %v\n", app.DefaultAreas)
		}
		if app.LogFile != "" {
			fmt.Printf("   Log file:      %s\n", app.LogFile)
		}

		s, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		fmt.Printf("\n%s\n", ui.RenderHeader("Integration"))
		creds, err := config.NewResolver(s).Resolve(context.Background())
		switch {
		case errors.Is(err, config.ErrConfigNotFound):
			fmt.Printf("   %s integration config not set\n", ui.RenderWarn("⚠"))
		case errors.Is(err, config.ErrConfigIncomplete):
			fmt.Printf("   %s integration config incomplete: %v\n", ui.RenderWarn("⚠"), err)
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		default:
			fmt.Printf("   Organization:  %s\n", creds.Organization)
			fmt.Printf("   Access token:  %s\n", ui.RenderMuted(maskToken(creds.AccessToken)))
		}
	},
}

// maskToken keeps only the last four characters visible.
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
