package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/provision"
	"github.com/auditoria-ti/specsync/internal/ui"
)

var provisionCmd = &cobra.Command{
	Use:     "provision <request.yaml>",
	GroupID: "provision",
	Short:   "Provision an Azure DevOps project from a request file",
	Long: `Provision a project with its teams, iterations and areas.

The request is a YAML file:

  product: Auditoria
  project: TODOS-JUNTOS
  process_template: Scrum
  team_name: Time Todos-Juntos
  start_date: 2026-01-05T00:00:00Z
  sustaining: false
  iteration_count: 26
  sprint_weeks: 2
  areas: []               # empty: configured defaults or the team area

Steps run in order (project, teams, iterations, areas, team settings),
each existence-checked. On failure the record keeps references to
everything already created; 'specsync provision resume <record-id>'
re-runs only the remaining steps. Nothing is ever deleted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var req model.ProvisioningRequest
		if err := yaml.Unmarshal(data, &req); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid request file: %v\n", err)
			os.Exit(1)
		}
		if req.Product == "" || req.Project == "" {
			fmt.Fprintf(os.Stderr, "Error: request must set product and project\n")
			os.Exit(1)
		}

		ctx := context.Background()

		s, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		client, err := newAzureClient(ctx, s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		pipeline := provision.New(s, client, provision.WithDefaultAreas(app.DefaultAreas))

		fmt.Printf("%s Provisioning %s...\n", ui.RenderAccent("🔄"), req.Project)
		rec, err := pipeline.Run(ctx, &req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		printProvisioningRecord(rec)
		if rec.Status != model.ProvisioningSucceeded {
			os.Exit(1)
		}
	},
}

var provisionStatusCmd = &cobra.Command{
	Use:   "status <record-id>",
	Short: "Show a provisioning record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		rec, err := s.GetProvisioningRecord(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if rec == nil {
			fmt.Fprintf(os.Stderr, "Error: provisioning record %s not found\n", args[0])
			os.Exit(1)
		}
		printProvisioningRecord(rec)
	},
}

var provisionResumeCmd = &cobra.Command{
	Use:   "resume <record-id>",
	Short: "Re-run the remaining steps of a failed provisioning record",
	Long: `Resume a failed provisioning record.

Completed steps are skipped by their existence checks; only the missing
resources are created. Resuming a succeeded record is a no-op.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		client, err := newAzureClient(ctx, s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		pipeline := provision.New(s, client, provision.WithDefaultAreas(app.DefaultAreas))
		rec, err := pipeline.Resume(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		printProvisioningRecord(rec)
		if rec.Status != model.ProvisioningSucceeded {
			os.Exit(1)
		}
	},
}

var provisionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provisioning records",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		records, err := s.ListProvisioningRecords(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("No provisioning records")
			return
		}

		for _, rec := range records {
			fmt.Printf("%s  %-12s %s %s\n",
				rec.ID,
				ui.RenderProvisioningStatus(rec.Status),
				rec.Request.Project,
				ui.RenderMuted(rec.UpdatedAt.Format("2006-01-02 15:04")))
		}
	},
}

func printProvisioningRecord(rec *model.ProvisioningRecord) {
	fmt.Printf("\n%s\n", ui.RenderHeader("Provisioning record "+rec.ID))
	fmt.Printf("   Project:  %s (%s)\n", rec.Request.Project, rec.Request.Product)
	fmt.Printf("   Status:   %s\n", ui.RenderProvisioningStatus(rec.Status))
	if rec.Error != "" {
		fmt.Printf("   Error:    %s\n", ui.RenderFail(rec.Error))
	}
	if rec.ProjectID != "" {
		fmt.Printf("   Remote:   %s %s\n", rec.ProjectID, ui.RenderMuted(rec.ProjectURL))
	}
	if len(rec.TeamIDs) > 0 {
		fmt.Printf("   Teams:    %d\n", len(rec.TeamIDs))
	}
	if len(rec.IterationPaths) > 0 {
		fmt.Printf("   Iterations: %d\n", len(rec.IterationPaths))
	}
	if len(rec.AreaNames) > 0 {
		fmt.Printf("   Areas:    %v\n", rec.AreaNames)
	}
}

func init() {
	provisionCmd.AddCommand(provisionStatusCmd)
	provisionCmd.AddCommand(provisionResumeCmd)
	provisionCmd.AddCommand(provisionListCmd)

	rootCmd.AddCommand(provisionCmd)
}
