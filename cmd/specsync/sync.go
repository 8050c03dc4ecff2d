package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/auditoria-ti/specsync/internal/correlate"
	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/syncer"
	"github.com/auditoria-ti/specsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync [structure-id]",
	GroupID: "sync",
	Short:   "Push eligible requirements and tasks to Azure DevOps",
	Long: `Run one synchronization pass.

For each correlated structure, every requirement in READY_FOR_DEV is
pushed as a Product Backlog Item and every TO_DO task under it as a child
Task. Records already linked to a remote work item are skipped, so
passes can run any number of times without creating duplicates.

Example usage:
  specsync sync ps-42              # one structure
  specsync sync --all              # every registered structure
  specsync sync --all --parallel 4 # bounded parallelism per pass`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		parallel, _ := cmd.Flags().GetInt("parallel")
		if parallel < 1 {
			parallel = app.SyncParallelism
		}

		if !all && len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: pass a structure id or --all\n")
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

		var structures []*model.ProjectStructure
		if all {
			structures, err = s.ListStructures(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if len(structures) == 0 {
				fmt.Println("No project structures registered")
				return
			}
		} else {
			ps, err := s.GetStructure(ctx, args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if ps == nil {
				fmt.Fprintf(os.Stderr, "Error: project structure %s not found\n", args[0])
				os.Exit(1)
			}
			structures = []*model.ProjectStructure{ps}
		}

		correlator := correlate.NewResolver(s)
		sy := syncer.New(s, client, syncer.WithParallelism(parallel))

		var failed bool
		for _, ps := range structures {
			result, err := correlator.Resolve(ctx, ps)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if result.Outcome != correlate.Resolved {
				fmt.Printf("%s %v\n", ui.RenderWarn("⚠"), result.Err())
				failed = true
				continue
			}

			fmt.Printf("%s Syncing %s -> %s...\n", ui.RenderAccent("🔄"), ps.ID, ps.Project)
			res, err := sy.Sync(ctx, ps.Project, result.Project)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			for _, o := range res.Outcomes {
				line := fmt.Sprintf("   %-7s %s %s", ui.RenderAction(o.Action), o.Kind, o.Title)
				if o.RemoteID != 0 {
					line += ui.RenderMuted(fmt.Sprintf(" (#%d)", o.RemoteID))
				}
				fmt.Println(line)
				if o.Err != nil {
					fmt.Printf("           %s\n", ui.RenderFail(o.Err.Error()))
				}
			}
			fmt.Printf("%s %s\n", ui.RenderPass("✓"), res.Summary())
			if res.Failed > 0 {
				failed = true
			}
		}

		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	syncCmd.Flags().Bool("all", false, "Sync every registered project structure")
	syncCmd.Flags().IntP("parallel", "p", 0, "Concurrent requirement workers (default from config)")

	rootCmd.AddCommand(syncCmd)
}
