package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/auditoria-ti/specsync/internal/correlate"
	"github.com/auditoria-ti/specsync/internal/ui"
)

var resolveCmd = &cobra.Command{
	Use:     "resolve <structure-id>",
	GroupID: "sync",
	Short:   "Correlate a project structure against the spec projects",
	Long: `Resolve which spec project a project structure maps to.

Correlation matches on base application id plus project name among
generator-flagged spec projects. The result is exactly one of:
  resolved   one spec project matched
  not-found  no spec project matched; link the structure to an application
  ambiguous  several matched; the candidates are listed, none is picked

Example usage:
  specsync resolve ps-42`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		ps, err := s.GetStructure(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if ps == nil {
			fmt.Fprintf(os.Stderr, "Error: project structure %s not found\n", args[0])
			os.Exit(1)
		}

		result, err := correlate.NewResolver(s).Resolve(ctx, ps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		switch result.Outcome {
		case correlate.Resolved:
			fmt.Printf("%s Structure %s resolved\n", ui.RenderPass("✓"), ps.ID)
			fmt.Printf("   Spec project: %s (%s)\n", result.Project.ID, result.Project.ProjectName)
			fmt.Printf("   Application:  %s\n", ui.RenderMuted(result.Project.ApplicationID))
		case correlate.NotFound:
			fmt.Printf("%s %v\n", ui.RenderWarn("⚠"), result.Err())
			fmt.Printf("   Link the structure to a base application and retry.\n")
			os.Exit(1)
		case correlate.Ambiguous:
			fmt.Printf("%s %v\n", ui.RenderFail("✗"), result.Err())
			for _, c := range result.Candidates {
				fmt.Printf("   candidate: %s (%s, created %s)\n",
					c.ID, c.ProjectName, c.CreatedAt.Format("2006-01-02"))
			}
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
