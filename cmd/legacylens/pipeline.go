// File path: cmd/legacylens/pipeline.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/legacylens/legacylens/internal/pipeline"
)

func newPipelineCommand(catalogPath *string) *cobra.Command {
	var (
		sourceDir string
		startFrom string
		only      string
		listSteps bool
	)
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the analysis pipeline (setup, ingest, process, stories)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listSteps {
				for _, name := range []string{
					pipeline.StepSetup, pipeline.StepIngest,
					pipeline.StepProcess, pipeline.StepStories,
				} {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			ctx := cmd.Context()
			app, err := newApp(ctx, *catalogPath)
			if err != nil {
				return err
			}
			defer app.Close()

			deps := app.pipelineDeps(sourceDir)
			runner := pipeline.NewRunner(pipeline.Steps(deps)...)
			runErr := runner.Run(ctx, pipeline.Options{StartFrom: startFrom, Only: only})

			state := runner.State()
			for _, step := range state.Steps {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s", step.Name, step.Status)
				if step.Message != "" {
					fmt.Fprintf(cmd.OutOrStdout(), " (%s)", step.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&sourceDir, "source", "sources", "directory of COBOL sources to ingest")
	cmd.Flags().StringVar(&startFrom, "start-from", "", "resume the pipeline at this step")
	cmd.Flags().StringVar(&only, "only", "", "run a single step")
	cmd.Flags().BoolVar(&listSteps, "list-steps", false, "print the step names and exit")
	cmd.MarkFlagsMutuallyExclusive("start-from", "only")
	return cmd
}
