package main

import (
	"github.com/draftea/event-saga/saga-service/application"
	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command
type RunOptions struct {
	*RootOptions
	Name        string
	Description string
	Date        string
	FailAt      string
}

// NewRunCommand creates the run command
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single saga",
		Long: `Run one event management saga and print its snapshot.

Example:
  saga-demo run --name "Concert A" --date 2024-12-31
  saga-demo run --name "Concert A" --date 2024-12-31 --fail-at venue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSaga(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "Concert A", "event name")
	cmd.Flags().StringVar(&opts.Description, "description", "Demo event", "event description")
	cmd.Flags().StringVar(&opts.Date, "date", "2024-12-31", "event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.FailAt, "fail-at", "", "step to fail (event|event_details|venue|ticket)")

	return cmd
}

func runSaga(cmd *cobra.Command, opts *RunOptions) error {
	rt, err := newRuntime(opts.RootOptions)
	if err != nil {
		return err
	}

	resp, err := rt.orchestrator.Execute(commandContext(cmd), &application.ExecuteSagaCommand{
		SagaPayload: domain.SagaPayload{
			Name:        opts.Name,
			Description: opts.Description,
			Date:        opts.Date,
		},
		FailAtStep: domain.StepName(opts.FailAt),
	})
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), resp)
}
