package main

import (
	"fmt"
	"time"

	"github.com/draftea/event-saga/saga-service/application"
	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ConcurrentOptions holds flags for the concurrent command
type ConcurrentOptions struct {
	*RootOptions
	Count int
}

type concurrentSummary struct {
	Total       int                              `json:"total"`
	ByStatus    map[domain.TransactionStatus]int `json:"by_status"`
	DistinctIDs int                              `json:"distinct_transaction_ids"`
	Tickets     int                              `json:"tickets"`
	Elapsed     string                           `json:"elapsed"`
}

// NewConcurrentCommand creates the concurrent command
func NewConcurrentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConcurrentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "concurrent",
		Short: "Run many sagas at once against one store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConcurrent(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 50, "number of sagas to run")

	return cmd
}

func runConcurrent(cmd *cobra.Command, opts *ConcurrentOptions) error {
	if opts.Count <= 0 {
		return errors.Errorf("count must be positive, got %d", opts.Count)
	}

	rt, err := newRuntime(opts.RootOptions)
	if err != nil {
		return err
	}

	start := time.Now()
	responses := make([]*application.TransactionResponse, opts.Count)

	g, ctx := errgroup.WithContext(commandContext(cmd))
	for i := range opts.Count {
		g.Go(func() error {
			resp, err := rt.orchestrator.Execute(ctx, &application.ExecuteSagaCommand{
				SagaPayload: domain.SagaPayload{
					Name:        fmt.Sprintf("Concurrent Event %d", i+1),
					Description: "Concurrent demo event",
					Date:        "2024-12-31",
				},
			})
			if err != nil {
				return errors.Wrapf(err, "saga %d", i+1)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	summary := concurrentSummary{
		Total:    len(responses),
		ByStatus: make(map[domain.TransactionStatus]int),
		Tickets:  rt.db.Status().TicketsCount,
		Elapsed:  time.Since(start).Round(time.Millisecond).String(),
	}
	ids := make(map[string]struct{}, len(responses))
	for _, resp := range responses {
		summary.ByStatus[resp.Status]++
		ids[resp.TransactionID.String()] = struct{}{}
	}
	summary.DistinctIDs = len(ids)

	return writeJSON(cmd.OutOrStdout(), summary)
}
