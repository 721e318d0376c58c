package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	resourceapp "github.com/draftea/event-saga/resource-service/application"
	resourceinfra "github.com/draftea/event-saga/resource-service/infrastructure"
	"github.com/draftea/event-saga/saga-service/application"
	"github.com/draftea/event-saga/saga-service/clients"
	"github.com/draftea/event-saga/saga-service/infrastructure"
	sharedinfra "github.com/draftea/event-saga/shared/infrastructure"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the saga-demo root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "saga-demo",
		Short: "Run event management sagas in-process",
		Long: `Run event management sagas against an in-memory store and print
their final snapshots as JSON. No server is started.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log orchestration steps to stderr")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewConcurrentCommand(opts))

	return cmd
}

// sagaRuntime is one in-process wiring of the resource services and the orchestrator
type sagaRuntime struct {
	db           *resourceinfra.Database
	orchestrator *application.Orchestrator
}

func newRuntime(opts *RootOptions) (*sagaRuntime, error) {
	var logger *slog.Logger
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db := resourceinfra.NewDatabase()
	services := resourceapp.NewServices(db)

	orchestrator, err := application.NewOrchestrator(
		infrastructure.NewMemoryTransactionRepository(),
		clients.NewLocalClients(services),
		sharedinfra.NewLogEventPublisher(logger, 0),
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &sagaRuntime{db: db, orchestrator: orchestrator}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
