package config

import (
	"context"
	"log/slog"

	resourceapp "github.com/draftea/event-saga/resource-service/application"
	resourcehandlers "github.com/draftea/event-saga/resource-service/handlers"
	resourceinfra "github.com/draftea/event-saga/resource-service/infrastructure"
	"github.com/draftea/event-saga/saga-service/application"
	"github.com/draftea/event-saga/saga-service/clients"
	"github.com/draftea/event-saga/saga-service/handlers"
	"github.com/draftea/event-saga/saga-service/infrastructure"
	"github.com/draftea/event-saga/shared/events"
	sharedinfra "github.com/draftea/event-saga/shared/infrastructure"
	"github.com/draftea/event-saga/shared/telemetry"
	"github.com/pkg/errors"
)

// EventPublisher is a saga lifecycle publisher that holds resources
type EventPublisher interface {
	events.Publisher
	Close() error
}

type Dependencies struct {
	// Shared store
	Database *resourceinfra.Database

	// Repositories
	TransactionRepository *infrastructure.MemoryTransactionRepository

	// Use Cases
	Services     *resourceapp.Services
	Orchestrator *application.Orchestrator

	// HTTP Handlers
	ResourceHandlers *resourcehandlers.ResourceHandlers
	SagaHandlers     *handlers.SagaHandlers
	DemoHandlers     *handlers.DemoHandlers

	// Infrastructure
	EventPublisher EventPublisher
	Logger         *slog.Logger

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}
	deps := &Dependencies{Logger: logger}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.SagaServiceConfig.
			WithServiceName(config.ServiceName).
			WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			// Continue without telemetry rather than failing
			logger.WarnContext(ctx, "failed to initialize telemetry", slog.String("error", err.Error()))
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Initialize event publisher
	publisher, err := newEventPublisher(ctx, config, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.EventPublisher = publisher

	// Initialize shared store and repositories
	deps.Database = resourceinfra.NewDatabase()
	deps.TransactionRepository = infrastructure.NewMemoryTransactionRepository()

	// Initialize use cases
	deps.Services = resourceapp.NewServices(deps.Database)

	orchestrator, err := application.NewOrchestrator(
		deps.TransactionRepository,
		clients.NewLocalClients(deps.Services),
		deps.EventPublisher,
		logger,
	)
	if err != nil {
		deps.Close()
		return nil, errors.Wrap(err, "failed to create orchestrator")
	}
	deps.Orchestrator = orchestrator

	// Initialize handlers
	deps.ResourceHandlers = resourcehandlers.NewResourceHandlers(deps.Services)
	deps.SagaHandlers = handlers.NewSagaHandlers(deps.Orchestrator)
	if config.Demo.Enabled {
		deps.DemoHandlers = handlers.NewDemoHandlers(deps.Orchestrator, deps.Services, deps.Database)
		if recent, ok := publisher.(handlers.RecentEvents); ok {
			deps.DemoHandlers.WithRecentEvents(recent)
		}
	}

	return deps, nil
}

func newEventPublisher(ctx context.Context, config *Config, logger *slog.Logger) (EventPublisher, error) {
	switch config.Events.Publisher {
	case PublisherSNS:
		publisher, err := sharedinfra.NewSNSPublisherAdapter(ctx, config.Events.SNSTopicArn)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create SNS publisher")
		}
		return publisher, nil
	default:
		return sharedinfra.NewLogEventPublisher(logger.With(slog.String("component", "events")), config.Events.RecentLimit), nil
	}
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "failed to close event publisher"))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return errors.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
