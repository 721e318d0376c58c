package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/draftea/event-saga/shared/events"
	"github.com/draftea/event-saga/shared/models"
	"github.com/draftea/event-saga/shared/telemetry"
	"github.com/draftea/event-saga/shared/validation"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator runs event management sagas: it registers each resource in
// the fixed step order and compensates completed steps in reverse order
// when a step fails.
type Orchestrator struct {
	repository domain.TransactionRepository
	clients    []domain.ServiceClient
	publisher  events.Publisher
	logger     *slog.Logger

	active atomic.Int64
}

// NewOrchestrator creates an orchestrator. clients must contain exactly one
// client per step, in step order.
func NewOrchestrator(
	repository domain.TransactionRepository,
	clients []domain.ServiceClient,
	publisher events.Publisher,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if len(clients) != len(domain.StepOrder) {
		return nil, errors.Errorf("expected %d service clients, got %d", len(domain.StepOrder), len(clients))
	}
	for i, client := range clients {
		if client.Step() != domain.StepOrder[i] {
			return nil, errors.Errorf("service client %d serves %q, expected %q", i, client.Step(), domain.StepOrder[i])
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		repository: repository,
		clients:    clients,
		publisher:  publisher,
		logger:     logger,
	}, nil
}

// Execute runs one saga to a terminal state and returns its snapshot.
// Step and rollback failures are reported through the snapshot status;
// only validation and repository errors are returned.
func (o *Orchestrator) Execute(ctx context.Context, cmd *ExecuteSagaCommand) (*TransactionResponse, error) {
	if cmd == nil {
		return nil, validation.Invalid("payload", "required", "payload is required")
	}
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}

	start := time.Now()
	tx := domain.NewTransaction(cmd.SagaPayload.WithDefaults())
	faults := cmd.faultInjector()

	ctx, span := telemetry.StartSpan(ctx, "saga.execute",
		trace.WithAttributes(
			attribute.String("transaction_id", tx.ID.String()),
			attribute.String("fail_at_step", string(cmd.FailAtStep)),
		),
	)
	defer span.End()

	logger := o.logger.With(slog.String("transaction_id", tx.ID.String()))

	o.trackActive(ctx, 1)
	defer o.trackActive(ctx, -1)

	status := "error"
	defer func() {
		telemetry.RecordCounter(ctx, "saga_transactions_total", "Total saga transactions by final status", 1,
			attribute.String("status", status),
		)
		telemetry.RecordHistogram(ctx, "saga_transaction_duration_seconds", "Saga transaction duration", time.Since(start).Seconds(),
			attribute.String("status", status),
		)
	}()

	if err := o.repository.Create(ctx, tx); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to create transaction")
	}
	logger.InfoContext(ctx, "saga started", slog.String("name", tx.Payload.Name))
	o.publish(ctx, events.SagaStartedEvent, tx)

	if _, err := o.update(ctx, tx.ID, func(tx *domain.Transaction) error {
		return tx.TransitionTo(domain.TransactionStatusInProgress)
	}); err != nil {
		span.RecordError(err)
		return nil, err
	}

	sc := domain.NewStepContext(tx.ID, tx.Payload)

	for i, client := range o.clients {
		logger.InfoContext(ctx, "executing step",
			slog.String("step", string(client.Step())),
			slog.Int("index", i+1),
			slog.Int("total", len(o.clients)),
		)

		stepErr := o.executeStep(ctx, client, sc, faults)
		if stepErr == nil {
			continue
		}

		logger.ErrorContext(ctx, "step failed, starting compensation",
			slog.String("step", string(client.Step())),
			slog.String("error", stepErr.Error()),
		)
		span.RecordError(stepErr)

		if _, err := o.update(ctx, tx.ID, func(tx *domain.Transaction) error {
			if err := tx.MarkStepFailed(client.Step(), stepErr); err != nil {
				return err
			}
			return tx.TransitionTo(domain.TransactionStatusCompensating)
		}); err != nil {
			return nil, err
		}

		final, err := o.compensate(ctx, tx.ID, logger)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		status = string(final.Status)
		span.SetAttributes(attribute.String("status", status))
		return newTransactionResponse(final), nil
	}

	final, err := o.update(ctx, tx.ID, func(tx *domain.Transaction) error {
		return tx.TransitionTo(domain.TransactionStatusCompleted)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.InfoContext(ctx, "saga completed")
	o.publish(ctx, events.SagaCompletedEvent, final)

	status = string(final.Status)
	span.SetAttributes(attribute.String("status", status))
	return newTransactionResponse(final), nil
}

// GetStatus returns the current snapshot of a transaction
func (o *Orchestrator) GetStatus(ctx context.Context, id models.ID) (*TransactionResponse, error) {
	tx, err := o.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return newTransactionResponse(tx), nil
}

// ListTransactions returns every known transaction in creation order
func (o *Orchestrator) ListTransactions(ctx context.Context) ([]*TransactionResponse, error) {
	txs, err := o.repository.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transactions")
	}

	out := make([]*TransactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = newTransactionResponse(tx)
	}
	return out, nil
}

// ActiveTransactions is the number of sagas currently executing
func (o *Orchestrator) ActiveTransactions() int64 {
	return o.active.Load()
}

// executeStep runs one step and records its success. The returned error is
// always a *domain.StepError.
func (o *Orchestrator) executeStep(ctx context.Context, client domain.ServiceClient, sc *domain.StepContext, faults domain.FaultInjector) error {
	step := client.Step()
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "saga.step."+string(step),
		trace.WithAttributes(attribute.String("step", string(step))),
	)
	defer span.End()

	status := "error"
	defer func() {
		telemetry.RecordHistogram(ctx, "saga_step_duration_seconds", "Saga step duration", time.Since(start).Seconds(),
			attribute.String("step", string(step)),
			attribute.String("status", status),
		)
	}()

	resultID, err := o.register(ctx, client, sc, faults)
	if err != nil {
		span.RecordError(err)
		return &domain.StepError{Step: step, Cause: err}
	}

	if _, err := o.update(ctx, sc.TransactionID, func(tx *domain.Transaction) error {
		return tx.MarkStepSucceeded(step, resultID)
	}); err != nil {
		return &domain.StepError{Step: step, Cause: err}
	}

	sc.Record(step, resultID)
	span.SetAttributes(attribute.String("result_id", resultID))
	status = "success"
	return nil
}

func (o *Orchestrator) register(ctx context.Context, client domain.ServiceClient, sc *domain.StepContext, faults domain.FaultInjector) (resultID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in %s client: %v", client.Step(), r)
		}
	}()

	if err := faults.Inject(ctx, client.Step(), sc); err != nil {
		return "", err
	}
	return client.Register(ctx, sc)
}

// compensate rolls back every succeeded step in reverse completion order.
// Every rollback is attempted even if an earlier one fails, and the request
// context's cancellation does not cut compensation short.
func (o *Orchestrator) compensate(ctx context.Context, id models.ID, logger *slog.Logger) (*domain.Transaction, error) {
	ctx = context.WithoutCancel(ctx)

	ctx, span := telemetry.StartSpan(ctx, "saga.compensate")
	defer span.End()

	current, err := o.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "starting rollback", slog.Int("steps", len(current.CompensationPlan())))

	for _, step := range current.CompensationPlan() {
		client := o.clientFor(step.Name)

		rollbackErr := o.rollback(ctx, client, step.ResultID)

		status := "success"
		if rollbackErr != nil {
			status = "error"
			compErr := &domain.CompensationError{Step: step.Name, ResultID: step.ResultID, Cause: rollbackErr}
			span.RecordError(compErr)
			logger.ErrorContext(ctx, "rollback failed",
				slog.String("step", string(step.Name)),
				slog.String("result_id", step.ResultID),
				slog.String("error", rollbackErr.Error()),
			)

			if _, err := o.update(ctx, id, func(tx *domain.Transaction) error {
				return tx.MarkStepRollbackFailed(step.Name, compErr)
			}); err != nil {
				return nil, err
			}
		} else {
			logger.InfoContext(ctx, "step rolled back",
				slog.String("step", string(step.Name)),
				slog.String("result_id", step.ResultID),
			)

			if _, err := o.update(ctx, id, func(tx *domain.Transaction) error {
				return tx.MarkStepRolledBack(step.Name)
			}); err != nil {
				return nil, err
			}
		}

		telemetry.RecordCounter(ctx, "saga_rollbacks_total", "Total compensating rollbacks", 1,
			attribute.String("step", string(step.Name)),
			attribute.String("status", status),
		)
	}

	final, err := o.update(ctx, id, func(tx *domain.Transaction) error {
		if tx.HasRollbackFailures() {
			return tx.TransitionTo(domain.TransactionStatusFailed)
		}
		return tx.TransitionTo(domain.TransactionStatusCompensated)
	})
	if err != nil {
		return nil, err
	}

	if final.Status == domain.TransactionStatusFailed {
		logger.WarnContext(ctx, "saga left inconsistent, manual intervention required")
		o.publish(ctx, events.SagaFailedEvent, final)
	} else {
		logger.InfoContext(ctx, "saga compensated")
		o.publish(ctx, events.SagaCompensatedEvent, final)
	}

	return final, nil
}

func (o *Orchestrator) rollback(ctx context.Context, client domain.ServiceClient, resultID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in %s client rollback: %v", client.Step(), r)
		}
	}()

	ctx, span := telemetry.StartSpan(ctx, "saga.compensate."+string(client.Step()),
		trace.WithAttributes(attribute.String("result_id", resultID)),
	)
	defer span.End()

	return client.Rollback(ctx, resultID)
}

func (o *Orchestrator) clientFor(step domain.StepName) domain.ServiceClient {
	for _, client := range o.clients {
		if client.Step() == step {
			return client
		}
	}
	// NewOrchestrator guarantees a client per step
	panic(fmt.Sprintf("no client for step %q", step))
}

func (o *Orchestrator) update(ctx context.Context, id models.ID, mutate func(*domain.Transaction) error) (*domain.Transaction, error) {
	tx, err := o.repository.Update(ctx, id, mutate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update transaction")
	}
	return tx, nil
}

func (o *Orchestrator) publish(ctx context.Context, topic events.Topic, tx *domain.Transaction) {
	if o.publisher == nil {
		return
	}

	event := events.NewEvent(tx.ID, topic, newTransactionResponse(tx)).
		WithCorrelationID(tx.ID).
		WithMetadata("status", string(tx.Status))

	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish saga event",
			slog.String("transaction_id", tx.ID.String()),
			slog.String("topic", topic.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) trackActive(ctx context.Context, delta int64) {
	active := o.active.Add(delta)
	telemetry.RecordGauge(ctx, "saga_transactions_active", "Sagas currently executing", float64(active))
}
