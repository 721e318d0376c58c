package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	resourceapp "github.com/draftea/event-saga/resource-service/application"
	"github.com/draftea/event-saga/resource-service/infrastructure"
	"github.com/draftea/event-saga/saga-service/clients"
	"github.com/draftea/event-saga/saga-service/domain"
	sagainfra "github.com/draftea/event-saga/saga-service/infrastructure"
	"github.com/draftea/event-saga/shared/events"
	"github.com/draftea/event-saga/shared/models"
	"github.com/draftea/event-saga/shared/validation"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// recordingClient logs every call before delegating
type recordingClient struct {
	domain.ServiceClient
	log *callLog
}

func (c *recordingClient) Register(ctx context.Context, sc *domain.StepContext) (string, error) {
	c.log.add("register:" + string(c.Step()))
	return c.ServiceClient.Register(ctx, sc)
}

func (c *recordingClient) Rollback(ctx context.Context, id string) error {
	c.log.add("rollback:" + string(c.Step()))
	return c.ServiceClient.Rollback(ctx, id)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []events.Topic
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range evts {
		p.topics = append(p.topics, e.Topic)
	}
	return nil
}

type testOrchestrator struct {
	*Orchestrator
	db        *infrastructure.Database
	repo      *sagainfra.MemoryTransactionRepository
	calls     *callLog
	publisher *recordingPublisher
}

func newTestOrchestrator(t *testing.T) *testOrchestrator {
	t.Helper()

	db := infrastructure.NewDatabase()
	repo := sagainfra.NewMemoryTransactionRepository()
	calls := &callLog{}
	publisher := &recordingPublisher{}

	var wrapped []domain.ServiceClient
	for _, c := range clients.NewLocalClients(resourceapp.NewServices(db)) {
		wrapped = append(wrapped, &recordingClient{ServiceClient: c, log: calls})
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o, err := NewOrchestrator(repo, wrapped, publisher, logger)
	require.NoError(t, err)

	return &testOrchestrator{Orchestrator: o, db: db, repo: repo, calls: calls, publisher: publisher}
}

func validCommand(name string) *ExecuteSagaCommand {
	return &ExecuteSagaCommand{
		SagaPayload: domain.SagaPayload{
			Name:        name,
			Description: "Open air concert",
			Date:        "2024-12-31",
		},
	}
}

func stepStatuses(resp *TransactionResponse) map[domain.StepName]domain.StepStatus {
	out := make(map[domain.StepName]domain.StepStatus, len(resp.Steps))
	for _, s := range resp.Steps {
		out[s.Name] = s.Status
	}
	return out
}

func historyStatuses(resp *TransactionResponse) []domain.TransactionStatus {
	out := make([]domain.TransactionStatus, len(resp.History))
	for i, h := range resp.History {
		out[i] = h.Status
	}
	return out
}

func TestNewOrchestrator_RejectsMisorderedClients(t *testing.T) {
	db := infrastructure.NewDatabase()
	cs := clients.NewLocalClients(resourceapp.NewServices(db))
	cs[0], cs[1] = cs[1], cs[0]

	_, err := NewOrchestrator(sagainfra.NewMemoryTransactionRepository(), cs, nil, nil)
	assert.Error(t, err)

	_, err = NewOrchestrator(sagainfra.NewMemoryTransactionRepository(), cs[:2], nil, nil)
	assert.Error(t, err)
}

func TestOrchestrator_Execute_Success(t *testing.T) {
	o := newTestOrchestrator(t)

	resp, err := o.Execute(context.Background(), validCommand("Concert A"))
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusCompleted, resp.Status)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Failure)
	assert.Equal(t, domain.TransactionName, resp.Name)
	assert.Equal(t, []domain.TransactionStatus{
		domain.TransactionStatusStarted,
		domain.TransactionStatusInProgress,
		domain.TransactionStatusCompleted,
	}, historyStatuses(resp))

	for i, step := range resp.Steps {
		assert.Equal(t, domain.StepOrder[i], step.Name)
		assert.Equal(t, domain.StepStatusSucceeded, step.Status)
		assert.NotEmpty(t, step.ResultID)
		assert.Equal(t, i+1, step.CompletionOrder)
	}

	assert.Equal(t, []string{
		"register:event", "register:event_details", "register:venue", "register:ticket",
	}, o.calls.snapshot())

	status := o.db.Status()
	assert.Equal(t, 1, status.EventsCount)
	assert.Equal(t, 1, status.EventDetailsCount)
	assert.Equal(t, 1, status.VenuesCount)
	assert.Equal(t, 1, status.TicketsCount)

	ticket, err := o.db.Tickets.Get(resp.Step(domain.StepTicket).ResultID)
	require.NoError(t, err)
	assert.Equal(t, resp.Step(domain.StepEvent).ResultID, ticket.EventID)
	assert.Equal(t, resp.Step(domain.StepVenue).ResultID, ticket.VenueID)
	assert.Equal(t, int64(domain.DefaultTicketPrice), ticket.Price)
	assert.Equal(t, domain.DefaultTicketType, ticket.TicketType)

	assert.Equal(t, []events.Topic{events.SagaStartedEvent, events.SagaCompletedEvent}, o.publisher.topics)
	assert.Equal(t, int64(0), o.ActiveTransactions())
}

func TestOrchestrator_Execute_FailAtStep(t *testing.T) {
	tests := []struct {
		name             string
		failAt           domain.StepName
		expectedCalls    []string
		expectedStatuses map[domain.StepName]domain.StepStatus
	}{
		{
			name:          "fail at event",
			failAt:        domain.StepEvent,
			expectedCalls: nil,
			expectedStatuses: map[domain.StepName]domain.StepStatus{
				domain.StepEvent:        domain.StepStatusFailed,
				domain.StepEventDetails: domain.StepStatusPending,
				domain.StepVenue:        domain.StepStatusPending,
				domain.StepTicket:       domain.StepStatusPending,
			},
		},
		{
			name:   "fail at event details",
			failAt: domain.StepEventDetails,
			expectedCalls: []string{
				"register:event",
				"rollback:event",
			},
			expectedStatuses: map[domain.StepName]domain.StepStatus{
				domain.StepEvent:        domain.StepStatusRolledBack,
				domain.StepEventDetails: domain.StepStatusFailed,
				domain.StepVenue:        domain.StepStatusPending,
				domain.StepTicket:       domain.StepStatusPending,
			},
		},
		{
			name:   "fail at venue",
			failAt: domain.StepVenue,
			expectedCalls: []string{
				"register:event", "register:event_details",
				"rollback:event_details", "rollback:event",
			},
			expectedStatuses: map[domain.StepName]domain.StepStatus{
				domain.StepEvent:        domain.StepStatusRolledBack,
				domain.StepEventDetails: domain.StepStatusRolledBack,
				domain.StepVenue:        domain.StepStatusFailed,
				domain.StepTicket:       domain.StepStatusPending,
			},
		},
		{
			name:   "fail at ticket",
			failAt: domain.StepTicket,
			expectedCalls: []string{
				"register:event", "register:event_details", "register:venue",
				"rollback:venue", "rollback:event_details", "rollback:event",
			},
			expectedStatuses: map[domain.StepName]domain.StepStatus{
				domain.StepEvent:        domain.StepStatusRolledBack,
				domain.StepEventDetails: domain.StepStatusRolledBack,
				domain.StepVenue:        domain.StepStatusRolledBack,
				domain.StepTicket:       domain.StepStatusFailed,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t)

			cmd := validCommand("Concert A")
			cmd.FailAtStep = tt.failAt

			resp, err := o.Execute(context.Background(), cmd)
			require.NoError(t, err)

			assert.Equal(t, domain.TransactionStatusCompensated, resp.Status)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Failure)
			assert.Equal(t, tt.failAt, resp.Failure.Step)
			assert.Contains(t, resp.Failure.Cause, fmt.Sprintf("simulated failure in %s registration", tt.failAt))
			assert.Equal(t, tt.expectedCalls, o.calls.snapshot())
			assert.Equal(t, tt.expectedStatuses, stepStatuses(resp))
			assert.Equal(t, []domain.TransactionStatus{
				domain.TransactionStatusStarted,
				domain.TransactionStatusInProgress,
				domain.TransactionStatusCompensating,
				domain.TransactionStatusCompensated,
			}, historyStatuses(resp))

			assert.Equal(t, 0, o.db.Status().TotalRecords)
			assert.Equal(t, []events.Topic{events.SagaStartedEvent, events.SagaCompensatedEvent}, o.publisher.topics)
		})
	}
}

func TestOrchestrator_Execute_RollbackFailure(t *testing.T) {
	o := newTestOrchestrator(t)

	cmd := validCommand("Concert A")
	cmd.Faults = domain.FaultFunc(func(_ context.Context, step domain.StepName, sc *domain.StepContext) error {
		if step != domain.StepVenue {
			return nil
		}
		eventID, err := sc.EventID()
		if err != nil {
			return err
		}
		// the event vanishes behind the saga's back
		if err := o.db.Events.Delete(eventID); err != nil {
			return err
		}
		return errors.New("venue service unavailable")
	})

	resp, err := o.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusFailed, resp.Status)
	assert.Equal(t, map[domain.StepName]domain.StepStatus{
		domain.StepEvent:        domain.StepStatusRollbackFailed,
		domain.StepEventDetails: domain.StepStatusRolledBack,
		domain.StepVenue:        domain.StepStatusFailed,
		domain.StepTicket:       domain.StepStatusPending,
	}, stepStatuses(resp))
	assert.NotEmpty(t, resp.Step(domain.StepEvent).Error)
	assert.Equal(t, []string{
		"register:event", "register:event_details",
		"rollback:event_details", "rollback:event",
	}, o.calls.snapshot())
	assert.Equal(t, []events.Topic{events.SagaStartedEvent, events.SagaFailedEvent}, o.publisher.topics)
}

func TestOrchestrator_Execute_ClientPanic(t *testing.T) {
	o := newTestOrchestrator(t)

	cmd := validCommand("Concert A")
	cmd.Faults = domain.FaultFunc(func(_ context.Context, step domain.StepName, _ *domain.StepContext) error {
		if step == domain.StepTicket {
			panic("boom")
		}
		return nil
	})

	resp, err := o.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusCompensated, resp.Status)
	require.NotNil(t, resp.Failure)
	assert.Equal(t, domain.StepTicket, resp.Failure.Step)
	assert.Contains(t, resp.Failure.Cause, "boom")
	assert.Equal(t, 0, o.db.Status().TotalRecords)
}

func TestOrchestrator_Execute_CompensatesAfterCancellation(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())

	cmd := validCommand("Concert A")
	cmd.Faults = domain.FaultFunc(func(_ context.Context, step domain.StepName, _ *domain.StepContext) error {
		if step == domain.StepVenue {
			cancel()
			return errors.New("client gave up")
		}
		return nil
	})

	resp, err := o.Execute(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusCompensated, resp.Status)
	assert.Equal(t, 0, o.db.Status().TotalRecords)
}

func TestOrchestrator_Execute_Validation(t *testing.T) {
	tests := []struct {
		name    string
		command *ExecuteSagaCommand
		field   string
	}{
		{
			name:    "nil command",
			command: nil,
			field:   "payload",
		},
		{
			name: "missing name",
			command: &ExecuteSagaCommand{SagaPayload: domain.SagaPayload{
				Description: "x", Date: "2024-12-31",
			}},
			field: "name",
		},
		{
			name: "missing date",
			command: &ExecuteSagaCommand{SagaPayload: domain.SagaPayload{
				Name: "x", Description: "x",
			}},
			field: "date",
		},
		{
			name: "malformed date",
			command: &ExecuteSagaCommand{SagaPayload: domain.SagaPayload{
				Name: "x", Description: "x", Date: "31/12/2024",
			}},
			field: "date",
		},
		{
			name: "unknown fail step",
			command: &ExecuteSagaCommand{
				SagaPayload: domain.SagaPayload{Name: "x", Description: "x", Date: "2024-12-31"},
				FailAtStep:  "payment",
			},
			field: "fail_at_step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t)

			resp, err := o.Execute(context.Background(), tt.command)
			assert.Nil(t, resp)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			var verr *validation.Error
			require.True(t, errors.As(err, &verr))
			require.NotEmpty(t, verr.Fields)
			assert.Equal(t, tt.field, verr.Fields[0].Field)

			assert.Empty(t, o.calls.snapshot())
			assert.Equal(t, 0, o.repo.Count())
		})
	}
}

func TestOrchestrator_Execute_Concurrent(t *testing.T) {
	o := newTestOrchestrator(t)
	const n = 50

	responses := make([]*TransactionResponse, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := o.Execute(context.Background(), validCommand(fmt.Sprintf("Concert %d", i)))
			assert.NoError(t, err)
			responses[i] = resp
		}(i)
	}
	wg.Wait()

	ids := make(map[models.ID]struct{}, n)
	for i, resp := range responses {
		require.NotNil(t, resp)
		assert.Equal(t, domain.TransactionStatusCompleted, resp.Status)
		ids[resp.TransactionID] = struct{}{}

		eventID := resp.Step(domain.StepEvent).ResultID
		event, err := o.db.Events.Get(eventID)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Concert %d", i), event.Name)

		ticket, err := o.db.Tickets.Get(resp.Step(domain.StepTicket).ResultID)
		require.NoError(t, err)
		assert.Equal(t, eventID, ticket.EventID)
		assert.Equal(t, resp.Step(domain.StepVenue).ResultID, ticket.VenueID)
	}
	assert.Len(t, ids, n)
	assert.Equal(t, n, o.repo.Count())
	assert.Equal(t, n, o.db.Status().TicketsCount)
}

func TestOrchestrator_GetStatus(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	cmd := validCommand("Concert A")
	cmd.VenueName = "Budokan"
	cmd.FailAtStep = domain.StepVenue

	resp, err := o.Execute(ctx, cmd)
	require.NoError(t, err)

	found, err := o.GetStatus(ctx, resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, resp.Status, found.Status)
	assert.Equal(t, "Budokan", found.Payload.VenueName)
	assert.Equal(t, domain.DefaultTicketType, found.Payload.TicketType)

	_, err = o.GetStatus(ctx, models.GenerateUUID())
	assert.True(t, errors.Is(err, domain.ErrTransactionNotFound))
}

func TestOrchestrator_ListTransactions(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	list, err := o.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	first, err := o.Execute(ctx, validCommand("first"))
	require.NoError(t, err)

	failing := validCommand("second")
	failing.FailAtStep = domain.StepTicket
	second, err := o.Execute(ctx, failing)
	require.NoError(t, err)

	list, err = o.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.TransactionID, list[0].TransactionID)
	assert.Equal(t, second.TransactionID, list[1].TransactionID)
	assert.Equal(t, domain.TransactionStatusCompleted, list[0].Status)
	assert.Equal(t, domain.TransactionStatusCompensated, list[1].Status)
}

func statusRank(status domain.TransactionStatus) int {
	switch status {
	case domain.TransactionStatusStarted:
		return 0
	case domain.TransactionStatusInProgress:
		return 1
	case domain.TransactionStatusCompensating:
		return 2
	default:
		return 3
	}
}

func TestOrchestrator_ListTransactions_MonotonicDuringExecute(t *testing.T) {
	o := newTestOrchestrator(t)
	const n = 50
	failAt := []domain.StepName{"", domain.StepEvent, domain.StepEventDetails, domain.StepVenue, domain.StepTicket}

	type observed struct {
		rank    int
		history int
	}
	seen := make(map[models.ID]observed)
	check := func(list []*TransactionResponse) {
		for _, tx := range list {
			if !assert.NotEmpty(t, tx.History) {
				continue
			}
			assert.Equal(t, tx.Status, tx.History[len(tx.History)-1].Status)

			current := observed{rank: statusRank(tx.Status), history: len(tx.History)}
			if prev, ok := seen[tx.TransactionID]; ok {
				assert.GreaterOrEqual(t, current.rank, prev.rank, "status went backwards for %s", tx.TransactionID)
				assert.GreaterOrEqual(t, current.history, prev.history, "history shrank for %s", tx.TransactionID)
			}
			seen[tx.TransactionID] = current
		}
	}

	done := make(chan struct{})
	polled := make(chan int)
	go func() {
		polls := 0
		defer func() { polled <- polls }()
		for {
			list, err := o.ListTransactions(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			check(list)
			polls++

			select {
			case <-done:
				return
			default:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := validCommand(fmt.Sprintf("Concert %d", i))
			cmd.FailAtStep = failAt[i%len(failAt)]
			_, err := o.Execute(context.Background(), cmd)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	close(done)
	assert.Positive(t, <-polled)

	list, err := o.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, list, n)
	check(list)
	for _, tx := range list {
		assert.Equal(t, 3, statusRank(tx.Status), "%s did not finish", tx.TransactionID)
	}
}
