package application

import (
	"context"
	"time"

	"github.com/draftea/event-saga/resource-service/domain"
	"github.com/draftea/event-saga/shared/models"
	"github.com/draftea/event-saga/shared/store"
	"github.com/draftea/event-saga/shared/validation"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// EventService registers and compensates events
type EventService struct {
	events *store.Table[domain.Event]
}

// NewEventService creates a new EventService
func NewEventService(events *store.Table[domain.Event]) *EventService {
	return &EventService{events: events}
}

// Register stores a new event
func (s *EventService) Register(ctx context.Context, cmd *domain.RegisterEventCommand) (resp *domain.RegisterResponse, err error) {
	ctx, _, finish := observe(ctx, domain.ResourceEvent, "register")
	defer func() { finish(err) }()

	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}

	event := domain.Event{
		ID:          models.GenerateUUID().String(),
		Name:        cmd.Name,
		Description: cmd.Description,
		Date:        cmd.Date,
		Status:      domain.RecordStatusActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.events.Insert(event.ID, event); err != nil {
		return nil, errors.Wrap(err, "failed to save event")
	}

	return &domain.RegisterResponse{
		Success: true,
		Type:    domain.ResourceEvent,
		ID:      event.ID,
		EventID: event.ID,
		Message: "Event registered successfully",
	}, nil
}

// Rollback deletes a previously registered event
func (s *EventService) Rollback(ctx context.Context, id string) (resp *domain.RollbackResponse, err error) {
	_, _, finish := observe(ctx, domain.ResourceEvent, "rollback", attribute.String("id", id))
	defer func() { finish(err) }()

	if err := s.events.Delete(id); err != nil {
		return nil, errors.Wrap(err, "failed to roll back event")
	}

	return rolledBack(domain.ResourceEvent, id), nil
}

// Get returns a single event
func (s *EventService) Get(ctx context.Context, id string) (domain.Event, error) {
	return s.events.Get(id)
}

// List returns every event
func (s *EventService) List(ctx context.Context) []domain.Event {
	return s.events.List()
}

// Health reports whether the service can serve requests
func (s *EventService) Health(ctx context.Context) error {
	return ctx.Err()
}

func rolledBack(resource domain.ResourceType, id string) *domain.RollbackResponse {
	return &domain.RollbackResponse{
		Success: true,
		Type:    resource,
		ID:      id,
		Message: string(resource) + " " + id + " rolled back successfully",
	}
}
