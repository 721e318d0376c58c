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

// EventDetailsService registers and compensates event details
type EventDetailsService struct {
	details *store.Table[domain.EventDetails]
	events  *store.Table[domain.Event]
}

// NewEventDetailsService creates a new EventDetailsService
func NewEventDetailsService(details *store.Table[domain.EventDetails], events *store.Table[domain.Event]) *EventDetailsService {
	return &EventDetailsService{details: details, events: events}
}

// Register stores details for an existing event
func (s *EventDetailsService) Register(ctx context.Context, cmd *domain.RegisterEventDetailsCommand) (resp *domain.RegisterResponse, err error) {
	ctx, _, finish := observe(ctx, domain.ResourceEventDetails, "register", attribute.String("event_id", cmd.EventID))
	defer func() { finish(err) }()

	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}

	if !s.events.Exists(cmd.EventID) {
		return nil, errors.Wrapf(domain.ErrRelatedNotFound, "event %s", cmd.EventID)
	}

	details := domain.EventDetails{
		ID:                  models.GenerateUUID().String(),
		EventID:             cmd.EventID,
		DetailedDescription: cmd.DetailedDescription,
		Duration:            cmd.Duration,
		Category:            cmd.Category,
		Requirements:        cmd.Requirements,
		Status:              domain.RecordStatusActive,
		CreatedAt:           time.Now().UTC(),
	}

	if err := s.details.Insert(details.ID, details); err != nil {
		return nil, errors.Wrap(err, "failed to save event details")
	}

	return &domain.RegisterResponse{
		Success: true,
		Type:    domain.ResourceEventDetails,
		ID:      details.ID,
		EventID: details.EventID,
		Message: "Event details registered successfully",
	}, nil
}

// Rollback deletes previously registered details
func (s *EventDetailsService) Rollback(ctx context.Context, id string) (resp *domain.RollbackResponse, err error) {
	_, _, finish := observe(ctx, domain.ResourceEventDetails, "rollback", attribute.String("id", id))
	defer func() { finish(err) }()

	if err := s.details.Delete(id); err != nil {
		return nil, errors.Wrap(err, "failed to roll back event details")
	}

	return rolledBack(domain.ResourceEventDetails, id), nil
}

// Get returns a single event details record
func (s *EventDetailsService) Get(ctx context.Context, id string) (domain.EventDetails, error) {
	return s.details.Get(id)
}

// List returns every event details record
func (s *EventDetailsService) List(ctx context.Context) []domain.EventDetails {
	return s.details.List()
}

// Health reports whether the service can serve requests
func (s *EventDetailsService) Health(ctx context.Context) error {
	return ctx.Err()
}
