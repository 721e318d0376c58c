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

// TicketService registers and compensates tickets
type TicketService struct {
	tickets *store.Table[domain.Ticket]
	events  *store.Table[domain.Event]
	venues  *store.Table[domain.Venue]
}

// NewTicketService creates a new TicketService
func NewTicketService(tickets *store.Table[domain.Ticket], events *store.Table[domain.Event], venues *store.Table[domain.Venue]) *TicketService {
	return &TicketService{tickets: tickets, events: events, venues: venues}
}

// Register stores a ticket for an existing event and venue
func (s *TicketService) Register(ctx context.Context, cmd *domain.RegisterTicketCommand) (resp *domain.RegisterResponse, err error) {
	ctx, _, finish := observe(ctx, domain.ResourceTicket, "register",
		attribute.String("event_id", cmd.EventID),
		attribute.String("venue_id", cmd.VenueID),
	)
	defer func() { finish(err) }()

	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}

	if !s.events.Exists(cmd.EventID) {
		return nil, errors.Wrapf(domain.ErrRelatedNotFound, "event %s", cmd.EventID)
	}
	if !s.venues.Exists(cmd.VenueID) {
		return nil, errors.Wrapf(domain.ErrRelatedNotFound, "venue %s", cmd.VenueID)
	}

	ticket := domain.Ticket{
		ID:         models.GenerateUUID().String(),
		EventID:    cmd.EventID,
		VenueID:    cmd.VenueID,
		TicketType: cmd.TicketType,
		Price:      cmd.Price,
		Quantity:   cmd.Quantity,
		Status:     domain.RecordStatusActive,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.tickets.Insert(ticket.ID, ticket); err != nil {
		return nil, errors.Wrap(err, "failed to save ticket")
	}

	return &domain.RegisterResponse{
		Success: true,
		Type:    domain.ResourceTicket,
		ID:      ticket.ID,
		EventID: ticket.EventID,
		VenueID: ticket.VenueID,
		Message: "Ticket registered successfully",
	}, nil
}

// Rollback deletes a previously registered ticket
func (s *TicketService) Rollback(ctx context.Context, id string) (resp *domain.RollbackResponse, err error) {
	_, _, finish := observe(ctx, domain.ResourceTicket, "rollback", attribute.String("id", id))
	defer func() { finish(err) }()

	if err := s.tickets.Delete(id); err != nil {
		return nil, errors.Wrap(err, "failed to roll back ticket")
	}

	return rolledBack(domain.ResourceTicket, id), nil
}

// Get returns a single ticket
func (s *TicketService) Get(ctx context.Context, id string) (domain.Ticket, error) {
	return s.tickets.Get(id)
}

// List returns every ticket
func (s *TicketService) List(ctx context.Context) []domain.Ticket {
	return s.tickets.List()
}

// Health reports whether the service can serve requests
func (s *TicketService) Health(ctx context.Context) error {
	return ctx.Err()
}
