package application

import (
	"context"

	"github.com/draftea/event-saga/resource-service/domain"
	"github.com/draftea/event-saga/resource-service/infrastructure"
)

// HealthChecker is implemented by every resource service
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Services groups the four resource registration services sharing one database
type Services struct {
	Events       *EventService
	EventDetails *EventDetailsService
	Venues       *VenueService
	Tickets      *TicketService
}

// NewServices wires every resource service to db
func NewServices(db *infrastructure.Database) *Services {
	return &Services{
		Events:       NewEventService(db.Events),
		EventDetails: NewEventDetailsService(db.EventDetails, db.Events),
		Venues:       NewVenueService(db.Venues),
		Tickets:      NewTicketService(db.Tickets, db.Events, db.Venues),
	}
}

// Checkers returns the health checker of each service keyed by resource type
func (s *Services) Checkers() map[domain.ResourceType]HealthChecker {
	return map[domain.ResourceType]HealthChecker{
		domain.ResourceEvent:        s.Events,
		domain.ResourceEventDetails: s.EventDetails,
		domain.ResourceVenue:        s.Venues,
		domain.ResourceTicket:       s.Tickets,
	}
}
