// Package clients contains the ServiceClient implementations the orchestrator
// uses to reach the resource registration services.
package clients

import (
	"context"

	resourcedomain "github.com/draftea/event-saga/resource-service/domain"
	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/pkg/errors"
)

// ResourceService is the register/rollback capability of one resource service
type ResourceService[C any] interface {
	Register(ctx context.Context, cmd *C) (*resourcedomain.RegisterResponse, error)
	Rollback(ctx context.Context, id string) (*resourcedomain.RollbackResponse, error)
}

// LocalClient calls a resource service in-process
type LocalClient[C any] struct {
	step    domain.StepName
	service ResourceService[C]
	build   func(sc *domain.StepContext) (*C, error)
}

var _ domain.ServiceClient = (*LocalClient[resourcedomain.RegisterEventCommand])(nil)

// Step returns the saga step the client serves
func (c *LocalClient[C]) Step() domain.StepName {
	return c.step
}

// Register builds the step payload from sc and registers the resource
func (c *LocalClient[C]) Register(ctx context.Context, sc *domain.StepContext) (string, error) {
	cmd, err := c.build(sc)
	if err != nil {
		return "", errors.Wrapf(err, "build %s payload", c.step)
	}

	resp, err := c.service.Register(ctx, cmd)
	if err != nil {
		return "", errors.Wrapf(err, "register %s", c.step)
	}
	if resp == nil || resp.ID == "" {
		return "", errors.Errorf("register %s: empty id in response", c.step)
	}
	return resp.ID, nil
}

// Rollback deletes the resource registered under id
func (c *LocalClient[C]) Rollback(ctx context.Context, id string) error {
	if _, err := c.service.Rollback(ctx, id); err != nil {
		return errors.Wrapf(err, "rollback %s", c.step)
	}
	return nil
}

// NewEventClient creates the client for the event step
func NewEventClient(service ResourceService[resourcedomain.RegisterEventCommand]) *LocalClient[resourcedomain.RegisterEventCommand] {
	return &LocalClient[resourcedomain.RegisterEventCommand]{
		step:    domain.StepEvent,
		service: service,
		build: func(sc *domain.StepContext) (*resourcedomain.RegisterEventCommand, error) {
			return &resourcedomain.RegisterEventCommand{
				Name:        sc.Payload.Name,
				Description: sc.Payload.Description,
				Date:        sc.Payload.Date,
			}, nil
		},
	}
}

// NewEventDetailsClient creates the client for the event_details step
func NewEventDetailsClient(service ResourceService[resourcedomain.RegisterEventDetailsCommand]) *LocalClient[resourcedomain.RegisterEventDetailsCommand] {
	return &LocalClient[resourcedomain.RegisterEventDetailsCommand]{
		step:    domain.StepEventDetails,
		service: service,
		build: func(sc *domain.StepContext) (*resourcedomain.RegisterEventDetailsCommand, error) {
			eventID, err := sc.EventID()
			if err != nil {
				return nil, err
			}
			return &resourcedomain.RegisterEventDetailsCommand{
				EventID:             eventID,
				DetailedDescription: sc.Payload.DetailedDescription,
				Duration:            sc.Payload.Duration,
				Category:            sc.Payload.Category,
				Requirements:        sc.Payload.Requirements,
			}, nil
		},
	}
}

// NewVenueClient creates the client for the venue step
func NewVenueClient(service ResourceService[resourcedomain.RegisterVenueCommand]) *LocalClient[resourcedomain.RegisterVenueCommand] {
	return &LocalClient[resourcedomain.RegisterVenueCommand]{
		step:    domain.StepVenue,
		service: service,
		build: func(sc *domain.StepContext) (*resourcedomain.RegisterVenueCommand, error) {
			return &resourcedomain.RegisterVenueCommand{
				Name:       sc.Payload.VenueName,
				Address:    sc.Payload.VenueAddress,
				Capacity:   sc.Payload.VenueCapacity,
				Facilities: sc.Payload.VenueFacilities,
			}, nil
		},
	}
}

// NewTicketClient creates the client for the ticket step
func NewTicketClient(service ResourceService[resourcedomain.RegisterTicketCommand]) *LocalClient[resourcedomain.RegisterTicketCommand] {
	return &LocalClient[resourcedomain.RegisterTicketCommand]{
		step:    domain.StepTicket,
		service: service,
		build: func(sc *domain.StepContext) (*resourcedomain.RegisterTicketCommand, error) {
			eventID, err := sc.EventID()
			if err != nil {
				return nil, err
			}
			venueID, err := sc.VenueID()
			if err != nil {
				return nil, err
			}
			return &resourcedomain.RegisterTicketCommand{
				EventID:    eventID,
				VenueID:    venueID,
				TicketType: sc.Payload.TicketType,
				Price:      sc.Payload.TicketPrice,
				Quantity:   sc.Payload.TicketQuantity,
			}, nil
		},
	}
}
