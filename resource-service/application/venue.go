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

// VenueService registers and compensates venues
type VenueService struct {
	venues *store.Table[domain.Venue]
}

// NewVenueService creates a new VenueService
func NewVenueService(venues *store.Table[domain.Venue]) *VenueService {
	return &VenueService{venues: venues}
}

// Register stores a new venue
func (s *VenueService) Register(ctx context.Context, cmd *domain.RegisterVenueCommand) (resp *domain.RegisterResponse, err error) {
	ctx, _, finish := observe(ctx, domain.ResourceVenue, "register")
	defer func() { finish(err) }()

	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}

	venue := domain.Venue{
		ID:         models.GenerateUUID().String(),
		Name:       cmd.Name,
		Address:    cmd.Address,
		Capacity:   cmd.Capacity,
		Facilities: cmd.Facilities,
		Status:     domain.RecordStatusActive,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.venues.Insert(venue.ID, venue); err != nil {
		return nil, errors.Wrap(err, "failed to save venue")
	}

	return &domain.RegisterResponse{
		Success: true,
		Type:    domain.ResourceVenue,
		ID:      venue.ID,
		VenueID: venue.ID,
		Message: "Venue registered successfully",
	}, nil
}

// Rollback deletes a previously registered venue
func (s *VenueService) Rollback(ctx context.Context, id string) (resp *domain.RollbackResponse, err error) {
	_, _, finish := observe(ctx, domain.ResourceVenue, "rollback", attribute.String("id", id))
	defer func() { finish(err) }()

	if err := s.venues.Delete(id); err != nil {
		return nil, errors.Wrap(err, "failed to roll back venue")
	}

	return rolledBack(domain.ResourceVenue, id), nil
}

// Get returns a single venue
func (s *VenueService) Get(ctx context.Context, id string) (domain.Venue, error) {
	return s.venues.Get(id)
}

// List returns every venue
func (s *VenueService) List(ctx context.Context) []domain.Venue {
	return s.venues.List()
}

// Health reports whether the service can serve requests
func (s *VenueService) Health(ctx context.Context) error {
	return ctx.Err()
}
