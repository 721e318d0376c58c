package domain

import (
	"time"

	"github.com/draftea/event-saga/shared/store"
	"github.com/draftea/event-saga/shared/validation"
	"github.com/pkg/errors"
)

// ResourceType names one of the resource registration services
type ResourceType string

const (
	ResourceEvent        ResourceType = "event"
	ResourceEventDetails ResourceType = "event_details"
	ResourceVenue        ResourceType = "venue"
	ResourceTicket       ResourceType = "ticket"
)

// RecordStatus is the lifecycle status of a stored record
type RecordStatus string

const RecordStatusActive RecordStatus = "active"

var (
	// ErrNotFound is returned for lookups and rollbacks of unknown ids
	ErrNotFound = store.ErrNotFound
	// ErrInvalidPayload is returned when a register payload fails validation
	ErrInvalidPayload = validation.ErrValidation
	// ErrRelatedNotFound is returned when a payload references a missing record
	ErrRelatedNotFound = errors.New("related record not found")
)

// Event is the top level record every other resource hangs off
type Event struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Date        string       `json:"date"`
	Status      RecordStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// EventDetails holds the long form information of an event
type EventDetails struct {
	ID                  string       `json:"id"`
	EventID             string       `json:"event_id"`
	DetailedDescription string       `json:"detailed_description"`
	Duration            int          `json:"duration"`
	Category            string       `json:"category"`
	Requirements        []string     `json:"requirements,omitempty"`
	Status              RecordStatus `json:"status"`
	CreatedAt           time.Time    `json:"created_at"`
}

// Venue is where an event takes place
type Venue struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Address    string       `json:"address"`
	Capacity   int          `json:"capacity"`
	Facilities []string     `json:"facilities,omitempty"`
	Status     RecordStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Ticket is a ticket face for an event at a venue
type Ticket struct {
	ID         string       `json:"id"`
	EventID    string       `json:"event_id"`
	VenueID    string       `json:"venue_id"`
	TicketType string       `json:"ticket_type"`
	Price      int64        `json:"price"`
	Quantity   int          `json:"quantity"`
	Status     RecordStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// RegisterEventCommand is the payload of POST /api/event/register
type RegisterEventCommand struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
}

// RegisterEventDetailsCommand is the payload of POST /api/event-details/register
type RegisterEventDetailsCommand struct {
	EventID             string   `json:"event_id" validate:"required"`
	DetailedDescription string   `json:"detailed_description" validate:"required"`
	Duration            int      `json:"duration" validate:"gt=0"`
	Category            string   `json:"category" validate:"required"`
	Requirements        []string `json:"requirements,omitempty"`
}

// RegisterVenueCommand is the payload of POST /api/venue/register
type RegisterVenueCommand struct {
	Name       string   `json:"name" validate:"required"`
	Address    string   `json:"address" validate:"required"`
	Capacity   int      `json:"capacity" validate:"gt=0"`
	Facilities []string `json:"facilities,omitempty"`
}

// RegisterTicketCommand is the payload of POST /api/ticket/register
type RegisterTicketCommand struct {
	EventID    string `json:"event_id" validate:"required"`
	VenueID    string `json:"venue_id" validate:"required"`
	TicketType string `json:"ticket_type" validate:"required"`
	Price      int64  `json:"price" validate:"gte=0"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
}

// RegisterResponse is returned by every register operation
type RegisterResponse struct {
	Success bool         `json:"success"`
	Type    ResourceType `json:"type"`
	ID      string       `json:"id"`
	EventID string       `json:"event_id,omitempty"`
	VenueID string       `json:"venue_id,omitempty"`
	Message string       `json:"message"`
}

// RollbackResponse acknowledges a compensating delete
type RollbackResponse struct {
	Success bool         `json:"success"`
	Type    ResourceType `json:"type"`
	ID      string       `json:"id"`
	Message string       `json:"message"`
}
