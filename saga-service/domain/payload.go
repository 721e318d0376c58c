package domain

import "slices"

// Defaults applied to optional payload fields
const (
	DefaultDetailedDescription = "Detailed description of the event"
	DefaultDuration            = 120
	DefaultCategory            = "Entertainment"
	DefaultVenueName           = "Sample Venue"
	DefaultVenueAddress        = "Tokyo, Japan"
	DefaultVenueCapacity       = 1000
	DefaultTicketType          = "General Admission"
	DefaultTicketPrice         = 5000
	DefaultTicketQuantity      = 500
)

// SagaPayload is the business payload of an event management saga.
// Only name, description and date are mandatory; every step-specific
// field falls back to a default.
type SagaPayload struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`

	DetailedDescription string   `json:"detailed_description,omitempty"`
	Duration            int      `json:"duration,omitempty" validate:"gte=0"`
	Category            string   `json:"category,omitempty"`
	Requirements        []string `json:"requirements,omitempty"`

	VenueName       string   `json:"venue_name,omitempty"`
	VenueAddress    string   `json:"venue_address,omitempty"`
	VenueCapacity   int      `json:"venue_capacity,omitempty" validate:"gte=0"`
	VenueFacilities []string `json:"venue_facilities,omitempty"`

	TicketType     string `json:"ticket_type,omitempty"`
	TicketPrice    int64  `json:"ticket_price,omitempty" validate:"gte=0"`
	TicketQuantity int    `json:"ticket_quantity,omitempty" validate:"gte=0"`
}

// WithDefaults returns a copy with every empty optional field filled in
func (p SagaPayload) WithDefaults() SagaPayload {
	if p.DetailedDescription == "" {
		p.DetailedDescription = DefaultDetailedDescription
	}
	if p.Duration == 0 {
		p.Duration = DefaultDuration
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.Requirements == nil {
		p.Requirements = []string{"Tickets required", "Age 18+"}
	}
	if p.VenueName == "" {
		p.VenueName = DefaultVenueName
	}
	if p.VenueAddress == "" {
		p.VenueAddress = DefaultVenueAddress
	}
	if p.VenueCapacity == 0 {
		p.VenueCapacity = DefaultVenueCapacity
	}
	if p.VenueFacilities == nil {
		p.VenueFacilities = []string{"Stage", "Sound System"}
	}
	if p.TicketType == "" {
		p.TicketType = DefaultTicketType
	}
	if p.TicketPrice == 0 {
		p.TicketPrice = DefaultTicketPrice
	}
	if p.TicketQuantity == 0 {
		p.TicketQuantity = DefaultTicketQuantity
	}
	return p
}

// Clone copies the slice fields
func (p SagaPayload) Clone() SagaPayload {
	p.Requirements = slices.Clone(p.Requirements)
	p.VenueFacilities = slices.Clone(p.VenueFacilities)
	return p
}
