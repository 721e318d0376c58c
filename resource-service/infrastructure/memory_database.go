package infrastructure

import (
	"slices"
	"time"

	"github.com/draftea/event-saga/resource-service/domain"
	"github.com/draftea/event-saga/shared/store"
)

// Database is the shared in-memory store the four resource services write to.
// It is created once and injected into every service.
type Database struct {
	Events       *store.Table[domain.Event]
	EventDetails *store.Table[domain.EventDetails]
	Venues       *store.Table[domain.Venue]
	Tickets      *store.Table[domain.Ticket]
}

// DatabaseStatus summarises table sizes
type DatabaseStatus struct {
	EventsCount       int `json:"events_count"`
	EventDetailsCount int `json:"event_details_count"`
	VenuesCount       int `json:"venues_count"`
	TicketsCount      int `json:"tickets_count"`
	TotalRecords      int `json:"total_records"`
}

// DatabaseSnapshot is a point-in-time copy of every table, oldest records first
type DatabaseSnapshot struct {
	Events       []domain.Event        `json:"events"`
	EventDetails []domain.EventDetails `json:"event_details"`
	Venues       []domain.Venue        `json:"venues"`
	Tickets      []domain.Ticket       `json:"tickets"`
}

// NewDatabase creates an empty database
func NewDatabase() *Database {
	return &Database{
		Events:       store.NewTable[domain.Event]("events"),
		EventDetails: store.NewTable[domain.EventDetails]("event_details"),
		Venues:       store.NewTable[domain.Venue]("venues"),
		Tickets:      store.NewTable[domain.Ticket]("tickets"),
	}
}

// Status returns per-table record counts
func (db *Database) Status() DatabaseStatus {
	status := DatabaseStatus{
		EventsCount:       db.Events.Len(),
		EventDetailsCount: db.EventDetails.Len(),
		VenuesCount:       db.Venues.Len(),
		TicketsCount:      db.Tickets.Len(),
	}
	status.TotalRecords = status.EventsCount + status.EventDetailsCount + status.VenuesCount + status.TicketsCount
	return status
}

// Snapshot copies every table
func (db *Database) Snapshot() DatabaseSnapshot {
	return DatabaseSnapshot{
		Events:       sortByCreation(db.Events.List(), func(r domain.Event) time.Time { return r.CreatedAt }),
		EventDetails: sortByCreation(db.EventDetails.List(), func(r domain.EventDetails) time.Time { return r.CreatedAt }),
		Venues:       sortByCreation(db.Venues.List(), func(r domain.Venue) time.Time { return r.CreatedAt }),
		Tickets:      sortByCreation(db.Tickets.List(), func(r domain.Ticket) time.Time { return r.CreatedAt }),
	}
}

// Clear empties every table
func (db *Database) Clear() {
	db.Events.Clear()
	db.EventDetails.Clear()
	db.Venues.Clear()
	db.Tickets.Clear()
}

func sortByCreation[T any](records []T, createdAt func(T) time.Time) []T {
	slices.SortStableFunc(records, func(a, b T) int {
		return createdAt(a).Compare(createdAt(b))
	})
	return records
}
