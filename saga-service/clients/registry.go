package clients

import (
	"github.com/draftea/event-saga/resource-service/application"
	"github.com/draftea/event-saga/saga-service/domain"
)

// NewLocalClients returns one client per saga step, in step order
func NewLocalClients(services *application.Services) []domain.ServiceClient {
	return []domain.ServiceClient{
		NewEventClient(services.Events),
		NewEventDetailsClient(services.EventDetails),
		NewVenueClient(services.Venues),
		NewTicketClient(services.Tickets),
	}
}
