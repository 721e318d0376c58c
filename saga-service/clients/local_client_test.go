package clients

import (
	"context"
	"testing"

	"github.com/draftea/event-saga/resource-service/application"
	resourcedomain "github.com/draftea/event-saga/resource-service/domain"
	"github.com/draftea/event-saga/resource-service/infrastructure"
	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalClients_RegisterThreadsIDs(t *testing.T) {
	db := infrastructure.NewDatabase()
	clients := NewLocalClients(application.NewServices(db))
	ctx := context.Background()

	payload := domain.SagaPayload{Name: "Concert A", Description: "Live", Date: "2024-12-31"}.WithDefaults()
	sc := domain.NewStepContext("tx-1", payload)

	require.Len(t, clients, 4)
	for i, client := range clients {
		assert.Equal(t, domain.StepOrder[i], client.Step())

		id, err := client.Register(ctx, sc)
		require.NoError(t, err, client.Step())
		assert.NotEmpty(t, id)
		sc.Record(client.Step(), id)
	}

	ticketID, err := sc.ResultID(domain.StepTicket)
	require.NoError(t, err)
	ticket, err := db.Tickets.Get(ticketID)
	require.NoError(t, err)

	eventID, _ := sc.EventID()
	venueID, _ := sc.VenueID()
	assert.Equal(t, eventID, ticket.EventID)
	assert.Equal(t, venueID, ticket.VenueID)
	assert.Equal(t, int64(domain.DefaultTicketPrice), ticket.Price)
}

func TestLocalClients_MissingDependency(t *testing.T) {
	db := infrastructure.NewDatabase()
	clients := NewLocalClients(application.NewServices(db))

	sc := domain.NewStepContext("tx-1", domain.SagaPayload{}.WithDefaults())

	_, err := clients[3].Register(context.Background(), sc)
	assert.True(t, errors.Is(err, domain.ErrMissingDependency))
	assert.Equal(t, 0, db.Tickets.Len())
}

func TestLocalClients_RollbackUnknownID(t *testing.T) {
	db := infrastructure.NewDatabase()
	clients := NewLocalClients(application.NewServices(db))

	for _, client := range clients {
		err := client.Rollback(context.Background(), "never-registered")
		assert.True(t, errors.Is(err, resourcedomain.ErrNotFound), client.Step())
	}
}
