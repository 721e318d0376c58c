package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	resourceapp "github.com/draftea/event-saga/resource-service/application"
	resourcedomain "github.com/draftea/event-saga/resource-service/domain"
	resourcehandlers "github.com/draftea/event-saga/resource-service/handlers"
	"github.com/draftea/event-saga/resource-service/infrastructure"
	"github.com/draftea/event-saga/saga-service/application"
	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/draftea/event-saga/shared/events"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 5 * time.Second

// RecentEvents is implemented by publishers that retain what they published
type RecentEvents interface {
	Recent() []*events.Event
}

// DemoHandlers exposes canned scenarios for exploring the saga by hand
type DemoHandlers struct {
	orchestrator *application.Orchestrator
	services     *resourceapp.Services
	db           *infrastructure.Database
	events       RecentEvents
}

// NewDemoHandlers creates new demo handlers
func NewDemoHandlers(orchestrator *application.Orchestrator, services *resourceapp.Services, db *infrastructure.Database) *DemoHandlers {
	return &DemoHandlers{
		orchestrator: orchestrator,
		services:     services,
		db:           db,
	}
}

type demoEndpoint struct {
	Path        string            `json:"path"`
	Method      string            `json:"method"`
	Description string            `json:"description"`
	Params      map[string]string `json:"params,omitempty"`
}

var demoEndpoints = []demoEndpoint{
	{Path: "/demo/create-event-complete", Method: http.MethodPost, Description: "Run a saga where every step succeeds"},
	{
		Path:        "/demo/simulate-failure",
		Method:      http.MethodPost,
		Description: "Run a saga that fails at a step and rolls back",
		Params:      map[string]string{"fail_at_step": "event|event_details|venue|ticket"},
	},
	{Path: "/demo/test-individual-apis", Method: http.MethodPost, Description: "Call each resource service directly"},
	{Path: "/demo/list-transactions", Method: http.MethodGet, Description: "List saga transactions"},
	{Path: "/demo/database-status", Method: http.MethodGet, Description: "Show record counts and contents"},
	{Path: "/demo/clear-database", Method: http.MethodDelete, Description: "Clear every resource table"},
	{Path: "/demo/health-check-all", Method: http.MethodGet, Description: "Check the health of every service"},
	{Path: "/demo/events", Method: http.MethodGet, Description: "Show recently published saga events"},
}

// WithRecentEvents enables GET /demo/events
func (h *DemoHandlers) WithRecentEvents(recent RecentEvents) *DemoHandlers {
	h.events = recent
	return h
}

// Index lists the demo endpoints
func (h *DemoHandlers) Index(w http.ResponseWriter, r *http.Request) {
	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"title":     "Saga Pattern Demo - Available Endpoints",
		"endpoints": demoEndpoints,
	})
}

// CreateEventComplete runs a saga with a full sample payload and no faults
func (h *DemoHandlers) CreateEventComplete(w http.ResponseWriter, r *http.Request) {
	cmd := &application.ExecuteSagaCommand{
		SagaPayload: domain.SagaPayload{
			Name:                "Tokyo Music Festival 2024",
			Description:         "Annual large scale music festival",
			Date:                "2024-08-15",
			DetailedDescription: "Three days of rock, pop and electronic music from artists around the world.",
			Duration:            180,
			Category:            "Music Festival",
			Requirements:        []string{"Ticket required", "All ages", "Food and drink allowed"},
			VenueName:           "Tokyo International Exhibition Center",
			VenueAddress:        "3-11-1 Ariake, Koto-ku, Tokyo",
			VenueCapacity:       10000,
			VenueFacilities:     []string{"Main stage", "Sound system", "Lighting", "Parking"},
			TicketType:          "General Admission",
			TicketPrice:         8000,
			TicketQuantity:      5000,
		},
	}

	result, err := h.orchestrator.Execute(r.Context(), cmd)
	if err != nil {
		writeSagaError(w, err)
		return
	}

	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"demo_scenario": "Complete Success",
		"result":        result,
	})
}

type simulateFailureRequest struct {
	FailAtStep domain.StepName `json:"fail_at_step"`
}

// SimulateFailure runs a saga that fails at the requested step, event_details by default
func (h *DemoHandlers) SimulateFailure(w http.ResponseWriter, r *http.Request) {
	var req simulateFailureRequest
	// An empty body, chunked or not, asks for the default step
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		resourcehandlers.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FailAtStep == "" {
		req.FailAtStep = domain.StepEventDetails
	}

	cmd := &application.ExecuteSagaCommand{
		SagaPayload: domain.SagaPayload{
			Name:                "Failure Test Event",
			Description:         "Event used to exercise rollback",
			Date:                "2024-09-20",
			DetailedDescription: "This event fails on purpose to show compensation",
			Duration:            120,
			Category:            "Test Event",
			Requirements:        []string{"Test only"},
			VenueName:           "Test Venue",
			VenueAddress:        "Test Address",
			VenueCapacity:       100,
			VenueFacilities:     []string{"Test equipment"},
			TicketType:          "Test Ticket",
			TicketPrice:         1000,
			TicketQuantity:      50,
		},
		FailAtStep: req.FailAtStep,
	}

	result, err := h.orchestrator.Execute(r.Context(), cmd)
	if err != nil {
		writeSagaError(w, err)
		return
	}

	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"demo_scenario":  "Failure and Rollback",
		"failed_at_step": req.FailAtStep,
		"result":         result,
	})
}

type apiResult struct {
	Status string                           `json:"status"`
	Data   *resourcedomain.RegisterResponse `json:"data,omitempty"`
	Error  string                           `json:"error,omitempty"`
}

func newAPIResult(resp *resourcedomain.RegisterResponse, err error) apiResult {
	if err != nil {
		return apiResult{Status: "error", Error: err.Error()}
	}
	return apiResult{Status: "success", Data: resp}
}

// TestIndividualAPIs registers one record of each kind without the orchestrator
func (h *DemoHandlers) TestIndividualAPIs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results := make(map[string]apiResult, len(domain.StepOrder))

	event, err := h.services.Events.Register(ctx, &resourcedomain.RegisterEventCommand{
		Name:        "API Test Event",
		Description: "Individual API test",
		Date:        "2024-10-01",
	})
	results["event_api"] = newAPIResult(event, err)

	if err == nil {
		details, err := h.services.EventDetails.Register(ctx, &resourcedomain.RegisterEventDetailsCommand{
			EventID:             event.EventID,
			DetailedDescription: "Details registered by the API test",
			Duration:            90,
			Category:            "Test",
		})
		results["event_details_api"] = newAPIResult(details, err)
	}

	venue, venueErr := h.services.Venues.Register(ctx, &resourcedomain.RegisterVenueCommand{
		Name:     "Test Venue",
		Address:  "Test Address 123",
		Capacity: 200,
	})
	results["venue_api"] = newAPIResult(venue, venueErr)

	if err == nil && venueErr == nil {
		ticket, err := h.services.Tickets.Register(ctx, &resourcedomain.RegisterTicketCommand{
			EventID:    event.EventID,
			VenueID:    venue.VenueID,
			TicketType: "Test Ticket",
			Price:      1500,
			Quantity:   100,
		})
		results["ticket_api"] = newAPIResult(ticket, err)
	}

	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"demo_scenario": "Individual API Testing",
		"results":       results,
	})
}

// ListTransactions lists every saga transaction
func (h *DemoHandlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.orchestrator.ListTransactions(r.Context())
	if err != nil {
		writeSagaError(w, err)
		return
	}

	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"demo_scenario":      "Transaction List",
		"total_transactions": len(transactions),
		"transactions":       transactions,
	})
}

// DatabaseStatus shows record counts and every stored record
func (h *DemoHandlers) DatabaseStatus(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.orchestrator.ListTransactions(r.Context())
	if err != nil {
		writeSagaError(w, err)
		return
	}

	snapshot := h.db.Snapshot()
	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"demo_scenario": "Database Status",
		"summary":       h.db.Status(),
		"details": map[string]any{
			"events":        snapshot.Events,
			"event_details": snapshot.EventDetails,
			"venues":        snapshot.Venues,
			"tickets":       snapshot.Tickets,
			"transactions":  transactions,
		},
	})
}

// ClearDatabase empties the resource tables; saga transactions are kept
func (h *DemoHandlers) ClearDatabase(w http.ResponseWriter, r *http.Request) {
	h.db.Clear()

	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"demo_scenario": "Database Clear",
		"message":       "All resource records cleared successfully",
	})
}

type healthResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheckAll checks every resource service and the orchestrator concurrently
func (h *DemoHandlers) HealthCheckAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]func(context.Context) error{
		"saga": func(ctx context.Context) error {
			_, err := h.orchestrator.ListTransactions(ctx)
			return err
		},
	}
	for resource, checker := range h.services.Checkers() {
		checks[string(resource)] = checker.Health
	}

	var (
		mu      sync.Mutex
		results = make(map[string]healthResult, len(checks))
	)

	// A plain group lets every check finish even after one fails
	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			err := check(ctx)

			result := healthResult{Status: "healthy"}
			if err != nil {
				result = healthResult{Status: "unhealthy", Error: err.Error()}
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()

			return errors.Wrapf(err, "%s is unhealthy", name)
		})
	}

	response := map[string]any{
		"demo_scenario":      "Health Check All APIs",
		"overall_status":     "healthy",
		"individual_results": results,
	}
	if err := g.Wait(); err != nil {
		response["overall_status"] = "unhealthy"
		response["error"] = err.Error()
	}

	resourcehandlers.WriteJSON(w, http.StatusOK, response)
}

// Events lists recently published saga lifecycle events
func (h *DemoHandlers) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		resourcehandlers.WriteError(w, http.StatusNotFound, "event history is not retained by the configured publisher")
		return
	}

	recent := h.events.Recent()
	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"demo_scenario": "Saga Events",
		"total":         len(recent),
		"events":        recent,
	})
}

// RegisterRoutes registers /demo routes
func (h *DemoHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/demo", func(r chi.Router) {
		r.Get("/", h.Index)
		r.Post("/create-event-complete", h.CreateEventComplete)
		r.Post("/simulate-failure", h.SimulateFailure)
		r.Post("/test-individual-apis", h.TestIndividualAPIs)
		r.Get("/list-transactions", h.ListTransactions)
		r.Get("/database-status", h.DatabaseStatus)
		r.Delete("/clear-database", h.ClearDatabase)
		r.Get("/health-check-all", h.HealthCheckAll)
		r.Get("/events", h.Events)
	})
}
