package handlers

import (
	"encoding/json"
	"net/http"

	resourcehandlers "github.com/draftea/event-saga/resource-service/handlers"
	"github.com/draftea/event-saga/saga-service/application"
	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/draftea/event-saga/shared/models"
	"github.com/draftea/event-saga/shared/validation"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// SagaHandlers contains saga orchestration HTTP handlers
type SagaHandlers struct {
	orchestrator *application.Orchestrator
}

// NewSagaHandlers creates new saga handlers
func NewSagaHandlers(orchestrator *application.Orchestrator) *SagaHandlers {
	return &SagaHandlers{orchestrator: orchestrator}
}

// Execute runs a saga and returns its final snapshot. A failed saga is still a 200.
func (h *SagaHandlers) Execute(w http.ResponseWriter, r *http.Request) {
	var cmd application.ExecuteSagaCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		resourcehandlers.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	response, err := h.orchestrator.Execute(r.Context(), &cmd)
	if err != nil {
		writeSagaError(w, err)
		return
	}

	resourcehandlers.WriteJSON(w, http.StatusOK, response)
}

// GetStatus returns the snapshot of one transaction
func (h *SagaHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transaction_id")
	if id == "" {
		resourcehandlers.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
		return
	}

	response, err := h.orchestrator.GetStatus(r.Context(), models.ID(id))
	if err != nil {
		writeSagaError(w, err)
		return
	}

	resourcehandlers.WriteJSON(w, http.StatusOK, response)
}

// List returns every transaction in creation order
func (h *SagaHandlers) List(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.orchestrator.ListTransactions(r.Context())
	if err != nil {
		writeSagaError(w, err)
		return
	}

	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"total":        len(transactions),
	})
}

// Health reports the orchestrator status
func (h *SagaHandlers) Health(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.orchestrator.ListTransactions(r.Context())
	if err != nil {
		resourcehandlers.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	resourcehandlers.WriteJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"service":             "saga-orchestrator",
		"total_transactions":  len(transactions),
		"active_transactions": h.orchestrator.ActiveTransactions(),
	})
}

// RegisterRoutes registers /api/saga routes
func (h *SagaHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/saga", func(r chi.Router) {
		r.Post("/execute", h.Execute)
		r.Get("/status/{transaction_id}", h.GetStatus)
		r.Get("/list", h.List)
		r.Get("/health", h.Health)
	})
}

func writeSagaError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		resourcehandlers.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, domain.ErrTransactionNotFound):
		resourcehandlers.WriteError(w, http.StatusNotFound, err.Error())
	default:
		resourcehandlers.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
