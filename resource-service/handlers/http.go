package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/draftea/event-saga/resource-service/application"
	"github.com/draftea/event-saga/resource-service/domain"
	"github.com/draftea/event-saga/shared/validation"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// ResourceHandlers exposes the four resource registration services over HTTP
type ResourceHandlers struct {
	services *application.Services
}

// NewResourceHandlers creates new resource handlers
func NewResourceHandlers(services *application.Services) *ResourceHandlers {
	return &ResourceHandlers{services: services}
}

// RegisterRoutes registers /api/<resource> routes
func (h *ResourceHandlers) RegisterRoutes(r chi.Router) {
	s := h.services
	r.Route("/api/event", func(r chi.Router) {
		resourceRoutes(r, domain.ResourceEvent, s.Events.Register, s.Events.Rollback, s.Events.Get, s.Events.List, s.Events)
	})
	r.Route("/api/event-details", func(r chi.Router) {
		resourceRoutes(r, domain.ResourceEventDetails, s.EventDetails.Register, s.EventDetails.Rollback, s.EventDetails.Get, s.EventDetails.List, s.EventDetails)
	})
	r.Route("/api/venue", func(r chi.Router) {
		resourceRoutes(r, domain.ResourceVenue, s.Venues.Register, s.Venues.Rollback, s.Venues.Get, s.Venues.List, s.Venues)
	})
	r.Route("/api/ticket", func(r chi.Router) {
		resourceRoutes(r, domain.ResourceTicket, s.Tickets.Register, s.Tickets.Rollback, s.Tickets.Get, s.Tickets.List, s.Tickets)
	})
}

func resourceRoutes[C any, R any](
	r chi.Router,
	resource domain.ResourceType,
	register func(context.Context, *C) (*domain.RegisterResponse, error),
	rollback func(context.Context, string) (*domain.RollbackResponse, error),
	get func(context.Context, string) (R, error),
	list func(context.Context) []R,
	health application.HealthChecker,
) {
	r.Post("/register", func(w http.ResponseWriter, r *http.Request) {
		var cmd C
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		resp, err := register(r.Context(), &cmd)
		if err != nil {
			writeResourceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, resp)
	})

	r.Delete("/rollback/{id}", func(w http.ResponseWriter, r *http.Request) {
		resp, err := rollback(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeResourceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	})

	r.Get("/list", func(w http.ResponseWriter, r *http.Request) {
		records := list(r.Context())
		WriteJSON(w, http.StatusOK, map[string]any{
			"type":    resource,
			"records": records,
			"total":   len(records),
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := health.Health(r.Context()); err != nil {
			WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{
			"status": string(resource) + " service is healthy",
		})
	})

	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		record, err := get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeResourceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, record)
	})
}

func writeResourceError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, domain.ErrRelatedNotFound):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes an {"error": msg} JSON response
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
