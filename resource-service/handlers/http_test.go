package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/draftea/event-saga/resource-service/application"
	"github.com/draftea/event-saga/resource-service/domain"
	"github.com/draftea/event-saga/resource-service/infrastructure"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (*chi.Mux, *infrastructure.Database) {
	db := infrastructure.NewDatabase()
	r := chi.NewRouter()
	NewResourceHandlers(application.NewServices(db)).RegisterRoutes(r)
	return r, db
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestResourceHandlers(t *testing.T) {
	router, db := newTestRouter()

	rec := do(t, router, http.MethodPost, "/api/event/register", `{"name":"Concert A","description":"Live","date":"2024-12-31"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var event domain.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
	assert.NotEmpty(t, event.ID)

	rec = do(t, router, http.MethodPost, "/api/event-details/register",
		`{"event_id":"`+event.ID+`","detailed_description":"Long","duration":120,"category":"Music"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/ticket/register",
		`{"event_id":"`+event.ID+`","venue_id":"nope","ticket_type":"General","price":100,"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/event/"+event.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Concert A")

	rec = do(t, router, http.MethodGet, "/api/event/list", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(t, router, http.MethodDelete, "/api/event/rollback/"+event.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, db.Events.Len())

	rec = do(t, router, http.MethodDelete, "/api/event/rollback/"+event.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/venue/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResourceHandlers_Validation(t *testing.T) {
	router, _ := newTestRouter()

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantBody string
	}{
		{"malformed json", "/api/venue/register", `{`, http.StatusBadRequest, "Invalid request body"},
		{"missing capacity", "/api/venue/register", `{"name":"Hall","address":"Tokyo"}`, http.StatusBadRequest, "capacity must be greater than 0"},
		{"missing event id", "/api/event-details/register", `{"detailed_description":"x","duration":1,"category":"c"}`, http.StatusBadRequest, "event_id is required"},
		{"valid venue", "/api/venue/register", `{"name":"Hall","address":"Tokyo","capacity":10}`, http.StatusCreated, "Venue registered successfully"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestResourceHandlers_Health(t *testing.T) {
	router, _ := newTestRouter()

	for _, path := range []string{"/api/event/health", "/api/event-details/health", "/api/venue/health", "/api/ticket/health"} {
		rec := do(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "healthy")
	}
}
