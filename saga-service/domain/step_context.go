package domain

import (
	"github.com/draftea/event-saga/shared/models"
	"github.com/pkg/errors"
)

// StepContext accumulates the identifiers produced by completed steps so
// later steps can reference them. It is owned by a single Execute call.
type StepContext struct {
	TransactionID models.ID
	Payload       SagaPayload

	results map[StepName]string
}

// NewStepContext creates an empty context for a transaction
func NewStepContext(transactionID models.ID, payload SagaPayload) *StepContext {
	return &StepContext{
		TransactionID: transactionID,
		Payload:       payload,
		results:       make(map[StepName]string, len(StepOrder)),
	}
}

// Record stores the id produced by step
func (c *StepContext) Record(step StepName, id string) {
	c.results[step] = id
}

// ResultID returns the id produced by step, failing if the step has not completed
func (c *StepContext) ResultID(step StepName) (string, error) {
	id, ok := c.results[step]
	if !ok || id == "" {
		return "", errors.Wrapf(ErrMissingDependency, "%s id", step)
	}
	return id, nil
}

// EventID is the id produced by the event step
func (c *StepContext) EventID() (string, error) {
	return c.ResultID(StepEvent)
}

// VenueID is the id produced by the venue step
func (c *StepContext) VenueID() (string, error) {
	return c.ResultID(StepVenue)
}
