package domain

import (
	"fmt"

	"github.com/draftea/event-saga/shared/validation"
	"github.com/pkg/errors"
)

var (
	// ErrValidation rejects a request before orchestration starts
	ErrValidation = validation.ErrValidation
	// ErrTransactionNotFound is returned for unknown transaction ids
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionExists is returned when creating a duplicate id
	ErrTransactionExists = errors.New("transaction already exists")
	// ErrInvalidTransition is returned for moves off the status paths
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInjectedFault marks failures synthesized by a FaultInjector
	ErrInjectedFault = errors.New("injected fault")
	// ErrMissingDependency is returned when a step needs an id an earlier step did not produce
	ErrMissingDependency = errors.New("missing dependency")
)

// StepError is a failed Register call, including injected faults
type StepError struct {
	Step  StepName
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// CompensationError is a failed Rollback call
type CompensationError struct {
	Step     StepName
	ResultID string
	Cause    error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("rollback of step %s (%s) failed: %v", e.Step, e.ResultID, e.Cause)
}

func (e *CompensationError) Unwrap() error {
	return e.Cause
}
