package domain

import (
	"slices"
	"time"

	"github.com/draftea/event-saga/shared/models"
	"github.com/pkg/errors"
)

// TransactionName is the name given to every event management saga
const TransactionName = "Event Management Saga"

// TransactionStatus represents the status of a saga transaction
type TransactionStatus string

const (
	TransactionStatusStarted      TransactionStatus = "started"
	TransactionStatusInProgress   TransactionStatus = "in_progress"
	TransactionStatusCompleted    TransactionStatus = "completed"
	TransactionStatusCompensating TransactionStatus = "compensating"
	TransactionStatusCompensated  TransactionStatus = "compensated"
	TransactionStatusFailed       TransactionStatus = "failed"
)

// IsTerminal reports whether no further transition is possible
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusCompensated, TransactionStatusFailed:
		return true
	}
	return false
}

// allowedTransitions encodes the two monotonic paths:
// started → in_progress → completed and
// started → in_progress → compensating → compensated | failed.
var allowedTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusStarted:      {TransactionStatusInProgress},
	TransactionStatusInProgress:   {TransactionStatusCompleted, TransactionStatusCompensating},
	TransactionStatusCompensating: {TransactionStatusCompensated, TransactionStatusFailed},
}

// StepName identifies one of the fixed saga steps
type StepName string

const (
	StepEvent        StepName = "event"
	StepEventDetails StepName = "event_details"
	StepVenue        StepName = "venue"
	StepTicket       StepName = "ticket"
)

// StepOrder is the fixed execution order
var StepOrder = []StepName{StepEvent, StepEventDetails, StepVenue, StepTicket}

// IsValid reports whether s is one of the saga steps
func (s StepName) IsValid() bool {
	return slices.Contains(StepOrder, s)
}

// StepStatus represents the status of a single step
type StepStatus string

const (
	StepStatusPending        StepStatus = "pending"
	StepStatusSucceeded      StepStatus = "succeeded"
	StepStatusFailed         StepStatus = "failed"
	StepStatusRolledBack     StepStatus = "rolled_back"
	StepStatusRollbackFailed StepStatus = "rollback_failed"
)

// StepRecord is the outcome of one step within a transaction
type StepRecord struct {
	Name      StepName   `json:"name"`
	Status    StepStatus `json:"status"`
	ResultID  string     `json:"result_id,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`

	// CompletionOrder is the 1-based position in which the step succeeded
	CompletionOrder int `json:"completion_order,omitempty"`
}

// Failure describes what triggered compensation
type Failure struct {
	Step  StepName `json:"step"`
	Cause string   `json:"cause"`
}

// StatusTransition is one entry of the status history
type StatusTransition struct {
	Status TransactionStatus `json:"status"`
	At     time.Time         `json:"at"`
}

// Transaction is the saga aggregate
type Transaction struct {
	ID      models.ID          `json:"id"`
	Name    string             `json:"name"`
	Status  TransactionStatus  `json:"status"`
	Steps   []StepRecord       `json:"steps"`
	Failure *Failure           `json:"failure,omitempty"`
	History []StatusTransition `json:"history"`
	Payload SagaPayload        `json:"payload"`
	models.Timestamps

	completed int
}

// NewTransaction creates a transaction in the started state with every step pending
func NewTransaction(payload SagaPayload) *Transaction {
	ts := models.NewTimestamps()

	steps := make([]StepRecord, len(StepOrder))
	for i, name := range StepOrder {
		steps[i] = StepRecord{
			Name:      name,
			Status:    StepStatusPending,
			Timestamp: ts.CreatedAt,
		}
	}

	return &Transaction{
		ID:         models.GenerateUUID(),
		Name:       TransactionName,
		Status:     TransactionStatusStarted,
		Steps:      steps,
		History:    []StatusTransition{{Status: TransactionStatusStarted, At: ts.CreatedAt}},
		Payload:    payload,
		Timestamps: ts,
	}
}

// TransitionTo moves the transaction to next, rejecting any move off the monotonic paths
func (t *Transaction) TransitionTo(next TransactionStatus) error {
	if !slices.Contains(allowedTransitions[t.Status], next) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", t.Status, next)
	}

	t.Status = next
	t.touch()
	t.History = append(t.History, StatusTransition{Status: next, At: t.UpdatedAt})
	return nil
}

// Step returns the record of the named step
func (t *Transaction) Step(name StepName) (*StepRecord, error) {
	for i := range t.Steps {
		if t.Steps[i].Name == name {
			return &t.Steps[i], nil
		}
	}
	return nil, errors.Errorf("unknown step %q", name)
}

// MarkStepSucceeded records the id produced by a successful step
func (t *Transaction) MarkStepSucceeded(name StepName, resultID string) error {
	step, err := t.transitionStep(name, StepStatusPending, StepStatusSucceeded)
	if err != nil {
		return err
	}

	t.completed++
	step.ResultID = resultID
	step.CompletionOrder = t.completed
	return nil
}

// MarkStepFailed records the step failure that triggers compensation
func (t *Transaction) MarkStepFailed(name StepName, cause error) error {
	step, err := t.transitionStep(name, StepStatusPending, StepStatusFailed)
	if err != nil {
		return err
	}

	step.Error = cause.Error()
	t.Failure = &Failure{Step: name, Cause: cause.Error()}
	return nil
}

// MarkStepRolledBack records a successful compensation
func (t *Transaction) MarkStepRolledBack(name StepName) error {
	_, err := t.transitionStep(name, StepStatusSucceeded, StepStatusRolledBack)
	return err
}

// MarkStepRollbackFailed records a failed compensation
func (t *Transaction) MarkStepRollbackFailed(name StepName, cause error) error {
	step, err := t.transitionStep(name, StepStatusSucceeded, StepStatusRollbackFailed)
	if err != nil {
		return err
	}

	step.Error = cause.Error()
	return nil
}

// CompensationPlan returns the succeeded steps in reverse completion order
func (t *Transaction) CompensationPlan() []StepRecord {
	var plan []StepRecord
	for _, step := range t.Steps {
		if step.Status == StepStatusSucceeded {
			plan = append(plan, step)
		}
	}

	slices.SortFunc(plan, func(a, b StepRecord) int {
		return b.CompletionOrder - a.CompletionOrder
	})
	return plan
}

// HasRollbackFailures reports whether any compensation failed
func (t *Transaction) HasRollbackFailures() bool {
	return slices.ContainsFunc(t.Steps, func(s StepRecord) bool {
		return s.Status == StepStatusRollbackFailed
	})
}

// Clone returns a deep copy safe to hand outside the repository
func (t *Transaction) Clone() *Transaction {
	clone := *t
	clone.Steps = slices.Clone(t.Steps)
	clone.History = slices.Clone(t.History)
	clone.Payload = t.Payload.Clone()
	if t.Failure != nil {
		failure := *t.Failure
		clone.Failure = &failure
	}
	return &clone
}

func (t *Transaction) transitionStep(name StepName, from, to StepStatus) (*StepRecord, error) {
	step, err := t.Step(name)
	if err != nil {
		return nil, err
	}

	if step.Status != from {
		return nil, errors.Wrapf(ErrInvalidTransition, "step %s: %s -> %s", name, step.Status, to)
	}

	t.touch()
	step.Status = to
	step.Timestamp = t.UpdatedAt
	return step, nil
}

func (t *Transaction) touch() {
	t.Timestamps = t.Timestamps.Update()
}
