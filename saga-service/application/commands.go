package application

import (
	"time"

	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/draftea/event-saga/shared/models"
)

// ExecuteSagaCommand is the request to run one event management saga
type ExecuteSagaCommand struct {
	domain.SagaPayload

	// FailAtStep forces the named step to fail; used by demos and tests
	FailAtStep domain.StepName `json:"fail_at_step,omitempty" validate:"omitempty,oneof=event event_details venue ticket"`

	// Faults overrides FailAtStep with an arbitrary fault injection strategy
	Faults domain.FaultInjector `json:"-"`
}

func (c *ExecuteSagaCommand) faultInjector() domain.FaultInjector {
	switch {
	case c.Faults != nil:
		return c.Faults
	case c.FailAtStep != "":
		return domain.FailAt(c.FailAtStep)
	default:
		return domain.NoFaults
	}
}

// TransactionResponse is the snapshot of a saga transaction returned to callers
type TransactionResponse struct {
	TransactionID models.ID                 `json:"transaction_id"`
	Name          string                    `json:"name"`
	Status        domain.TransactionStatus  `json:"status"`
	Success       bool                      `json:"success"`
	Message       string                    `json:"message"`
	Steps         []domain.StepRecord       `json:"steps"`
	Failure       *domain.Failure           `json:"failure,omitempty"`
	History       []domain.StatusTransition `json:"history"`
	Payload       domain.SagaPayload        `json:"payload"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// Step returns the record of the named step, or nil
func (r *TransactionResponse) Step(name domain.StepName) *domain.StepRecord {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

func newTransactionResponse(tx *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		TransactionID: tx.ID,
		Name:          tx.Name,
		Status:        tx.Status,
		Success:       tx.Status == domain.TransactionStatusCompleted,
		Message:       statusMessage(tx),
		Steps:         tx.Steps,
		Failure:       tx.Failure,
		History:       tx.History,
		Payload:       tx.Payload,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
}

func statusMessage(tx *domain.Transaction) string {
	failedStep := ""
	if tx.Failure != nil {
		failedStep = string(tx.Failure.Step)
	}

	switch tx.Status {
	case domain.TransactionStatusCompleted:
		return "All steps completed successfully"
	case domain.TransactionStatusCompensated:
		return "Saga failed at step " + failedStep + "; rollback completed"
	case domain.TransactionStatusFailed:
		return "Saga failed at step " + failedStep + "; rollback incomplete, manual intervention required"
	case domain.TransactionStatusCompensating:
		return "Saga failed at step " + failedStep + "; rolling back"
	default:
		return "Saga in progress"
	}
}
