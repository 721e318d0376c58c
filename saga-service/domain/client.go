package domain

import (
	"context"

	"github.com/pkg/errors"
)

// ServiceClient is the orchestrator's view of one resource service.
// Implementations may call in-process, over HTTP or through a broker.
type ServiceClient interface {
	Step() StepName
	Register(ctx context.Context, sc *StepContext) (string, error)
	Rollback(ctx context.Context, resultID string) error
}

// FaultInjector decides whether a step should fail before its client is called.
// A non-nil error short-circuits the Register call.
type FaultInjector interface {
	Inject(ctx context.Context, step StepName, sc *StepContext) error
}

// FaultFunc adapts a function to FaultInjector
type FaultFunc func(ctx context.Context, step StepName, sc *StepContext) error

func (f FaultFunc) Inject(ctx context.Context, step StepName, sc *StepContext) error {
	return f(ctx, step, sc)
}

// NoFaults never injects a failure
var NoFaults FaultInjector = FaultFunc(func(context.Context, StepName, *StepContext) error {
	return nil
})

// FailAt injects a failure at the named step
func FailAt(step StepName) FaultInjector {
	return FaultFunc(func(_ context.Context, current StepName, _ *StepContext) error {
		if current != step {
			return nil
		}
		return errors.Wrapf(ErrInjectedFault, "simulated failure in %s registration", step)
	})
}
