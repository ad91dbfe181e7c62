package provisioning

import (
	"context"

	"github.com/google/uuid"
)

// Context wraps everything a plan run needs besides the actions themselves.
type Context struct {
	context.Context

	// RunID identifies the run in events and metrics.
	RunID string

	// Plan names the plan being applied.
	Plan string

	// DryRun evaluates guards only; no effect is applied.
	DryRun bool

	Observer Observer

	// Metrics is optional.
	Metrics *Metrics
}

// NewContext creates a run context with a fresh run id. The observer is
// decorated with the run id and plan name.
func NewContext(ctx context.Context, plan string, observer Observer) *Context {
	if observer == nil {
		observer = NewMemoryObserver()
	}
	runID := uuid.NewString()
	return &Context{
		Context:  ctx,
		RunID:    runID,
		Plan:     plan,
		Observer: observer.WithFields(map[string]string{"run_id": runID, "plan": plan}),
	}
}
