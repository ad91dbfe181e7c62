package provisioning

import (
	"context"
	"errors"
)

// Action is one idempotent provisioning step.
//
// Guard must be free of side effects and safe to run any number of times.
// Apply is only called when Guard returned false.
type Action interface {
	// Kind names the action type (package, file, service, command, user, sql, seed).
	Kind() string

	// Description is the human label used in logs, reports and errors.
	Description() string

	// Principal is the OS user or database role Apply runs under.
	// Empty means the identity of the executor itself.
	Principal() string

	// Guard reports whether the desired state already holds.
	Guard(ctx context.Context) (bool, error)

	// Apply performs the mutating effect.
	Apply(ctx context.Context) error
}

// Unguarded is implemented by actions that may have no pre-check. Such an
// action re-applies its effect on every run, so a dry run cannot tell
// whether it would change anything.
type Unguarded interface {
	Unguarded() bool
}

// IsUnguarded reports whether a has no pre-check.
func IsUnguarded(a Action) bool {
	u, ok := a.(Unguarded)
	return ok && u.Unguarded()
}

// ErrGuardUnavailable marks a guard that cannot be evaluated yet because
// the state it inspects is created by an earlier action, such as a database
// that a preceding step would install. A dry run reports the action as
// pending instead of aborting.
var ErrGuardUnavailable = errors.New("guard state not available yet")

// FuncAction adapts plain functions to Action. A nil GuardFunc means the
// action has no pre-check and always applies.
type FuncAction struct {
	KindName  string
	Label     string
	RunAs     string
	GuardFunc func(ctx context.Context) (bool, error)
	ApplyFunc func(ctx context.Context) error
}

func (a *FuncAction) Kind() string        { return a.KindName }
func (a *FuncAction) Description() string { return a.Label }
func (a *FuncAction) Principal() string   { return a.RunAs }
func (a *FuncAction) Unguarded() bool     { return a.GuardFunc == nil }

// Guard implements Action.
func (a *FuncAction) Guard(ctx context.Context) (bool, error) {
	if a.GuardFunc == nil {
		return false, nil
	}
	return a.GuardFunc(ctx)
}

// Apply implements Action.
func (a *FuncAction) Apply(ctx context.Context) error {
	if a.ApplyFunc == nil {
		return nil
	}
	return a.ApplyFunc(ctx)
}
