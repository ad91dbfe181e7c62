package provisioning

import (
	"errors"
	"fmt"
	"time"
)

// ErrActionFailed wraps the error of the action that aborted a run.
var ErrActionFailed = errors.New("action failed")

// Run executes actions strictly in order.
//
// For each action the guard is evaluated first; if it holds the action is
// recorded as satisfied and skipped. Otherwise the effect is applied. The
// first guard or effect error aborts the run; effects already applied are
// left in place. A dry run records unguarded actions apart from pending
// ones, and treats a guard failing with ErrGuardUnavailable as pending.
// The returned report always covers every action, with those after the
// failure marked not run.
func Run(ctx *Context, actions []Action) (*Report, error) {
	start := time.Now()
	report := newReport(ctx.RunID, ctx.Plan, ctx.DryRun, actions)

	ctx.Observer.Event(Event{
		Type:    EventRunStarted,
		Message: fmt.Sprintf("starting plan with %d actions", len(actions)),
		Fields:  map[string]string{"dry_run": fmt.Sprintf("%t", ctx.DryRun)},
	})

	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return finish(ctx, report, start, fmt.Errorf("run cancelled before %q: %w", action.Description(), err))
		}

		outcome := &report.Outcomes[i]
		if err := runOne(ctx, action, outcome); err != nil {
			return finish(ctx, report, start, err)
		}
		ctx.Observer.Progress(i+1, len(actions))
	}

	return finish(ctx, report, start, nil)
}

func runOne(ctx *Context, action Action, outcome *Outcome) error {
	actionStart := time.Now()
	defer func() {
		outcome.Duration = time.Since(actionStart)
		if ctx.Metrics != nil {
			ctx.Metrics.ObserveOutcome(*outcome)
		}
	}()

	name := action.Description()
	fields := map[string]string{}
	if p := action.Principal(); p != "" {
		fields["principal"] = p
	}

	satisfied, err := action.Guard(ctx)
	if err != nil && ctx.DryRun && errors.Is(err, ErrGuardUnavailable) {
		outcome.Status = StatusPending
		ctx.Observer.Event(Event{
			Type: EventResourcePending, Kind: action.Kind(), Action: name, Fields: fields,
			Message: fmt.Sprintf("would apply: %v", err),
		})
		return nil
	}
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		ctx.Observer.Event(Event{
			Type: EventResourceFailed, Kind: action.Kind(), Action: name, Fields: fields,
			Message: fmt.Sprintf("guard failed: %v", err),
		})
		return fmt.Errorf("%w: %s: guard: %w", ErrActionFailed, name, err)
	}

	if satisfied {
		outcome.Status = StatusSatisfied
		ctx.Observer.Event(Event{
			Type: EventResourceExists, Kind: action.Kind(), Action: name, Fields: fields,
			Message: "already satisfied",
		})
		return nil
	}

	if ctx.DryRun && IsUnguarded(action) {
		outcome.Status = StatusUnguarded
		ctx.Observer.Event(Event{
			Type: EventResourcePending, Kind: action.Kind(), Action: name, Fields: fields,
			Message: "would re-apply (no guard)",
		})
		return nil
	}

	if ctx.DryRun {
		outcome.Status = StatusPending
		ctx.Observer.Event(Event{
			Type: EventResourcePending, Kind: action.Kind(), Action: name, Fields: fields,
			Message: "would apply",
		})
		return nil
	}

	ctx.Observer.Event(Event{
		Type: EventResourceApplying, Kind: action.Kind(), Action: name, Fields: fields,
		Message: "applying",
	})
	if err := action.Apply(ctx); err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		ctx.Observer.Event(Event{
			Type: EventResourceFailed, Kind: action.Kind(), Action: name, Fields: fields,
			Message: fmt.Sprintf("failed: %v", err),
		})
		return fmt.Errorf("%w: %s: %w", ErrActionFailed, name, err)
	}

	outcome.Status = StatusApplied
	ctx.Observer.Event(Event{
		Type: EventResourceApplied, Kind: action.Kind(), Action: name, Fields: fields,
		Message: fmt.Sprintf("applied in %v", time.Since(actionStart).Round(time.Millisecond)),
	})
	return nil
}

func finish(ctx *Context, report *Report, start time.Time, err error) (*Report, error) {
	report.Duration = time.Since(start)
	report.Err = err
	if ctx.Metrics != nil {
		ctx.Metrics.ObserveRun(err == nil, time.Now())
	}

	if err != nil {
		ctx.Observer.Event(Event{
			Type:    EventRunFailed,
			Message: fmt.Sprintf("run aborted after %v: %v", report.Duration.Round(time.Millisecond), err),
		})
		return report, err
	}

	ctx.Observer.Event(Event{
		Type: EventRunCompleted,
		Message: fmt.Sprintf("plan completed in %v: %d applied, %d satisfied, %d pending, %d unguarded",
			report.Duration.Round(time.Millisecond), report.Count(StatusApplied),
			report.Count(StatusSatisfied), report.Count(StatusPending), report.Count(StatusUnguarded)),
	})
	return report, nil
}
