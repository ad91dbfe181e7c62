package provisioning

import "time"

// Status is the outcome of one action in a run.
type Status string

const (
	// StatusNotRun means the run stopped before reaching the action.
	StatusNotRun Status = "not-run"
	// StatusSatisfied means the guard held and nothing was done.
	StatusSatisfied Status = "satisfied"
	// StatusApplied means the effect ran and succeeded.
	StatusApplied Status = "applied"
	// StatusPending means a dry run found the effect would run.
	StatusPending Status = "pending"
	// StatusUnguarded means a dry run reached an action without a pre-check.
	// It re-applies on every run and is not counted as pending.
	StatusUnguarded Status = "unguarded"
	// StatusFailed means the guard or the effect returned an error.
	StatusFailed Status = "failed"
)

// Outcome records what happened to one action.
type Outcome struct {
	Index       int
	Kind        string
	Description string
	Principal   string
	Status      Status
	Duration    time.Duration
	Err         error
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Plan     string
	DryRun   bool
	Outcomes []Outcome
	Duration time.Duration
	Err      error
}

func newReport(runID, plan string, dryRun bool, actions []Action) *Report {
	r := &Report{
		RunID:    runID,
		Plan:     plan,
		DryRun:   dryRun,
		Outcomes: make([]Outcome, len(actions)),
	}
	for i, a := range actions {
		r.Outcomes[i] = Outcome{
			Index:       i + 1,
			Kind:        a.Kind(),
			Description: a.Description(),
			Principal:   a.Principal(),
			Status:      StatusNotRun,
		}
	}
	return r
}

// Count returns how many actions ended with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the failed outcome, if any.
func (r *Report) Failed() (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return o, true
		}
	}
	return Outcome{}, false
}

// Converged reports whether every guarded action's guard held. Unguarded
// actions of a dry run do not count against convergence.
func (r *Report) Converged() bool {
	return r.Err == nil && r.Count(StatusSatisfied)+r.Count(StatusUnguarded) == len(r.Outcomes)
}
