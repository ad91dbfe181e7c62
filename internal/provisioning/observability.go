package provisioning

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Observer receives structured events while a plan runs.
type Observer interface {
	// Event emits a structured event.
	Event(event Event)

	// Progress reports how many actions of the plan have been handled.
	Progress(current, total int)

	// WithFields returns an Observer that adds fields to every event.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType         // Type of event
	Action    string            // Action description, if the event concerns one
	Kind      string            // Action kind (package, file, seed, ...)
	Message   string            // Human-readable message
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventRunStarted indicates a plan run has started.
	EventRunStarted EventType = "run.started"
	// EventRunCompleted indicates every action was satisfied or applied.
	EventRunCompleted EventType = "run.completed"
	// EventRunFailed indicates the run was aborted.
	EventRunFailed EventType = "run.failed"

	// EventResourceExists indicates a guard found the desired state in place.
	EventResourceExists EventType = "resource.exists"
	// EventResourceApplying indicates an effect is about to run.
	EventResourceApplying EventType = "resource.applying"
	// EventResourceApplied indicates an effect completed.
	EventResourceApplied EventType = "resource.applied"
	// EventResourcePending indicates a dry run found work to do.
	EventResourcePending EventType = "resource.pending"
	// EventResourceFailed indicates a guard or effect failed.
	EventResourceFailed EventType = "resource.failed"

	// EventProgress indicates progress through the plan.
	EventProgress EventType = "progress"
)

// LogObserver implements Observer on top of a logr.Logger.
type LogObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// NewLogObserver creates an observer that writes events to log.
func NewLogObserver(log logr.Logger) *LogObserver {
	return &LogObserver{
		log:           log,
		contextFields: make(map[string]string),
	}
}

// Event implements Observer.
func (o *LogObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	kv := []any{"event", string(event.Type)}
	if event.Kind != "" {
		kv = append(kv, "kind", event.Kind)
	}
	if event.Action != "" {
		kv = append(kv, "action", event.Action)
	}
	kv = append(kv, o.fieldPairs(event.Fields)...)

	if event.Type == EventResourceFailed || event.Type == EventRunFailed {
		o.log.Error(nil, event.Message, kv...)
		return
	}
	if event.Type == EventProgress {
		o.log.V(1).Info(event.Message, kv...)
		return
	}
	o.log.Info(event.Message, kv...)
}

// Progress implements Observer.
func (o *LogObserver) Progress(current, total int) {
	o.Event(Event{
		Type:    EventProgress,
		Message: fmt.Sprintf("%d/%d actions handled", current, total),
	})
}

// WithFields implements Observer.
func (o *LogObserver) WithFields(fields map[string]string) Observer {
	return &LogObserver{
		log:           o.log,
		contextFields: mergeFields(o.contextFields, fields),
	}
}

// fieldPairs flattens context and event fields into sorted key/value pairs.
// Event fields win over context fields.
func (o *LogObserver) fieldPairs(fields map[string]string) []any {
	merged := mergeFields(o.contextFields, fields)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, merged[k])
	}
	return pairs
}

// MemoryObserver records events. It is safe for concurrent use.
type MemoryObserver struct {
	mu       *sync.Mutex
	events   *[]Event
	fields   map[string]string
	progress *[][2]int
}

// NewMemoryObserver creates an empty recording observer.
func NewMemoryObserver() *MemoryObserver {
	return &MemoryObserver{
		mu:       &sync.Mutex{},
		events:   &[]Event{},
		fields:   map[string]string{},
		progress: &[][2]int{},
	}
}

// Event implements Observer.
func (m *MemoryObserver) Event(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Fields = mergeFields(m.fields, event.Fields)
	*m.events = append(*m.events, event)
}

// Progress implements Observer.
func (m *MemoryObserver) Progress(current, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.progress = append(*m.progress, [2]int{current, total})
}

// WithFields implements Observer. The derived observer shares the event log.
func (m *MemoryObserver) WithFields(fields map[string]string) Observer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &MemoryObserver{
		mu:       m.mu,
		events:   m.events,
		fields:   mergeFields(m.fields, fields),
		progress: m.progress,
	}
}

// Events returns a copy of the recorded events.
func (m *MemoryObserver) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(*m.events))
	copy(out, *m.events)
	return out
}

// EventsOfType returns the recorded events of type t.
func (m *MemoryObserver) EventsOfType(t EventType) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func mergeFields(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// ProgressReports returns the recorded (current, total) progress pairs.
func (m *MemoryObserver) ProgressReports() [][2]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][2]int, len(*m.progress))
	copy(out, *m.progress)
	return out
}
