package harness

// TraceEvent records what one step did.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Memento string `json:"memento,omitempty"`
	Key     string `json:"key,omitempty"`
	Object  string `json:"object,omitempty"`
	Token   string `json:"token,omitempty"`
	Outcome string `json:"outcome"`
}

// Step outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFound  = "found"
	OutcomeAbsent = "absent"
	OutcomeError  = "error"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as declared.
	Pass bool `json:"pass"`

	// Trace has one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes each misbehaving step. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
