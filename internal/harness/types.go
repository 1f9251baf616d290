package harness

// TraceEvent is one recorded replica event, read back from the store.
type TraceEvent struct {
	Seq       int64    `json:"seq"`
	Replica   string   `json:"replica"`
	Kind      string   `json:"kind"`
	Message   string   `json:"message,omitempty"`
	Ops       []string `json:"ops,omitempty"`
	Rewritten []string `json:"rewritten,omitempty"`
	Acked     int      `json:"acked,omitempty"`
	Text      string   `json:"text,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Replica string `json:"replica"`

	// Instructions are the locally authored instructions of update, insert
	// and delete steps, in compact form.
	Instructions []string `json:"instructions"`

	// Code and Error describe a failed step.
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held and every step
	// error was expected.
	Pass bool `json:"pass"`

	// SessionID is the recorded session.
	SessionID string `json:"session_id"`

	// Trace contains all recorded replica events in order.
	Trace []TraceEvent `json:"trace"`

	// Steps has one entry per scenario step.
	Steps []StepResult `json:"steps"`

	// Texts maps replica label to final document.
	Texts map[string]string `json:"texts"`

	// Outgoing maps replica label to its number of unacknowledged messages.
	Outgoing map[string]int `json:"outgoing"`

	// Errors contains assertion and unexpected step failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Steps:    []StepResult{},
		Texts:    map[string]string{},
		Outgoing: map[string]int{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
