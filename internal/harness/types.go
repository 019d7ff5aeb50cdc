package harness

import "github.com/roach88/pensionledger/internal/ir"

// OutcomeCommitted is the trace outcome of a step that committed. A
// rejected step records its error code instead.
const OutcomeCommitted = "committed"

// outcomeFailed marks a step that failed outside the error taxonomy.
const outcomeFailed = "failed"

// TraceEvent is one submitted transaction and how it ended.
type TraceEvent struct {
	Seq       int    `json:"seq"`
	Kind      string `json:"kind"`
	Key       string `json:"key"`
	TxID      string `json:"txId,omitempty"`
	Outcome   string `json:"outcome"`
	ChainHash string `json:"chainHash,omitempty"` // set when committed
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every seed, setup and flow transaction in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Audits holds the final audit of every key with history, ordered by key.
	Audits []ir.AuditResult `json:"audits"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Audits: []ir.AuditResult{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addStep appends a trace event and returns it.
func (r *Result) addStep(kind, key, txID, outcome, chainHash string) TraceEvent {
	ev := TraceEvent{
		Seq:       len(r.Trace),
		Kind:      kind,
		Key:       key,
		TxID:      txID,
		Outcome:   outcome,
		ChainHash: chainHash,
	}
	r.Trace = append(r.Trace, ev)
	return ev
}
