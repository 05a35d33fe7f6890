package harness

import (
	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// TraceEvent is one batch of a scenario: either a persisted run or the
// batch error that prevented it.
type TraceEvent struct {
	Batch   int               `json:"batch"`
	Seq     int64             `json:"seq,omitempty"`
	RunID   string            `json:"run_id,omitempty"`
	Points  int               `json:"points,omitempty"`
	Results []ir.ResultRecord `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"` // batch error codes, comma separated
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expectation held.
	Pass bool `json:"pass"`

	// Superset is the root's sparsity superset under the scenario context.
	Superset string `json:"superset"`

	// Trace holds one event per batch, in batch order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures. Empty if Pass is true.
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

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
