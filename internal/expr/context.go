package expr

import (
	"fmt"
	"log/slog"
)

// EvalContext identifies an evaluation configuration. It is used as a memo
// key for per-node caches, so it must stay comparable.
type EvalContext struct {
	// Label distinguishes contexts that share an order, e.g. "residual"
	// and "jacobian".
	Label string

	// MaxOrder is the highest total derivative order any node produces.
	MaxOrder int

	// SetupVerb enables setup diagnostics when > 0.
	SetupVerb int
}

// NewEvalContext validates and returns a context.
func NewEvalContext(label string, maxOrder, setupVerb int) (EvalContext, error) {
	if label == "" {
		return EvalContext{}, fmt.Errorf("eval context: label is required")
	}
	if maxOrder < 0 {
		return EvalContext{}, fmt.Errorf("eval context %q: max order must be non-negative, got %d", label, maxOrder)
	}
	if setupVerb < 0 {
		return EvalContext{}, fmt.Errorf("eval context %q: setup verbosity must be non-negative, got %d", label, setupVerb)
	}
	return EvalContext{Label: label, MaxOrder: maxOrder, SetupVerb: setupVerb}, nil
}

func (c EvalContext) String() string {
	return fmt.Sprintf("%s[order<=%d]", c.Label, c.MaxOrder)
}

// LogValue implements slog.LogValuer.
func (c EvalContext) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("label", c.Label),
		slog.Int("max_order", c.MaxOrder),
	)
}

func (c EvalContext) flightKey(id NodeID) string {
	return fmt.Sprintf("%d|%q|%d|%d", id, c.Label, c.MaxOrder, c.SetupVerb)
}
