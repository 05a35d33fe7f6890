package expr

import (
	"errors"
	"fmt"
)

// ConstructionError reports a malformed expression detected while building
// the DAG: wrong sign, foreign or zero handle, invalid leaf payload.
// These are configuration errors; callers should not retry.
type ConstructionError struct {
	// Op names the constructor that rejected its input.
	Op string

	// Message is a human-readable description.
	Message string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsConstructionError returns true if err is or wraps a ConstructionError.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}

func constructionErrorf(op, format string, args ...any) *ConstructionError {
	return &ConstructionError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// SetupError is the panic value for sequencing errors: requesting a
// superset or evaluator for a node the setup pass never reached, reusing a
// context with another root, or a node kind with no registered factory.
type SetupError struct {
	Context EvalContext
	Node    string
	Message string
}

func (e *SetupError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("setup %s: node %s: %s", e.Context, e.Node, e.Message)
	}
	return fmt.Sprintf("setup %s: %s", e.Context, e.Message)
}

// InternalError is the panic value for violated internal invariants, for
// example a superset computed twice for the same (node, context) pair.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

func internalf(format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}
