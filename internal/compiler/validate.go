package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ValidationError is a program-level consistency error. Unlike
// CompileError it does not stop compilation; Validate reports all of them.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validation error codes.
const (
	ErrContextRootUndefined = "E201"
	ErrNegativeMaxOrder     = "E202"
	ErrNegativeSetupVerb    = "E203"
	ErrNameCollision        = "E204"
	ErrNotLinearInTests     = "E205"
)

// Validate checks p's declarations and contexts. Results are ordered by
// field so output is stable.
func Validate(p *Program) []ValidationError {
	var errs []ValidationError

	for _, name := range slices.Sorted(maps.Keys(p.Unknowns)) {
		if _, ok := p.Tests[name]; ok {
			errs = append(errs, ValidationError{
				Field:   "tests." + name,
				Message: fmt.Sprintf("%q is declared as both an unknown and a test function", name),
				Code:    ErrNameCollision,
			})
		}
	}

	for _, name := range p.ContextNames() {
		c := p.Contexts[name]
		field := "context." + name
		line := c.Pos.Line()

		if c.MaxOrder < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".max_order",
				Message: fmt.Sprintf("max_order must be non-negative, got %d", c.MaxOrder),
				Code:    ErrNegativeMaxOrder,
				Line:    line,
			})
		}
		if c.SetupVerb < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".setup_verb",
				Message: fmt.Sprintf("setup_verb must be non-negative, got %d", c.SetupVerb),
				Code:    ErrNegativeSetupVerb,
				Line:    line,
			})
		}

		root, ok := p.Exprs[c.Root]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".root",
				Message: fmt.Sprintf("root expression %q is not defined", c.Root),
				Code:    ErrContextRootUndefined,
				Line:    line,
			})
			continue
		}

		// A root that involves test functions is a weak form and must be
		// linear in them.
		involvesTests := false
		for key, v := range p.diffVars {
			if strings.HasPrefix(key, "test:") && !root.IsIndependentOf(v) {
				involvesTests = true
				break
			}
		}
		if involvesTests && !root.IsLinearInTests() {
			errs = append(errs, ValidationError{
				Field:   field + ".root",
				Message: fmt.Sprintf("root expression %q is not linear in its test functions", c.Root),
				Code:    ErrNotLinearInTests,
				Line:    line,
			})
		}
	}
	return errs
}
