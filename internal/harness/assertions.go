package harness

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/qsnake/trilinos-sub010/internal/eval"
	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/ir"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Type     string // superset, error, absent, present, constant, value, vector
	Deriv    string // derivative checked, if any
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s", e.Type)
	if e.Deriv != "" {
		fmt.Fprintf(&buf, " %s", e.Deriv)
	}
	fmt.Fprintf(&buf, ": expected %s, got %s", e.Expected, e.Actual)
	return buf.String()
}

// checkSuperset compares the root superset with the expected one. Both are
// parsed so spacing in the scenario does not matter.
func checkSuperset(expected, actual string) error {
	if expected == "" {
		return nil
	}
	want, err := multiset.ParseSet(expected)
	if err != nil {
		return err
	}
	if want.String() != actual {
		return &AssertionError{Type: "superset", Expected: want.String(), Actual: actual}
	}
	return nil
}

// checkError compares a batch failure with the expected code.
func checkError(expected string, err error) error {
	if expected == "" {
		return fmt.Errorf("unexpected error: %w", err)
	}
	if !eval.IsBatchError(err, eval.BatchErrorCode(expected)) {
		return &AssertionError{Type: "error", Expected: expected, Actual: joinCodes(eval.BatchErrorCodes(err))}
	}
	return nil
}

// checkExpectations runs every expectation against report and returns the
// failures in order.
func checkExpectations(report *eval.Report, expects []Expectation) []error {
	var errs []error
	for _, e := range expects {
		if err := checkExpectation(report, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func checkExpectation(report *eval.Report, e Expectation) error {
	d, err := multiset.Parse(e.Deriv)
	if err != nil {
		return err
	}
	key := d.String()
	got, ok := report.Lookup(d)
	if e.Absent {
		if ok {
			return &AssertionError{Type: "absent", Deriv: key, Expected: "no such derivative", Actual: describe(got)}
		}
		return nil
	}
	if !ok {
		return &AssertionError{Type: "present", Deriv: key, Expected: "derivative in superset", Actual: "absent"}
	}

	wantConstant := e.Value != nil
	if e.Constant != nil {
		wantConstant = *e.Constant
	}
	if (e.Constant != nil || e.Value != nil || e.Vector != nil) && got.Constant != wantConstant {
		return &AssertionError{Type: "constant", Deriv: key, Expected: fmt.Sprint(wantConstant), Actual: fmt.Sprint(got.Constant)}
	}

	tol := e.Tolerance()
	switch {
	case e.Value != nil:
		if !floats.EqualWithinAbsOrRel(got.Scalar, *e.Value, tol, tol) {
			return &AssertionError{Type: "value", Deriv: key, Expected: ir.FormatFloat(*e.Value), Actual: ir.FormatFloat(got.Scalar)}
		}
	case e.Vector != nil:
		if len(got.Vector) != len(e.Vector) {
			return &AssertionError{Type: "vector", Deriv: key, Expected: formatVector(e.Vector), Actual: formatVector(got.Vector)}
		}
		for i := range e.Vector {
			if !floats.EqualWithinAbsOrRel(got.Vector[i], e.Vector[i], tol, tol) {
				return &AssertionError{Type: "vector", Deriv: key, Expected: formatVector(e.Vector), Actual: formatVector(got.Vector)}
			}
		}
	}
	return nil
}

func describe(r expr.Result) string {
	if r.Constant {
		return "constant " + ir.FormatFloat(r.Scalar)
	}
	return formatVector(r.Vector)
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = ir.FormatFloat(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
