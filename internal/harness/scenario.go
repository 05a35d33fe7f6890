package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/qsnake/trilinos-sub010/internal/eval"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// DefaultTolerance is the absolute and relative tolerance used when an
// expectation does not set one.
const DefaultTolerance = 1e-12

// Scenario defines an evaluation scenario.
// A scenario sets up one context of a spec and evaluates a sequence of
// quadrature batches against it.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Specs is the CUE package directory holding the expression spec.
	// Relative paths are resolved against the scenario file's directory
	// when loaded with LoadScenarioWithBasePath.
	Specs string `yaml:"specs"`

	// Context names the evaluation context to set up.
	Context string `yaml:"context"`

	// Superset is the expected sparsity superset of the root, in the
	// form "{{1},{0,1}}". Empty skips the check.
	Superset string `yaml:"superset,omitempty"`

	// Batches are evaluated in order.
	Batches []BatchStep `yaml:"batches"`
}

// BatchStep is one quadrature batch and what its evaluation must produce.
type BatchStep struct {
	eval.BatchData `yaml:",inline"`

	// ExpectError is the batch error code the evaluation must fail with
	// (e.g. "MISSING_FIELD"). Mutually exclusive with Expect.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Expect lists checks on individual derivatives of the root.
	Expect []Expectation `yaml:"expect,omitempty"`
}

// Expectation checks one derivative of the root.
type Expectation struct {
	// Deriv is the derivative in multiset notation, e.g. "{0,1}".
	Deriv string `yaml:"deriv"`

	// Absent asserts the derivative is not in the root's superset.
	Absent bool `yaml:"absent,omitempty"`

	// Constant, if set, asserts the derivative's constancy.
	Constant *bool `yaml:"constant,omitempty"`

	// Value is the expected constant value.
	Value *float64 `yaml:"value,omitempty"`

	// Vector is the expected per-point value.
	Vector []float64 `yaml:"vector,omitempty"`

	// Tol overrides DefaultTolerance.
	Tol float64 `yaml:"tol,omitempty"`
}

// Tolerance returns the comparison tolerance for e.
func (e Expectation) Tolerance() float64 {
	if e.Tol > 0 {
		return e.Tol
	}
	return DefaultTolerance
}

var batchErrorCodes = []eval.BatchErrorCode{
	eval.ErrCodeBadPoints,
	eval.ErrCodeMissingCoordinate,
	eval.ErrCodeMissingField,
	eval.ErrCodeLengthMismatch,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative specs path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) && basePath != "" {
		scenario.Specs = filepath.Join(basePath, scenario.Specs)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Specs == "" {
		return fmt.Errorf("specs is required")
	}
	if s.Context == "" {
		return fmt.Errorf("context is required")
	}
	if len(s.Batches) == 0 {
		return fmt.Errorf("batches list is required and must be non-empty")
	}

	info, err := os.Stat(s.Specs)
	if os.IsNotExist(err) {
		return fmt.Errorf("spec directory not found: %s", s.Specs)
	}
	if err == nil && !info.IsDir() {
		return fmt.Errorf("specs must be a directory: %s", s.Specs)
	}

	if s.Superset != "" {
		if _, err := multiset.ParseSet(s.Superset); err != nil {
			return fmt.Errorf("superset: %w", err)
		}
	}

	for i, b := range s.Batches {
		if b.ExpectError != "" {
			if !slices.Contains(batchErrorCodes, eval.BatchErrorCode(b.ExpectError)) {
				return fmt.Errorf("batches[%d]: unknown expect_error code %q (valid: %v)", i, b.ExpectError, batchErrorCodes)
			}
			if len(b.Expect) > 0 {
				return fmt.Errorf("batches[%d]: expect and expect_error are mutually exclusive", i)
			}
		}
		for j, e := range b.Expect {
			if err := validateExpectation(e); err != nil {
				return fmt.Errorf("batches[%d].expect[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

func validateExpectation(e Expectation) error {
	if e.Deriv == "" {
		return fmt.Errorf("deriv is required")
	}
	if _, err := multiset.Parse(e.Deriv); err != nil {
		return fmt.Errorf("deriv %q: %w", e.Deriv, err)
	}
	if e.Tol < 0 {
		return fmt.Errorf("tol must be non-negative")
	}
	if e.Absent && (e.Constant != nil || e.Value != nil || e.Vector != nil) {
		return fmt.Errorf("absent excludes constant, value and vector")
	}
	if e.Value != nil && e.Vector != nil {
		return fmt.Errorf("value and vector are mutually exclusive")
	}
	if e.Constant != nil && *e.Constant && e.Vector != nil {
		return fmt.Errorf("a constant derivative has no vector")
	}
	if e.Constant != nil && !*e.Constant && e.Value != nil {
		return fmt.Errorf("a non-constant derivative has no scalar value")
	}
	return nil
}
