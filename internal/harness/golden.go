package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// TraceSnapshot captures what a golden file compares. Hashes are left out
// so that snapshots survive changes to the hashing scheme; run IDs and seq
// values are deterministic under the harness.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario"`
	Context      string       `json:"context"`
	Superset     string       `json:"superset"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{"batch": event.Batch}
		if event.Error != "" {
			eventMap["error"] = event.Error
			traceList[i] = eventMap
			continue
		}
		results := make([]any, len(event.Results))
		for j, r := range event.Results {
			results[j] = map[string]any{
				"deriv":    r.Deriv,
				"constant": r.Constant,
				"value":    r.Value,
			}
		}
		eventMap["seq"] = event.Seq
		eventMap["run_id"] = event.RunID
		eventMap["points"] = event.Points
		eventMap["results"] = results
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"context":  s.Context,
		"superset": s.Superset,
		"trace":    traceList,
	}
}

// Canonical returns the snapshot's canonical JSON.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Context:      scenario.Context,
		Superset:     result.Superset,
		Trace:        result.Trace,
	}
	if err := assertSnapshot(t, scenario.Name, &snapshot); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Context:      scenario.Context,
		Superset:     result.Superset,
		Trace:        result.Trace,
	}
	return assertSnapshot(t, scenario.Name, &snapshot)
}

func assertSnapshot(t *testing.T, name string, snapshot *TraceSnapshot) error {
	t.Helper()

	traceJSON, err := snapshot.Canonical()
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
