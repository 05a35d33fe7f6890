package store

import (
	"path/filepath"
	"testing"

	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds a run with one vector and one constant result.
func createTestRun(context string, seq int64) ir.RunRecord {
	return ir.RunRecord{
		Hash:          "run-hash",
		Context:       context,
		MaxOrder:      2,
		ContextHash:   "ctx-hash",
		RootHash:      "root-hash",
		Points:        2,
		Seq:           seq,
		EngineVersion: ir.EngineVersion,
		Results: []ir.ResultRecord{
			{Index: 0, Deriv: "{0}", Value: ir.FloatArray([]float64{0.1, -2})},
			{Index: 1, Deriv: "{0,0}", Constant: true, Value: ir.FloatString(2)},
		},
	}
}
