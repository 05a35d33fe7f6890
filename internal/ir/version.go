package ir

// Version constants for IR schema and engine.
const (
	// IRVersion is the canonical node schema version.
	IRVersion = "1"

	// EngineVersion is the evaluator engine version.
	EngineVersion = "0.1.0"
)
