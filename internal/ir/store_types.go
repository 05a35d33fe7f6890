package ir

import "fmt"

// NOTE: These are store-layer records, not part of the canonical node IR.
// Runs are keyed by UUIDv7 so they sort by creation; ordering still uses seq.

// ExpressionRecord is a named expression persisted by root hash.
type ExpressionRecord struct {
	Hash      string `json:"hash"`
	Name      string `json:"name"`
	Canonical string `json:"canonical"` // canonical JSON node table
	IRVersion string `json:"ir_version"`
}

// RunRecord is one persisted batch evaluation.
type RunRecord struct {
	ID            string         `json:"id"`   // UUIDv7
	Hash          string         `json:"hash"` // RunHash of context, results and seq
	Context       string         `json:"context"`
	MaxOrder      int            `json:"max_order"`
	ContextHash   string         `json:"context_hash"`
	RootHash      string         `json:"root_hash"`
	Points        int            `json:"points"`
	Seq           int64          `json:"seq"` // Logical clock
	EngineVersion string         `json:"engine_version"`
	Results       []ResultRecord `json:"results,omitempty"`
}

// ResultRecord is one derivative of a run's root.
type ResultRecord struct {
	Index    int     `json:"index"`
	Deriv    string  `json:"deriv"`
	Constant bool    `json:"constant"`
	Value    IRValue `json:"value"` // IRString for constants, IRArray of IRString otherwise
}

// Scalar parses the value of a constant result.
func (r ResultRecord) Scalar() (float64, error) {
	s, ok := r.Value.(IRString)
	if !r.Constant || !ok {
		return 0, fmt.Errorf("result %s: not a constant", r.Deriv)
	}
	return ParseFloat(string(s))
}

// Vector parses the value of a per-point result.
func (r ResultRecord) Vector() ([]float64, error) {
	arr, ok := r.Value.(IRArray)
	if r.Constant || !ok {
		return nil, fmt.Errorf("result %s: not a vector", r.Deriv)
	}
	out := make([]float64, len(arr))
	for i, v := range arr {
		s, ok := v.(IRString)
		if !ok {
			return nil, fmt.Errorf("result %s[%d]: expected decimal string, got %T", r.Deriv, i, v)
		}
		f, err := ParseFloat(string(s))
		if err != nil {
			return nil, fmt.Errorf("result %s[%d]: %w", r.Deriv, i, err)
		}
		out[i] = f
	}
	return out, nil
}

// ResultsIR rebuilds the canonical results array the run hash covers.
func (r RunRecord) ResultsIR() IRArray {
	arr := make(IRArray, len(r.Results))
	for i, res := range r.Results {
		arr[i] = IRObject{
			"deriv":    IRString(res.Deriv),
			"constant": IRBool(res.Constant),
			"value":    res.Value,
		}
	}
	return arr
}

// Verify recomputes the run's context and content hashes from its fields
// and reports the first mismatch.
func (r RunRecord) Verify() error {
	ch, err := ContextHash(r.Context, r.MaxOrder, r.RootHash)
	if err != nil {
		return fmt.Errorf("run %s: %w", r.ID, err)
	}
	if ch != r.ContextHash {
		return fmt.Errorf("run %s: context hash mismatch: stored %s, computed %s", r.ID, r.ContextHash, ch)
	}
	h, err := RunHash(ch, r.ResultsIR(), r.Seq)
	if err != nil {
		return fmt.Errorf("run %s: %w", r.ID, err)
	}
	if h != r.Hash {
		return fmt.Errorf("run %s: run hash mismatch: stored %s, computed %s", r.ID, r.Hash, h)
	}
	return nil
}
