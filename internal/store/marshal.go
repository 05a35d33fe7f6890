package store

import (
	"encoding/json"
	"fmt"

	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// marshalValue converts a result value to canonical JSON TEXT for storage.
// Constants are a single decimal string, vectors an array of them.
func marshalValue(v ir.IRValue) (string, error) {
	switch v.(type) {
	case ir.IRString, ir.IRArray:
	default:
		return "", fmt.Errorf("marshal value: unsupported type %T", v)
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses a stored value back into its IR form. Decimal
// strings are kept as text so floats survive the round trip bit-for-bit.
func unmarshalValue(data string, constant bool) (ir.IRValue, error) {
	if constant {
		var s string
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, fmt.Errorf("unmarshal constant value: %w", err)
		}
		return ir.IRString(s), nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal vector value: %w", err)
	}
	arr := make(ir.IRArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.IRString(s)
	}
	return arr, nil
}
