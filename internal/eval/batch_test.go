package eval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsnake/trilinos-sub010/internal/expr"
)

func TestNewBatch_Errors(t *testing.T) {
	tests := []struct {
		name string
		data BatchData
		code BatchErrorCode
	}{
		{"zero points", BatchData{}, ErrCodeBadPoints},
		{"short coordinate", BatchData{Points: 2, Coords: [][]float64{{1}}}, ErrCodeLengthMismatch},
		{"long field", BatchData{Points: 1, Fields: map[string][]float64{"f": {1, 2}}}, ErrCodeLengthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBatch(tt.data)
			require.Error(t, err)
			assert.True(t, IsBatchError(err, tt.code), "got %v", err)
		})
	}
}

func TestBatch_Accessors(t *testing.T) {
	b := MustBatch(BatchData{
		Points: 2,
		Coords: [][]float64{{0, 1}, {2, 3}},
		Fields: map[string][]float64{"rho": {4, 5}},
		Verb:   1,
	})
	assert.Equal(t, 2, b.Points())
	assert.Equal(t, 1, b.Verb())
	assert.Equal(t, []float64{2, 3}, b.Coordinate(1))
	assert.Equal(t, []float64{4, 5}, b.Field("rho"))
	assert.NotNil(t, b.Logger())

	assert.Panics(t, func() { b.Coordinate(2) })
	assert.Panics(t, func() { b.Field("missing") })
}

func TestBatch_Validate(t *testing.T) {
	d := NewDAG()
	x1 := d.MustCoordinate(1)
	rho := d.MustField("rho")
	u := d.MustUnknown("u", 0)
	v := d.MustTest("v", 1)
	root := d.MustSum(d.MustProduct(x1, rho), d.MustProduct(u, v))

	s := d.Setup(root, expr.EvalContext{Label: "validate", MaxOrder: 2})
	b := MustBatch(BatchData{Points: 1, Coords: [][]float64{{0}}})

	err := b.Validate(s)
	require.Error(t, err)
	assert.True(t, IsBatchError(err, ""))

	var codes []BatchErrorCode
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var be *BatchError
		require.True(t, errors.As(e, &be))
		codes = append(codes, be.Code)
	}
	assert.ElementsMatch(t, []BatchErrorCode{ErrCodeMissingCoordinate, ErrCodeMissingField, ErrCodeMissingField}, codes)

	full := MustBatch(BatchData{
		Points: 1,
		Coords: [][]float64{{0}, {1}},
		Fields: map[string][]float64{"rho": {2}, "u": {3}},
	})
	assert.NoError(t, full.Validate(s))
}

func TestBatch_ValidateSkipsDerivativeOnlyUnknowns(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	v := d.MustTest("v", 1)
	// At order 0 the test function vanishes, so nothing below the product
	// is required and u needs no data.
	root := d.MustProduct(u, v)
	ctx := expr.EvalContext{Label: "value-only", MaxOrder: 0}
	s := d.Setup(root, ctx)

	assert.True(t, s.SparsitySuperset(u).IsEmpty())
	assert.NoError(t, MustBatch(BatchData{Points: 1}).Validate(s))
}

func TestRun_InvalidBatchIsError(t *testing.T) {
	d := NewDAG()
	root := d.MustField("missing")
	s := d.Setup(root, valueCtx)

	_, err := NewRunner().Run(context.Background(), s, MustBatch(BatchData{Points: 1}))
	require.Error(t, err)
	assert.True(t, IsBatchError(err, ErrCodeMissingField))
	assert.Contains(t, err.Error(), "value[order<=0]")
}

func TestBatchError_Error(t *testing.T) {
	err := &BatchError{Code: ErrCodeMissingField, Message: `field "u" not provided`, Node: "u"}
	assert.Equal(t, `MISSING_FIELD: field "u" not provided (node=u)`, err.Error())

	err = &BatchError{Code: ErrCodeBadPoints, Message: "nope"}
	assert.Equal(t, "BAD_POINTS: nope", err.Error())
}

func TestBatchErrorCodes(t *testing.T) {
	_, err := NewBatch(BatchData{
		Points: 2,
		Coords: [][]float64{{1}},
		Fields: map[string][]float64{"f": {1, 2, 3}},
	})
	require.Error(t, err)

	wrapped := fmt.Errorf("run: %w", err)
	assert.Equal(t, []BatchErrorCode{ErrCodeLengthMismatch, ErrCodeLengthMismatch}, BatchErrorCodes(wrapped))
	assert.True(t, IsBatchError(wrapped, ErrCodeLengthMismatch))
	assert.False(t, IsBatchError(wrapped, ErrCodeMissingField))

	assert.Empty(t, BatchErrorCodes(errors.New("plain")))
	assert.Empty(t, BatchErrorCodes(nil))
}
