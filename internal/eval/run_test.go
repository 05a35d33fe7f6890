package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/ir"
)

func TestReport_IR(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	root := d.MustProduct(u, u)
	report := run(t, root, jacobianCtx, BatchData{Points: 2, Fields: map[string][]float64{"u": {0.5, -1}}})

	got, err := ir.MarshalCanonical(report.IR())
	require.NoError(t, err)
	assert.Equal(t,
		`[{"constant":false,"deriv":"{}","value":["0.25","1"]},`+
			`{"constant":false,"deriv":"{0}","value":["1","-2"]},`+
			`{"constant":true,"deriv":"{0,0}","value":"2"}]`,
		string(got))
}

func TestReport_HashIsStable(t *testing.T) {
	data := BatchData{Points: 2, Fields: map[string][]float64{"f": {1, 2}}}

	hashOf := func() string {
		d := NewDAG()
		root := d.MustSum(d.MustField("f"), d.MustConstant(1))
		s := d.Setup(root, valueCtx)
		report, err := NewRunner().Run(context.Background(), s, MustBatch(data))
		require.NoError(t, err)
		h, err := report.Hash()
		require.NoError(t, err)
		return h
	}

	first := hashOf()
	assert.Len(t, first, 64)
	assert.Equal(t, first, hashOf(), "same expression, batch and seq hash identically")
}

func TestReport_SeqChangesHash(t *testing.T) {
	d := NewDAG()
	root := d.MustConstant(3)
	s := d.Setup(root, valueCtx)
	runner := NewRunner(WithClock(NewClockAt(10)))
	batch := MustBatch(BatchData{Points: 1})

	a, err := runner.Run(context.Background(), s, batch)
	require.NoError(t, err)
	b, err := runner.Run(context.Background(), s, batch)
	require.NoError(t, err)

	assert.Equal(t, int64(11), a.Seq)
	assert.Equal(t, int64(12), b.Seq)
	ha, _ := a.Hash()
	hb, _ := b.Hash()
	assert.NotEqual(t, ha, hb)
}

func TestFactories_CoverEveryKind(t *testing.T) {
	table := Factories()
	for _, k := range expr.Kinds() {
		assert.Contains(t, table, k)
	}
}

func TestReport_Record(t *testing.T) {
	d := NewDAG()
	u := d.MustUnknown("u", 0)
	root := d.MustProduct(u, u)
	report := run(t, root, jacobianCtx, BatchData{Points: 2, Fields: map[string][]float64{"u": {0.5, -1}}})

	rec, err := report.Record()
	require.NoError(t, err)

	hash, err := report.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, rec.Hash)
	require.NoError(t, rec.Verify(), "a fresh record verifies")
	assert.Empty(t, rec.ID)
	assert.Equal(t, "jacobian", rec.Context)
	assert.Equal(t, 2, rec.MaxOrder)
	assert.Equal(t, root.Hash(), rec.RootHash)
	assert.Equal(t, ir.EngineVersion, rec.EngineVersion)
	require.Len(t, rec.Results, 3)

	value, err := rec.Results[0].Vector()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 1}, value)

	assert.Equal(t, "{0,0}", rec.Results[2].Deriv)
	second, err := rec.Results[2].Scalar()
	require.NoError(t, err)
	assert.Equal(t, 2.0, second)

	_, err = rec.Results[2].Vector()
	assert.Error(t, err)
}
