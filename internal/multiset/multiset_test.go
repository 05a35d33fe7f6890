package multiset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfSortsAndKeepsMultiplicity(t *testing.T) {
	m := Of(1, 0, 0)
	assert.Equal(t, []int{0, 0, 1}, m.Elements())
	assert.Equal(t, 3, m.Order())
	assert.Equal(t, 2, m.Count(0))
	assert.Equal(t, 1, m.Count(1))
	assert.Equal(t, "{0,0,1}", m.String())
	assert.False(t, Of(0).Equal(Of(0, 0)), "multiplicity matters")
}

func TestOfDoesNotAliasInput(t *testing.T) {
	in := []int{2, 1}
	m := Of(in...)
	in[0] = 9
	assert.Equal(t, []int{1, 2}, m.Elements())
}

func TestEmptyMultiSet(t *testing.T) {
	assert.True(t, Empty().IsEmpty())
	assert.Equal(t, "{}", Empty().String())
	assert.True(t, Empty().Equal(Of()))
	assert.Equal(t, 0, Empty().Order())
}

func TestCompareOrdersByOrderThenLexicographic(t *testing.T) {
	ordered := []MultiSet{Of(), Of(0), Of(3), Of(0, 0), Of(0, 1), Of(1, 1), Of(0, 0, 0)}
	for i := range ordered {
		assert.Equal(t, 0, ordered[i].Compare(ordered[i]))
		for j := i + 1; j < len(ordered); j++ {
			assert.True(t, ordered[i].Less(ordered[j]), "%s < %s", ordered[i], ordered[j])
			assert.False(t, ordered[j].Less(ordered[i]))
		}
	}
}

func TestUnionAndMinus(t *testing.T) {
	a := Of(0, 1)
	b := Of(0)
	u := a.Union(b)
	assert.Equal(t, "{0,0,1}", u.String())

	rest, ok := u.Minus(Of(0, 1))
	require.True(t, ok)
	assert.Equal(t, "{0}", rest.String())

	_, ok = a.Minus(Of(2))
	assert.False(t, ok)

	rest, ok = a.Minus(a)
	require.True(t, ok)
	assert.True(t, rest.IsEmpty())
}

func TestContains(t *testing.T) {
	assert.True(t, Of(0, 0, 1).Contains(Of(0, 1)))
	assert.True(t, Of(0, 0, 1).Contains(Empty()))
	assert.False(t, Of(0, 1).Contains(Of(0, 0)))
	assert.False(t, Empty().Contains(Of(0)))
}

func TestSubMultiSets(t *testing.T) {
	subs := Of(0, 0, 1).SubMultiSets()
	var got []string
	for _, s := range subs {
		got = append(got, s.String())
	}
	assert.Equal(t, []string{"{}", "{0}", "{1}", "{0,0}", "{0,1}", "{0,0,1}"}, got)

	assert.Len(t, Empty().SubMultiSets(), 1)
}

func TestSplitCoefficient(t *testing.T) {
	tests := []struct {
		name string
		d    MultiSet
		part MultiSet
		want float64
	}{
		{"value", Empty(), Empty(), 1},
		{"first derivative", Of(0), Of(0), 1},
		{"cross term of second derivative", Of(0, 0), Of(0), 2},
		{"mixed second derivative", Of(0, 1), Of(0), 1},
		{"third derivative", Of(0, 0, 0), Of(0), 3},
		{"not contained", Of(0), Of(1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCoefficient(tt.d, tt.part))
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"{}", "{0}", "{0,0,1}"} {
		m, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, m.String())
	}

	m, err := Parse("1, 0")
	require.NoError(t, err)
	assert.Equal(t, "{0,1}", m.String())

	for _, bad := range []string{"{a}", "{-3}", "{0,-1}"} {
		_, err = Parse(bad)
		assert.Error(t, err, bad)
	}
}
