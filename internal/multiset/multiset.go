// Package multiset provides the MultipleDeriv value type: an ordered multiset
// of small differentiation-variable indices, plus small sorted sets of them.
//
// Both types have value semantics. A MultiSet never aliases the slice it was
// built from, and every Set operation returns a new Set.
//
// Ordering is total: multisets compare by order (number of elements) first,
// then lexicographically over their sorted elements. The empty multiset is
// the smallest value and denotes "no differentiation".
package multiset

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MultiSet is an unordered multiset of differentiation-variable indices.
// The zero value is the empty multiset.
type MultiSet struct {
	elems []int // sorted ascending
}

// Of builds a multiset from the given indices. Order is irrelevant,
// multiplicity is kept: Of(0, 0) is a second derivative in variable 0.
func Of(indices ...int) MultiSet {
	if len(indices) == 0 {
		return MultiSet{}
	}
	elems := slices.Clone(indices)
	slices.Sort(elems)
	return MultiSet{elems: elems}
}

// Empty returns the empty multiset.
func Empty() MultiSet {
	return MultiSet{}
}

// Order returns the number of elements, counting multiplicity.
func (m MultiSet) Order() int {
	return len(m.elems)
}

// IsEmpty reports whether m has no elements.
func (m MultiSet) IsEmpty() bool {
	return len(m.elems) == 0
}

// Elements returns a copy of the sorted elements.
func (m MultiSet) Elements() []int {
	return slices.Clone(m.elems)
}

// Count returns the multiplicity of i in m.
func (m MultiSet) Count(i int) int {
	n := 0
	for _, e := range m.elems {
		if e == i {
			n++
		}
	}
	return n
}

// Distinct returns the distinct elements of m in ascending order.
func (m MultiSet) Distinct() []int {
	return slices.Compact(slices.Clone(m.elems))
}

// Union returns the multiset sum of m and other (multiplicities add).
func (m MultiSet) Union(other MultiSet) MultiSet {
	if m.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return m
	}
	elems := make([]int, 0, len(m.elems)+len(other.elems))
	elems = append(elems, m.elems...)
	elems = append(elems, other.elems...)
	slices.Sort(elems)
	return MultiSet{elems: elems}
}

// Contains reports whether other is a sub-multiset of m.
func (m MultiSet) Contains(other MultiSet) bool {
	i := 0
	for _, e := range other.elems {
		for i < len(m.elems) && m.elems[i] < e {
			i++
		}
		if i == len(m.elems) || m.elems[i] != e {
			return false
		}
		i++
	}
	return true
}

// Minus removes other from m, one occurrence per element of other.
// The second result is false if other is not a sub-multiset of m.
func (m MultiSet) Minus(other MultiSet) (MultiSet, bool) {
	if !m.Contains(other) {
		return MultiSet{}, false
	}
	rest := make([]int, 0, len(m.elems)-len(other.elems))
	j := 0
	for _, e := range m.elems {
		if j < len(other.elems) && other.elems[j] == e {
			j++
			continue
		}
		rest = append(rest, e)
	}
	if len(rest) == 0 {
		return MultiSet{}, true
	}
	return MultiSet{elems: rest}, true
}

// Compare orders multisets by order, then lexicographically.
// Returns -1, 0 or +1.
func (m MultiSet) Compare(other MultiSet) int {
	if len(m.elems) != len(other.elems) {
		if len(m.elems) < len(other.elems) {
			return -1
		}
		return 1
	}
	return slices.Compare(m.elems, other.elems)
}

// Less reports whether m sorts before other.
func (m MultiSet) Less(other MultiSet) bool {
	return m.Compare(other) < 0
}

// Equal reports whether m and other hold the same elements with the same
// multiplicities.
func (m MultiSet) Equal(other MultiSet) bool {
	return slices.Equal(m.elems, other.elems)
}

// String renders m as "{0,0,1}"; the empty multiset renders as "{}".
func (m MultiSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range m.elems {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(e))
	}
	b.WriteByte('}')
	return b.String()
}

// Key returns a string usable as a map key. Equal multisets have equal keys.
func (m MultiSet) Key() string {
	return m.String()
}

// Parse reads the String form back ("{}", "{0,1}", "0,1" and "" are accepted).
// Indices must be non-negative.
func Parse(s string) (MultiSet, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	s = strings.TrimSpace(s)
	if s == "" {
		return MultiSet{}, nil
	}
	parts := strings.Split(s, ",")
	elems := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return MultiSet{}, err
		}
		if n < 0 {
			return MultiSet{}, fmt.Errorf("parse multiset %q: negative index %d", s, n)
		}
		elems = append(elems, n)
	}
	return Of(elems...), nil
}

// SubMultiSets returns every distinct sub-multiset of m (including the empty
// multiset and m itself) in total order.
func (m MultiSet) SubMultiSets() []MultiSet {
	distinct := m.Distinct()
	counts := make([]int, len(distinct))
	for i, d := range distinct {
		counts[i] = m.Count(d)
	}

	var out []MultiSet
	pick := make([]int, len(distinct))
	var walk func(pos int)
	walk = func(pos int) {
		if pos == len(distinct) {
			var elems []int
			for i, n := range pick {
				for k := 0; k < n; k++ {
					elems = append(elems, distinct[i])
				}
			}
			out = append(out, MultiSet{elems: elems})
			return
		}
		for n := 0; n <= counts[pos]; n++ {
			pick[pos] = n
			walk(pos + 1)
		}
	}
	walk(0)

	slices.SortFunc(out, MultiSet.Compare)
	return out
}

// SplitCoefficient returns the Leibniz coefficient for splitting d into part
// and d-part: the product over distinct variables v of
// binomial(count_d(v), count_part(v)). Returns 0 if part is not contained in d.
func SplitCoefficient(d, part MultiSet) float64 {
	if !d.Contains(part) {
		return 0
	}
	coef := 1.0
	for _, v := range d.Distinct() {
		coef *= binomial(d.Count(v), part.Count(v))
	}
	return coef
}

func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	r := 1.0
	for i := 1; i <= k; i++ {
		r = r * float64(n-k+i) / float64(i)
	}
	return r
}
