package multiset

import (
	"fmt"
	"slices"
	"strings"
)

// Set is a sorted set of MultiSets with value semantics.
// The zero value is the empty set.
type Set struct {
	items []MultiSet // sorted by MultiSet.Compare, no duplicates
}

// NewSet builds a set from the given multisets, dropping duplicates.
func NewSet(items ...MultiSet) Set {
	var s Set
	for _, m := range items {
		s = s.Put(m)
	}
	return s
}

// Put returns s with m added.
func (s Set) Put(m MultiSet) Set {
	i, found := slices.BinarySearchFunc(s.items, m, MultiSet.Compare)
	if found {
		return s
	}
	items := make([]MultiSet, 0, len(s.items)+1)
	items = append(items, s.items[:i]...)
	items = append(items, m)
	items = append(items, s.items[i:]...)
	return Set{items: items}
}

// Contains reports whether m is in s.
func (s Set) Contains(m MultiSet) bool {
	_, found := slices.BinarySearchFunc(s.items, m, MultiSet.Compare)
	return found
}

// IndexOf returns the position of m in s, or -1.
func (s Set) IndexOf(m MultiSet) int {
	i, found := slices.BinarySearchFunc(s.items, m, MultiSet.Compare)
	if !found {
		return -1
	}
	return i
}

// Len returns the number of elements.
func (s Set) Len() int {
	return len(s.items)
}

// IsEmpty reports whether s has no elements.
func (s Set) IsEmpty() bool {
	return len(s.items) == 0
}

// Items returns the elements in total order. The slice is a copy.
func (s Set) Items() []MultiSet {
	return slices.Clone(s.items)
}

// At returns the i-th element in total order.
func (s Set) At(i int) MultiSet {
	return s.items[i]
}

// Union returns the elements of s and other.
func (s Set) Union(other Set) Set {
	out := s
	for _, m := range other.items {
		out = out.Put(m)
	}
	return out
}

// Intersect returns the elements present in both s and other.
func (s Set) Intersect(other Set) Set {
	var out Set
	for _, m := range s.items {
		if other.Contains(m) {
			out.items = append(out.items, m)
		}
	}
	return out
}

// Minus returns the elements of s absent from other.
func (s Set) Minus(other Set) Set {
	var out Set
	for _, m := range s.items {
		if !other.Contains(m) {
			out.items = append(out.items, m)
		}
	}
	return out
}

// OfOrder returns the elements whose order equals k.
func (s Set) OfOrder(k int) Set {
	var out Set
	for _, m := range s.items {
		if m.Order() == k {
			out.items = append(out.items, m)
		}
	}
	return out
}

// Equal reports whether s and other hold the same elements.
func (s Set) Equal(other Set) bool {
	return slices.EqualFunc(s.items, other.items, MultiSet.Equal)
}

// Strings returns the String form of every element, in order.
func (s Set) Strings() []string {
	out := make([]string, len(s.items))
	for i, m := range s.items {
		out[i] = m.String()
	}
	return out
}

// String renders the set as "{{},{0},{0,1}}".
func (s Set) String() string {
	return "{" + strings.Join(s.Strings(), ",") + "}"
}

// ParseSet reads the String form of a Set back.
func ParseSet(s string) (Set, error) {
	body := strings.TrimSpace(s)
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return Set{}, fmt.Errorf("parse set %q: missing braces", s)
	}
	body = strings.TrimSpace(body[1 : len(body)-1])

	var out Set
	for body != "" {
		if body[0] != '{' {
			return Set{}, fmt.Errorf("parse set %q: expected '{' at %q", s, body)
		}
		end := strings.IndexByte(body, '}')
		if end < 0 {
			return Set{}, fmt.Errorf("parse set %q: unterminated element", s)
		}
		m, err := Parse(body[:end+1])
		if err != nil {
			return Set{}, fmt.Errorf("parse set %q: %w", s, err)
		}
		out = out.Put(m)
		body = strings.TrimSpace(body[end+1:])
		if body == "" {
			break
		}
		rest, ok := strings.CutPrefix(body, ",")
		if !ok {
			return Set{}, fmt.Errorf("parse set %q: expected ',' at %q", s, body)
		}
		body = strings.TrimSpace(rest)
		if body == "" {
			return Set{}, fmt.Errorf("parse set %q: trailing comma", s)
		}
	}
	return out, nil
}
