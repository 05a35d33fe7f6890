package expr

import (
	"fmt"
	"maps"

	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// Expr is a handle to a node in a DAG. The zero value is not a valid
// expression. Handles are comparable; two handles are equal iff they name
// the same arena slot, which by hash-consing means structurally equal.
type Expr struct {
	dag *DAG
	id  NodeID
}

// IsZero reports whether e is the zero handle.
func (e Expr) IsZero() bool {
	return e.dag == nil
}

// DAG returns the arena that owns e.
func (e Expr) DAG() *DAG {
	return e.dag
}

// ID returns e's arena index.
func (e Expr) ID() NodeID {
	return e.id
}

func (e Expr) n() *node {
	if e.dag == nil {
		panic(internalf("use of zero expression handle"))
	}
	return e.dag.node(e.id)
}

// Kind returns the node variant.
func (e Expr) Kind() Kind { return e.n().kind }

// Hash returns the content hash of e's canonical description.
func (e Expr) Hash() string { return e.n().hash }

// Value returns the payload of a constant node.
func (e Expr) Value() float64 { return e.n().value }

// Dir returns the direction of a coordinate node.
func (e Expr) Dir() int { return e.n().dir }

// Name returns the name of a field, unknown or test node.
func (e Expr) Name() string { return e.n().name }

// FuncID returns the differentiation variable index of an unknown or test
// node.
func (e Expr) FuncID() int { return e.n().funcID }

// FanIn returns how many parent slots in the DAG reference e.
func (e Expr) FanIn() int {
	e.dag.mu.RLock()
	defer e.dag.mu.RUnlock()
	return e.dag.nodes[e.id].fanIn
}

// Describe returns a copy of e's canonical description. Children appear as
// their content hashes.
func (e Expr) Describe() ir.IRObject {
	return maps.Clone(e.n().desc)
}

// Left returns the left child. Panics if e is not binary.
func (e Expr) Left() Expr {
	n := e.binary()
	return Expr{dag: e.dag, id: n.left}
}

// Right returns the right child. Panics if e is not binary.
func (e Expr) Right() Expr {
	n := e.binary()
	return Expr{dag: e.dag, id: n.right}
}

// Sign returns +1 or -1 for binary nodes and +1 for leaves.
func (e Expr) Sign() int {
	n := e.n()
	if !n.kind.IsBinary() {
		return 1
	}
	return n.sign
}

// Children returns the ordered child handles: none for leaves, two for
// binary nodes.
func (e Expr) Children() []Expr {
	n := e.n()
	if !n.kind.IsBinary() {
		return nil
	}
	return []Expr{{dag: e.dag, id: n.left}, {dag: e.dag, id: n.right}}
}

func (e Expr) binary() *node {
	n := e.n()
	if !n.kind.IsBinary() {
		panic(internalf("%s node %s has no children", n.kind, n.hash[:12]))
	}
	return n
}

// GoString renders e for %#v.
func (e Expr) GoString() string {
	if e.IsZero() {
		return "expr.Expr{}"
	}
	return fmt.Sprintf("expr.Expr{%d %s %q}", e.id, e.Kind(), e.String())
}

// BinaryExpr is the two-child view of a sum or product node.
type BinaryExpr struct {
	Expr
}

// AsBinary returns the binary view of e if e is a sum or product.
func (e Expr) AsBinary() (BinaryExpr, bool) {
	if e.IsZero() || !e.Kind().IsBinary() {
		return BinaryExpr{}, false
	}
	return BinaryExpr{Expr: e}, true
}

// LessThan orders binary nodes: lower sign first, then the child sequences
// element-wise. Nodes of different kinds fall back to kind order.
func (b BinaryExpr) LessThan(other BinaryExpr) bool {
	return Compare(b.Expr, other.Expr) < 0
}
