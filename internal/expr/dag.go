package expr

import (
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/qsnake/trilinos-sub010/internal/ir"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// NodeID is a stable index into a DAG's arena.
type NodeID int32

// node is one arena entry. Payload fields are immutable after insertion;
// everything below mu is per-context cache state.
type node struct {
	kind Kind
	hash string
	desc ir.IRObject

	value  float64 // KindConstant
	dir    int     // KindCoordinate
	name   string  // KindField, KindUnknown, KindTest
	funcID int     // KindUnknown, KindTest

	sign        int // binary kinds: +1 or -1
	left, right NodeID

	fanIn int // parent slots referencing this node; guarded by DAG.mu

	mu         sync.Mutex
	static     map[EvalContext]*staticSets
	supersets  map[EvalContext]multiset.Set
	evaluators map[EvalContext]Evaluator
}

// DAG is an append-only arena of expression nodes.
//
// Thread-safety: construction and analysis are safe for concurrent use.
// Evaluation through the evaluators themselves is single-threaded per
// evaluator.
type DAG struct {
	mu       sync.RWMutex
	nodes    []*node
	byHash   map[string]NodeID
	diffVars map[int]NodeID // funcID -> unknown/test leaf

	setupMu sync.Mutex
	setups  map[EvalContext]*Setup

	flight    singleflight.Group
	factories FactoryTable
	logger    *slog.Logger
}

// Option configures a DAG.
type Option func(*DAG)

// WithFactories installs the evaluator factories used by Setup.Evaluator.
func WithFactories(table FactoryTable) Option {
	return func(d *DAG) {
		d.factories = table
	}
}

// WithLogger sets the logger used for setup and evaluation diagnostics.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *DAG) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDAG creates an empty DAG.
func NewDAG(opts ...Option) *DAG {
	d := &DAG{
		byHash:   make(map[string]NodeID),
		diffVars: make(map[int]NodeID),
		setups:   make(map[EvalContext]*Setup),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Logger returns the DAG's diagnostic logger.
func (d *DAG) Logger() *slog.Logger {
	return d.logger
}

// Len returns the number of distinct nodes in the arena.
func (d *DAG) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

// Node returns the handle for id. Panics if id is out of range.
func (d *DAG) Node(id NodeID) Expr {
	d.node(id)
	return Expr{dag: d, id: id}
}

func (d *DAG) node(id NodeID) *node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id < 0 || int(id) >= len(d.nodes) {
		panic(internalf("node id %d out of range", id))
	}
	return d.nodes[id]
}

// Lookup returns the node with the given content hash.
func (d *DAG) Lookup(hash string) (Expr, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byHash[hash]
	if !ok {
		return Expr{}, false
	}
	return Expr{dag: d, id: id}, true
}

// insert adds n unless a structurally equal node exists, in which case the
// existing handle is returned. Fan-in of children is bumped only on insert.
func (d *DAG) insert(n *node) Expr {
	n.hash = ir.MustNodeHash(n.desc)

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insertLocked(n)
}

// insertLocked is insert with d.mu held for writing and n.hash set.
func (d *DAG) insertLocked(n *node) Expr {
	if id, ok := d.byHash[n.hash]; ok {
		return Expr{dag: d, id: id}
	}
	id := NodeID(len(d.nodes))
	d.nodes = append(d.nodes, n)
	d.byHash[n.hash] = id
	if n.kind.IsBinary() {
		d.nodes[n.left].fanIn++
		d.nodes[n.right].fanIn++
	}
	if n.kind.IsDiffVariable() {
		d.diffVars[n.funcID] = id
	}
	return Expr{dag: d, id: id}
}

// Constant adds a cell-uniform numeric constant.
func (d *DAG) Constant(v float64) (Expr, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Expr{}, constructionErrorf("Constant", "value must be finite, got %v", v)
	}
	if v == 0 {
		v = 0 // fold -0
	}
	return d.insert(&node{
		kind:  KindConstant,
		value: v,
		desc: ir.IRObject{
			"kind":  ir.IRString(KindConstant.String()),
			"value": ir.FloatString(v),
		},
	}), nil
}

// Coordinate adds the spatial coordinate leaf for direction dir.
func (d *DAG) Coordinate(dir int) (Expr, error) {
	if dir < 0 {
		return Expr{}, constructionErrorf("Coordinate", "direction must be non-negative, got %d", dir)
	}
	return d.insert(&node{
		kind: KindCoordinate,
		dir:  dir,
		desc: ir.IRObject{
			"kind": ir.IRString(KindCoordinate.String()),
			"dir":  ir.IRInt(dir),
		},
	}), nil
}

// Field adds a discrete field leaf sampled at quadrature points.
func (d *DAG) Field(name string) (Expr, error) {
	if name == "" {
		return Expr{}, constructionErrorf("Field", "name is required")
	}
	return d.insert(&node{
		kind: KindField,
		name: name,
		desc: ir.IRObject{
			"kind": ir.IRString(KindField.String()),
			"name": ir.IRString(name),
		},
	}), nil
}

// Unknown adds an unknown-function leaf. funcID is the differentiation
// variable index used in MultipleDerivs.
func (d *DAG) Unknown(name string, funcID int) (Expr, error) {
	return d.diffVariable("Unknown", KindUnknown, name, funcID)
}

// Test adds a test-function leaf. Test functions are differentiation
// variables whose evaluation point is zero.
func (d *DAG) Test(name string, funcID int) (Expr, error) {
	return d.diffVariable("Test", KindTest, name, funcID)
}

func (d *DAG) diffVariable(op string, kind Kind, name string, funcID int) (Expr, error) {
	if name == "" {
		return Expr{}, constructionErrorf(op, "name is required")
	}
	if funcID < 0 {
		return Expr{}, constructionErrorf(op, "function id must be non-negative, got %d", funcID)
	}
	n := &node{
		kind:   kind,
		name:   name,
		funcID: funcID,
		desc: ir.IRObject{
			"kind":    ir.IRString(kind.String()),
			"name":    ir.IRString(name),
			"func_id": ir.IRInt(funcID),
		},
	}

	n.hash = ir.MustNodeHash(n.desc)

	// One critical section: a funcID has exactly one owner.
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, taken := d.diffVars[funcID]; taken {
		if clash := d.nodes[existing]; clash.kind != kind || clash.name != name {
			return Expr{}, constructionErrorf(op, "function id %d already used by %s %q", funcID, clash.kind, clash.name)
		}
	}
	return d.insertLocked(n), nil
}

// Sum adds left + right.
func (d *DAG) Sum(left, right Expr) (Expr, error) {
	return d.Binary(KindSum, left, right, +1)
}

// Difference adds left - right.
func (d *DAG) Difference(left, right Expr) (Expr, error) {
	return d.Binary(KindSum, left, right, -1)
}

// Product adds left * right.
func (d *DAG) Product(left, right Expr) (Expr, error) {
	return d.Binary(KindProduct, left, right, +1)
}

// Binary adds a two-child node. sign must be +1 or -1: for sums it selects
// addition or subtraction, for products it is a scalar sign factor.
func (d *DAG) Binary(kind Kind, left, right Expr, sign int) (Expr, error) {
	if !kind.IsBinary() {
		return Expr{}, constructionErrorf("Binary", "kind %s is not a binary kind", kind)
	}
	if sign != 1 && sign != -1 {
		return Expr{}, constructionErrorf("Binary", "sign must be +1 or -1, got %d", sign)
	}
	for _, child := range []struct {
		side string
		e    Expr
	}{{"left", left}, {"right", right}} {
		if child.e.IsZero() {
			return Expr{}, constructionErrorf("Binary", "%s operand is a zero handle", child.side)
		}
		if child.e.dag != d {
			return Expr{}, constructionErrorf("Binary", "%s operand belongs to another DAG", child.side)
		}
	}
	return d.insert(&node{
		kind:  kind,
		sign:  sign,
		left:  left.id,
		right: right.id,
		desc: ir.IRObject{
			"kind":  ir.IRString(kind.String()),
			"sign":  ir.IRInt(sign),
			"left":  ir.IRString(left.Hash()),
			"right": ir.IRString(right.Hash()),
		},
	}), nil
}

// MustConstant is like Constant but panics on error.
func (d *DAG) MustConstant(v float64) Expr { return must(d.Constant(v)) }

// MustCoordinate is like Coordinate but panics on error.
func (d *DAG) MustCoordinate(dir int) Expr { return must(d.Coordinate(dir)) }

// MustField is like Field but panics on error.
func (d *DAG) MustField(name string) Expr { return must(d.Field(name)) }

// MustUnknown is like Unknown but panics on error.
func (d *DAG) MustUnknown(name string, funcID int) Expr { return must(d.Unknown(name, funcID)) }

// MustTest is like Test but panics on error.
func (d *DAG) MustTest(name string, funcID int) Expr { return must(d.Test(name, funcID)) }

// MustSum is like Sum but panics on error.
func (d *DAG) MustSum(left, right Expr) Expr { return must(d.Sum(left, right)) }

// MustDifference is like Difference but panics on error.
func (d *DAG) MustDifference(left, right Expr) Expr { return must(d.Difference(left, right)) }

// MustProduct is like Product but panics on error.
func (d *DAG) MustProduct(left, right Expr) Expr { return must(d.Product(left, right)) }

func must(e Expr, err error) Expr {
	if err != nil {
		panic(err)
	}
	return e
}

// PostOrder returns every node reachable from root, children before
// parents, each node once. Left subtrees are visited before right ones.
func (d *DAG) PostOrder(root Expr) []Expr {
	var out []Expr
	seen := make(map[NodeID]bool)
	var visit func(id NodeID)
	visit = func(id NodeID) {
		if seen[id] {
			return
		}
		seen[id] = true
		n := d.node(id)
		if n.kind.IsBinary() {
			visit(n.left)
			visit(n.right)
		}
		out = append(out, Expr{dag: d, id: id})
	}
	visit(root.id)
	return out
}
