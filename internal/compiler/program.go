package compiler

import (
	"fmt"
	"maps"
	"slices"

	"cuelang.org/go/cue/token"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// ContextSpec is a declared evaluation context. Values are carried as
// written; Validate reports the ones Setup would refuse.
type ContextSpec struct {
	Name      string
	Root      string
	MaxOrder  int
	SetupVerb int
	Pos       token.Pos
}

// Program is a compiled expression spec: the named expressions, built into
// one DAG, and the contexts they are evaluated under.
type Program struct {
	DAG      *expr.DAG
	Unknowns map[string]int
	Tests    map[string]int
	Exprs    map[string]expr.Expr
	Order    []string // expression names, sorted
	Contexts map[string]ContextSpec

	diffVars map[string]expr.Expr // "unknown:u" / "test:v"
}

// Expr returns the named expression.
func (p *Program) Expr(name string) (expr.Expr, bool) {
	e, ok := p.Exprs[name]
	return e, ok
}

// Unknown returns the declared unknown function leaf.
func (p *Program) Unknown(name string) (expr.Expr, bool) {
	e, ok := p.diffVars["unknown:"+name]
	return e, ok
}

// Test returns the declared test function leaf.
func (p *Program) Test(name string) (expr.Expr, bool) {
	e, ok := p.diffVars["test:"+name]
	return e, ok
}

// ContextNames returns the declared context names, sorted.
func (p *Program) ContextNames() []string {
	return slices.Sorted(maps.Keys(p.Contexts))
}

// EvalContext resolves a declared context to its EvalContext and root.
func (p *Program) EvalContext(name string) (expr.EvalContext, expr.Expr, error) {
	spec, ok := p.Contexts[name]
	if !ok {
		return expr.EvalContext{}, expr.Expr{}, fmt.Errorf("context %q not defined (have %v)", name, p.ContextNames())
	}
	root, ok := p.Exprs[spec.Root]
	if !ok {
		return expr.EvalContext{}, expr.Expr{}, fmt.Errorf("context %q: root expression %q not defined", name, spec.Root)
	}
	ctx, err := expr.NewEvalContext(spec.Name, spec.MaxOrder, spec.SetupVerb)
	if err != nil {
		return expr.EvalContext{}, expr.Expr{}, err
	}
	return ctx, root, nil
}

// Setup runs the setup pass for the named context.
func (p *Program) Setup(name string) (*expr.Setup, error) {
	ctx, root, err := p.EvalContext(name)
	if err != nil {
		return nil, err
	}
	return p.DAG.Setup(root, ctx), nil
}

// IR renders the program's expressions in canonical form: every reachable
// node keyed by hash, each named expression mapped to its root hash, and the
// declared contexts.
func (p *Program) IR() ir.IRObject {
	nodes := ir.IRObject{}
	exprs := ir.IRObject{}
	for _, name := range p.Order {
		e := p.Exprs[name]
		exprs[name] = ir.IRString(e.Hash())
		for _, n := range p.DAG.PostOrder(e) {
			nodes[n.Hash()] = n.Describe()
		}
	}
	contexts := ir.IRObject{}
	for name, c := range p.Contexts {
		contexts[name] = ir.IRObject{
			"root":       ir.IRString(c.Root),
			"max_order":  ir.IRInt(c.MaxOrder),
			"setup_verb": ir.IRInt(c.SetupVerb),
		}
	}
	return ir.IRObject{
		"ir_version": ir.IRString(ir.IRVersion),
		"exprs":      exprs,
		"nodes":      nodes,
		"contexts":   contexts,
	}
}

// Records returns one store record per named expression, in Order. The
// canonical text holds the expression's root hash and node table.
func (p *Program) Records() ([]ir.ExpressionRecord, error) {
	out := make([]ir.ExpressionRecord, 0, len(p.Order))
	for _, name := range p.Order {
		e := p.Exprs[name]
		nodes := ir.IRObject{}
		for _, n := range p.DAG.PostOrder(e) {
			nodes[n.Hash()] = n.Describe()
		}
		data, err := ir.MarshalCanonical(ir.IRObject{"root": ir.IRString(e.Hash()), "nodes": nodes})
		if err != nil {
			return nil, fmt.Errorf("expression %s: %w", name, err)
		}
		out = append(out, ir.ExpressionRecord{
			Hash:      e.Hash(),
			Name:      name,
			Canonical: string(data),
			IRVersion: ir.IRVersion,
		})
	}
	return out, nil
}
