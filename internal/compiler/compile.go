package compiler

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/qsnake/trilinos-sub010/internal/expr"
)

// Operator keys of an expression node. Exactly one must be present.
var nodeKeys = []string{"constant", "coord", "field", "unknown", "test", "ref", "sum", "difference", "product"}

// Compile builds a Program from a CUE value of the form
//
//	unknowns: u: 0
//	tests:    v: 1
//	expr: weak: {product: [{field: "k"}, {product: [{unknown: "u"}, {test: "v"}]}]}
//	context: jacobian: {root: "weak", max_order: 2}
//
// Nodes are inserted into dag, which must carry the evaluator factories
// the caller intends to run with. A nil dag gets a fresh arena without
// factories, which is enough for static analysis.
//
// Compile fails on the first structural error. Contexts are not checked
// here; see Validate.
func Compile(v cue.Value, dag *expr.DAG) (*Program, error) {
	if err := v.Validate(); err != nil {
		return nil, formatCUEError("cue", err)
	}
	if dag == nil {
		dag = expr.NewDAG()
	}

	p := &Program{
		DAG:      dag,
		Exprs:    make(map[string]expr.Expr),
		Contexts: make(map[string]ContextSpec),
		diffVars: make(map[string]expr.Expr),
	}

	var err error
	if p.Unknowns, err = parseDecls(v, "unknowns"); err != nil {
		return nil, err
	}
	if p.Tests, err = parseDecls(v, "tests"); err != nil {
		return nil, err
	}
	// Build declared variables eagerly so function id clashes surface even
	// when a declaration is unused.
	if err := p.declare(v); err != nil {
		return nil, err
	}

	sources, err := fields(v, "expr")
	if err != nil {
		return nil, err
	}
	names := slices.Sorted(maps.Keys(sources))
	graph := make(RefGraph, len(sources))
	for _, name := range names {
		refs, err := collectRefs(sources[name], "expr."+name)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if _, ok := sources[ref.name]; !ok {
				return nil, compileErrorf("expr."+name, ref.pos, "reference to undefined expression %q", ref.name)
			}
			graph[name] = append(graph[name], ref.name)
		}
		if graph[name] == nil {
			graph[name] = []string{}
		}
	}
	if cycles := AnalyzeRefs(graph); len(cycles) > 0 {
		c := cycles[0]
		return nil, compileErrorf("expr."+c.Path[0], sources[c.Path[0]].Pos(), "%s", c.Message)
	}

	b := &builder{p: p, sources: sources}
	for _, name := range names {
		if _, err := b.named(name); err != nil {
			return nil, err
		}
		p.Order = append(p.Order, name)
	}

	ctxs, err := fields(v, "context")
	if err != nil {
		return nil, err
	}
	for _, name := range slices.Sorted(maps.Keys(ctxs)) {
		spec, err := parseContext(name, ctxs[name])
		if err != nil {
			return nil, err
		}
		p.Contexts[name] = spec
	}
	return p, nil
}

// fields returns the regular fields of the struct at path, or nil if the
// path is absent.
func fields(v cue.Value, path string) (map[string]cue.Value, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return nil, nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return nil, compileErrorf(path, sv.Pos(), "must be a struct")
	}
	out := make(map[string]cue.Value)
	for iter.Next() {
		out[iter.Label()] = iter.Value()
	}
	return out, nil
}

func parseDecls(v cue.Value, path string) (map[string]int, error) {
	fs, err := fields(v, path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(fs))
	for name, fv := range fs {
		id, err := fv.Int64()
		if err != nil {
			return nil, compileErrorf(path+"."+name, fv.Pos(), "function id must be an integer")
		}
		if id < 0 {
			return nil, compileErrorf(path+"."+name, fv.Pos(), "function id must be non-negative, got %d", id)
		}
		out[name] = int(id)
	}
	return out, nil
}

func (p *Program) declare(v cue.Value) error {
	decl := func(kind, name string, id int) error {
		var (
			e   expr.Expr
			err error
		)
		if kind == "unknowns" {
			e, err = p.DAG.Unknown(name, id)
		} else {
			e, err = p.DAG.Test(name, id)
		}
		if err != nil {
			pos := v.LookupPath(cue.MakePath(cue.Str(kind), cue.Str(name))).Pos()
			return compileErrorf(kind+"."+name, pos, "%s", constructionMessage(err))
		}
		p.diffVars[strings.TrimSuffix(kind, "s")+":"+name] = e
		return nil
	}
	for _, name := range slices.Sorted(maps.Keys(p.Unknowns)) {
		if err := decl("unknowns", name, p.Unknowns[name]); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(p.Tests)) {
		if err := decl("tests", name, p.Tests[name]); err != nil {
			return err
		}
	}
	return nil
}

func constructionMessage(err error) string {
	var ce *expr.ConstructionError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

type ref struct {
	name string
	pos  token.Pos
}

// collectRefs returns the ref leaves below node in source order.
func collectRefs(node cue.Value, field string) ([]ref, error) {
	var out []ref
	var walk func(cue.Value, string) error
	walk = func(n cue.Value, field string) error {
		if rv := n.LookupPath(cue.ParsePath("ref")); rv.Exists() {
			name, err := rv.String()
			if err != nil {
				return compileErrorf(field+".ref", rv.Pos(), "must be a string")
			}
			out = append(out, ref{name: name, pos: rv.Pos()})
			return nil
		}
		for _, op := range []string{"sum", "difference", "product"} {
			lv := n.LookupPath(cue.ParsePath(op))
			if !lv.Exists() {
				continue
			}
			iter, err := lv.List()
			if err != nil {
				return compileErrorf(field+"."+op, lv.Pos(), "operands must be a list")
			}
			for i := 0; iter.Next(); i++ {
				if err := walk(iter.Value(), fmt.Sprintf("%s.%s[%d]", field, op, i)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return out, walk(node, field)
}

func parseContext(name string, v cue.Value) (ContextSpec, error) {
	field := "context." + name
	spec := ContextSpec{Name: name, Pos: v.Pos()}

	rv := v.LookupPath(cue.ParsePath("root"))
	if !rv.Exists() {
		return spec, compileErrorf(field, v.Pos(), "root is required")
	}
	root, err := rv.String()
	if err != nil {
		return spec, compileErrorf(field+".root", rv.Pos(), "must be an expression name")
	}
	spec.Root = root

	ov := v.LookupPath(cue.ParsePath("max_order"))
	if !ov.Exists() {
		return spec, compileErrorf(field, v.Pos(), "max_order is required")
	}
	order, err := ov.Int64()
	if err != nil {
		return spec, compileErrorf(field+".max_order", ov.Pos(), "must be an integer")
	}
	spec.MaxOrder = int(order)

	if vv := v.LookupPath(cue.ParsePath("setup_verb")); vv.Exists() {
		verb, err := vv.Int64()
		if err != nil {
			return spec, compileErrorf(field+".setup_verb", vv.Pos(), "must be an integer")
		}
		spec.SetupVerb = int(verb)
	}
	return spec, nil
}
