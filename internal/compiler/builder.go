package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/qsnake/trilinos-sub010/internal/expr"
)

// builder turns CUE node values into DAG nodes. Named expressions are
// built once; ref cycles have already been rejected.
type builder struct {
	p       *Program
	sources map[string]cue.Value
}

func (b *builder) named(name string) (expr.Expr, error) {
	if e, ok := b.p.Exprs[name]; ok {
		return e, nil
	}
	e, err := b.node(b.sources[name], "expr."+name)
	if err != nil {
		return expr.Expr{}, err
	}
	b.p.Exprs[name] = e
	return e, nil
}

func (b *builder) node(v cue.Value, field string) (expr.Expr, error) {
	op := ""
	for _, key := range nodeKeys {
		if v.LookupPath(cue.ParsePath(key)).Exists() {
			if op != "" {
				return expr.Expr{}, compileErrorf(field, v.Pos(), "node has both %q and %q", op, key)
			}
			op = key
		}
	}
	if op == "" {
		return expr.Expr{}, compileErrorf(field, v.Pos(), "node must have one of %v", nodeKeys)
	}
	arg := v.LookupPath(cue.ParsePath(op))
	field += "." + op

	if sv := v.LookupPath(cue.ParsePath("sign")); sv.Exists() && op != "product" {
		return expr.Expr{}, compileErrorf(field, sv.Pos(), "sign is only valid on product nodes")
	}

	switch op {
	case "constant":
		x, err := arg.Float64()
		if err != nil {
			return expr.Expr{}, compileErrorf(field, arg.Pos(), "must be a number")
		}
		return b.check(field, arg)(b.p.DAG.Constant(x))
	case "coord":
		dir, err := arg.Int64()
		if err != nil {
			return expr.Expr{}, compileErrorf(field, arg.Pos(), "direction must be an integer")
		}
		return b.check(field, arg)(b.p.DAG.Coordinate(int(dir)))
	case "field":
		name, err := arg.String()
		if err != nil {
			return expr.Expr{}, compileErrorf(field, arg.Pos(), "field name must be a string")
		}
		return b.check(field, arg)(b.p.DAG.Field(name))
	case "unknown", "test":
		name, err := arg.String()
		if err != nil {
			return expr.Expr{}, compileErrorf(field, arg.Pos(), "%s name must be a string", op)
		}
		e, ok := b.p.diffVars[op+":"+name]
		if !ok {
			return expr.Expr{}, compileErrorf(field, arg.Pos(), "%s %q is not declared under %ss", op, name, op)
		}
		return e, nil
	case "ref":
		name, err := arg.String()
		if err != nil {
			return expr.Expr{}, compileErrorf(field, arg.Pos(), "must be a string")
		}
		return b.named(name)
	}

	// Binary operators.
	operands, err := b.operands(arg, field)
	if err != nil {
		return expr.Expr{}, err
	}
	switch op {
	case "sum":
		return b.check(field, arg)(b.p.DAG.Sum(operands[0], operands[1]))
	case "difference":
		return b.check(field, arg)(b.p.DAG.Difference(operands[0], operands[1]))
	}
	sign := int64(1)
	if sv := v.LookupPath(cue.ParsePath("sign")); sv.Exists() {
		if sign, err = sv.Int64(); err != nil {
			return expr.Expr{}, compileErrorf(field, sv.Pos(), "sign must be 1 or -1")
		}
	}
	return b.check(field, arg)(b.p.DAG.Binary(expr.KindProduct, operands[0], operands[1], int(sign)))
}

func (b *builder) operands(list cue.Value, field string) ([2]expr.Expr, error) {
	var out [2]expr.Expr
	iter, err := list.List()
	if err != nil {
		return out, compileErrorf(field, list.Pos(), "operands must be a list")
	}
	i := 0
	for iter.Next() {
		if i == 2 {
			return out, compileErrorf(field, list.Pos(), "expected 2 operands, got more")
		}
		e, err := b.node(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return out, err
		}
		out[i] = e
		i++
	}
	if i != 2 {
		return out, compileErrorf(field, list.Pos(), "expected 2 operands, got %d", i)
	}
	return out, nil
}

// check converts a DAG construction error into a CompileError positioned
// at the node's operator value.
func (b *builder) check(field string, at cue.Value) func(expr.Expr, error) (expr.Expr, error) {
	return func(e expr.Expr, err error) (expr.Expr, error) {
		if err != nil {
			return expr.Expr{}, compileErrorf(field, at.Pos(), "%s", constructionMessage(err))
		}
		return e, nil
	}
}
