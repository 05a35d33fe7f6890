package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/ir"
)

const weakFormSpec = `
unknowns: u: 0
tests:    v: 1

expr: {
	flux:  {product: [{field: "k"}, {unknown: "u"}]}
	weak:  {product: [{ref: "flux"}, {test: "v"}]}
	shift: {difference: [{coord: 0}, {constant: 0.5}]}
	again: {product: [{field: "k"}, {unknown: "u"}]}
}

context: {
	residual: {root: "weak", max_order: 1}
	jacobian: {root: "weak", max_order: 2, setup_verb: 1}
}
`

func compileString(t *testing.T, src string) (*Program, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("spec.cue"))
	return Compile(v, nil)
}

func mustCompile(t *testing.T, src string) *Program {
	t.Helper()
	p, err := compileString(t, src)
	require.NoError(t, err)
	return p
}

func TestCompile_WeakForm(t *testing.T) {
	p := mustCompile(t, weakFormSpec)

	assert.Equal(t, []string{"again", "flux", "shift", "weak"}, p.Order)
	assert.Equal(t, map[string]int{"u": 0}, p.Unknowns)
	assert.Equal(t, map[string]int{"v": 1}, p.Tests)

	weak, ok := p.Expr("weak")
	require.True(t, ok)
	flux, _ := p.Expr("flux")
	assert.Equal(t, expr.KindProduct, weak.Kind())
	assert.Equal(t, flux, weak.Left(), "ref resolves to the named node")
	assert.Equal(t, expr.KindTest, weak.Right().Kind())
	assert.Equal(t, 1, weak.Right().FuncID())

	again, _ := p.Expr("again")
	assert.Equal(t, flux, again, "structurally equal expressions share a node")

	shift, _ := p.Expr("shift")
	assert.Equal(t, -1, shift.Sign())
	assert.Equal(t, 0.5, shift.Right().Value())
}

func TestCompile_Contexts(t *testing.T) {
	p := mustCompile(t, weakFormSpec)

	assert.Equal(t, []string{"jacobian", "residual"}, p.ContextNames())
	jac := p.Contexts["jacobian"]
	assert.Equal(t, "weak", jac.Root)
	assert.Equal(t, 2, jac.MaxOrder)
	assert.Equal(t, 1, jac.SetupVerb)
	assert.Equal(t, 0, p.Contexts["residual"].SetupVerb)

	ctx, root, err := p.EvalContext("jacobian")
	require.NoError(t, err)
	assert.Equal(t, expr.EvalContext{Label: "jacobian", MaxOrder: 2, SetupVerb: 1}, ctx)
	assert.Equal(t, p.Exprs["weak"], root)

	s, err := p.Setup("residual")
	require.NoError(t, err)
	assert.Equal(t, "{{1}}", s.SparsitySuperset(root).String())

	s, err = p.Setup("jacobian")
	require.NoError(t, err)
	assert.Equal(t, "{{1},{0,1}}", s.SparsitySuperset(root).String())
}

func TestProgram_EvalContextErrors(t *testing.T) {
	p := mustCompile(t, `
expr: a: {constant: 1}
context: {
	dangling: {root: "missing", max_order: 0}
	negative: {root: "a", max_order: -1}
}
`)

	_, _, err := p.EvalContext("nope")
	assert.ErrorContains(t, err, `context "nope" not defined`)

	_, err = p.Setup("dangling")
	assert.ErrorContains(t, err, `root expression "missing" not defined`)

	_, err = p.Setup("negative")
	assert.ErrorContains(t, err, "max order must be non-negative")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		field   string
		message string
	}{
		{"undefined ref", `expr: a: {ref: "b"}`, "expr.a", `reference to undefined expression "b"`},
		{"ref cycle", `expr: {
			a: {sum: [{ref: "b"}, {constant: 1}]}
			b: {ref: "a"}
		}`, "expr.a", "reference cycle: a -> b -> a"},
		{"self reference", `expr: a: {product: [{ref: "a"}, {coord: 0}]}`, "expr.a", `expression "a" references itself`},
		{"empty node", `expr: a: {}`, "expr.a", "node must have one of"},
		{"two operators", `expr: a: {constant: 1, coord: 0}`, "expr.a", `node has both "constant" and "coord"`},
		{"one operand", `expr: a: {sum: [{constant: 1}]}`, "expr.a.sum", "expected 2 operands, got 1"},
		{"three operands", `expr: a: {sum: [{constant: 1}, {constant: 2}, {constant: 3}]}`, "expr.a.sum", "got more"},
		{"operands not a list", `expr: a: {product: {constant: 1}}`, "expr.a.product", "operands must be a list"},
		{"sign on sum", `expr: a: {sum: [{constant: 1}, {constant: 2}], sign: -1}`, "expr.a.sum", "sign is only valid on product nodes"},
		{"bad sign", `expr: a: {product: [{constant: 1}, {constant: 2}], sign: 2}`, "expr.a.product", "sign must be +1 or -1, got 2"},
		{"negative coordinate", `expr: a: {coord: -1}`, "expr.a.coord", "direction must be non-negative"},
		{"non-numeric constant", `expr: a: {constant: "one"}`, "expr.a.constant", "must be a number"},
		{"empty field name", `expr: a: {field: ""}`, "expr.a.field", "name is required"},
		{"undeclared unknown", `expr: a: {unknown: "u"}`, "expr.a.unknown", `unknown "u" is not declared under unknowns`},
		{"undeclared test", "unknowns: v: 0\nexpr: a: {test: \"v\"}", "expr.a.test", `test "v" is not declared under tests`},
		{"nested error path", `expr: a: {product: [{constant: 1}, {sum: [{coord: 0}, {}]}]}`, "expr.a.product[1].sum[1]", "node must have one of"},
		{"function id clash", "unknowns: u: 0\ntests: v: 0", "tests.v", `function id 0 already used by unknown "u"`},
		{"negative function id", "unknowns: u: -1", "unknowns.u", "function id must be non-negative"},
		{"non-integer function id", `unknowns: u: "zero"`, "unknowns.u", "function id must be an integer"},
		{"unknowns not a struct", `unknowns: 3`, "unknowns", "must be a struct"},
		{"context without root", `context: c: {max_order: 1}`, "context.c", "root is required"},
		{"context without order", `context: c: {root: "a"}`, "context.c", "max_order is required"},
		{"non-integer order", `context: c: {root: "a", max_order: 1.5}`, "context.c.max_order", "must be an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.message)
		})
	}
}

func TestCompile_ErrorPosition(t *testing.T) {
	_, err := compileString(t, "expr: {\n\ta: {ref: \"b\"}\n}\n")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, 2, ce.Pos.Line())
	assert.Contains(t, err.Error(), "spec.cue:2:")
}

func TestCompile_CUESyntaxError(t *testing.T) {
	_, err := compileString(t, "expr: {")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cue", ce.Field)
}

func TestCompile_UsesGivenDAG(t *testing.T) {
	d := expr.NewDAG()
	pre := d.MustField("k")

	v := cuecontext.New().CompileString(`expr: a: {field: "k"}`)
	p, err := Compile(v, d)
	require.NoError(t, err)
	assert.Same(t, d, p.DAG)
	assert.Equal(t, pre, p.Exprs["a"])
}

func TestCompile_EmptySpec(t *testing.T) {
	p := mustCompile(t, ``)
	assert.Empty(t, p.Exprs)
	assert.Empty(t, p.Order)
	assert.Empty(t, p.Contexts)
}

func TestProgram_IR(t *testing.T) {
	p := mustCompile(t, weakFormSpec)
	obj := p.IR()

	assert.Equal(t, ir.IRString(ir.IRVersion), obj["ir_version"])
	exprs := obj["exprs"].(ir.IRObject)
	assert.Equal(t, ir.IRString(p.Exprs["weak"].Hash()), exprs["weak"])
	assert.Equal(t, exprs["flux"], exprs["again"])

	nodes := obj["nodes"].(ir.IRObject)
	// k, u, k*u, v, (k*u)*v, x0, 0.5, x0-0.5
	assert.Len(t, nodes, 8)
	weak := nodes[p.Exprs["weak"].Hash()].(ir.IRObject)
	assert.Equal(t, ir.IRString("product"), weak["kind"])

	ctxs := obj["contexts"].(ir.IRObject)
	assert.Equal(t, ir.IRInt(2), ctxs["jacobian"].(ir.IRObject)["max_order"])

	first, err := ir.MarshalCanonical(obj)
	require.NoError(t, err)
	again, err := ir.MarshalCanonical(mustCompile(t, weakFormSpec).IR())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(again))
}

func TestProgram_Records(t *testing.T) {
	p := mustCompile(t, weakFormSpec)

	recs, err := p.Records()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "again", recs[0].Name)
	assert.Equal(t, recs[0].Hash, recs[1].Hash)
	assert.Equal(t, recs[0].Canonical, recs[1].Canonical)

	weak := recs[3]
	assert.Equal(t, "weak", weak.Name)
	assert.Equal(t, p.Exprs["weak"].Hash(), weak.Hash)
	assert.Contains(t, weak.Canonical, `"root":"`+weak.Hash+`"`)
	assert.Equal(t, ir.IRVersion, weak.IRVersion)
}

func TestProgram_DeclaredVariables(t *testing.T) {
	p := mustCompile(t, weakFormSpec)

	u, ok := p.Unknown("u")
	require.True(t, ok)
	assert.Equal(t, expr.KindUnknown, u.Kind())
	assert.Equal(t, 0, u.FuncID())

	v, ok := p.Test("v")
	require.True(t, ok)
	assert.Equal(t, 1, v.FuncID())

	_, ok = p.Unknown("v")
	assert.False(t, ok)
	_, ok = p.Test("u")
	assert.False(t, ok)
}
