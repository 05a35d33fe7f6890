package eval

import (
	"github.com/qsnake/trilinos-sub010/internal/expr"
)

// Factories returns the evaluator factory for every node kind.
func Factories() expr.FactoryTable {
	return expr.FactoryTable{
		expr.KindConstant:   NewConstantEvaluator,
		expr.KindCoordinate: NewCoordinateEvaluator,
		expr.KindField:      NewFieldEvaluator,
		expr.KindUnknown:    NewUnknownEvaluator,
		expr.KindTest:       NewTestEvaluator,
		expr.KindSum:        NewSumEvaluator,
		expr.KindProduct:    NewProductEvaluator,
	}
}

// NewDAG returns an expression DAG wired to the numeric evaluators.
// Later options override earlier ones.
func NewDAG(opts ...expr.Option) *expr.DAG {
	return expr.NewDAG(append([]expr.Option{expr.WithFactories(Factories())}, opts...)...)
}
