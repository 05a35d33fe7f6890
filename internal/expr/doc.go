// Package expr implements the symbolic expression DAG and its compile-time
// analysis for the quadrature evaluator.
//
// An expression is built once into an append-only arena (DAG) and addressed
// through small Expr handles. Structurally equal subexpressions share one
// arena slot (hash-consing via ir.NodeHash), so the same node may have many
// parents. Nodes are immutable; the only mutable state attached to a node is
// its per-EvalContext cache.
//
// ANALYSIS:
//
// For every (node, EvalContext) pair the package derives, without touching
// numeric data:
//   - W: the structurally nonzero derivatives of the node up to MaxOrder
//   - C: the subset of W whose values are uniform over a cell
//   - V: W minus C, the values that vary per quadrature point
//
// Binary nodes additionally expose InternalFindQW / InternalFindQV, the
// argument-index selectors describing which operator derivatives are nonzero
// (respectively variable). Product terms are admitted only when the matching
// selector is present.
//
// SETUP AND EVALUATORS:
//
// DAG.Setup runs the top-down requirement pass for a root and context and
// memoizes each reached node's SparsitySuperset. Evaluators can only be
// requested through the resulting *Setup, so asking for an evaluator before
// its superset exists is not expressible. Each (node, context) pair gets at
// most one evaluator, built by the factory registered for the node's Kind.
//
// Sequencing and invariant violations panic with *SetupError or
// *InternalError; malformed construction returns *ConstructionError.
package expr
