// Package eval provides the numeric evaluators for expression DAGs and the
// quadrature batch they read from.
//
// Evaluators are built once per (node, context) through expr.Setup using
// the table returned by Factories, then invoked once per batch. Binary
// evaluators resolve their children and derive a combination plan at
// construction time, so Eval does no sparsity analysis: it evaluates the
// left child, then the right child, then walks the plan.
//
// A Result is either a cell-uniform scalar or one value per quadrature
// point. Combinations stay scalar as long as every input is scalar and
// broadcast otherwise.
//
// Run drives one batch through a setup's root evaluator, stamps it with a
// logical sequence number, and records OpenTelemetry spans and metrics.
// Without an installed provider the otel calls are no-ops.
package eval
