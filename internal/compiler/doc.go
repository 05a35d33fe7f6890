// Package compiler builds expression programs from CUE specs.
//
// A spec declares differentiation variables, named expressions, and the
// contexts they are evaluated under:
//
//	unknowns: u: 0
//	tests:    v: 1
//	expr: {
//		flux: {product: [{field: "k"}, {unknown: "u"}]}
//		weak: {product: [{ref: "flux"}, {test: "v"}]}
//	}
//	context: jacobian: {root: "weak", max_order: 2}
//
// Compile parses the value into a Program whose expressions share one
// hash-consed DAG. References between named expressions are resolved in
// dependency order and cycles are rejected. Validate reports
// program-level problems without stopping at the first one.
package compiler
