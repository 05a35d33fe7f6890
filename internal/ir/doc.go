// Package ir provides the canonical intermediate representation used to
// identify expression nodes, evaluation contexts and evaluation runs.
//
// This package contains value types and hashing only. All other internal
// packages may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in canonical form: numeric constants are carried as their
//     shortest round-trippable decimal string (see FormatFloat)
//   - Object keys are ordered by UTF-16 code units (RFC 8785)
//   - Strings are NFC normalised before hashing
//   - All JSON tags use snake_case
package ir
