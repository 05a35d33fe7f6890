package eval

import (
	"fmt"
	"slices"
)

// BatchError reports quadrature data that cannot satisfy a setup.
type BatchError struct {
	// Code identifies the error category.
	Code BatchErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the rendered leaf that needs the data, if any.
	Node string
}

// BatchErrorCode categorizes batch errors.
type BatchErrorCode string

const (
	// ErrCodeBadPoints indicates a non-positive point count.
	ErrCodeBadPoints BatchErrorCode = "BAD_POINTS"

	// ErrCodeMissingCoordinate indicates a coordinate leaf with no data.
	ErrCodeMissingCoordinate BatchErrorCode = "MISSING_COORDINATE"

	// ErrCodeMissingField indicates a field or unknown leaf with no data.
	ErrCodeMissingField BatchErrorCode = "MISSING_FIELD"

	// ErrCodeLengthMismatch indicates data whose length is not the point count.
	ErrCodeLengthMismatch BatchErrorCode = "LENGTH_MISMATCH"
)

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsBatchError returns true if err is or wraps a BatchError with the given
// code. An empty code matches any BatchError. Joined errors match if any
// member does.
func IsBatchError(err error, code BatchErrorCode) bool {
	codes := BatchErrorCodes(err)
	if code == "" {
		return len(codes) > 0
	}
	return slices.Contains(codes, code)
}

// BatchErrorCodes returns the codes of every BatchError in err's tree,
// in depth-first order.
func BatchErrorCodes(err error) []BatchErrorCode {
	var codes []BatchErrorCode
	var walk func(error)
	walk = func(err error) {
		switch u := err.(type) {
		case *BatchError:
			codes = append(codes, u.Code)
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return codes
}
