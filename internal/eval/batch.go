package eval

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// BatchData is the serialisable form of one quadrature batch.
type BatchData struct {
	// Points is the number of quadrature points.
	Points int `yaml:"points" json:"points"`

	// Coords holds one slice per spatial direction.
	Coords [][]float64 `yaml:"coords,omitempty" json:"coords,omitempty"`

	// Fields holds per-point values of discrete fields and of unknown
	// functions at their linearisation point.
	Fields map[string][]float64 `yaml:"fields,omitempty" json:"fields,omitempty"`

	// Verb is the evaluation diagnostic verbosity.
	Verb int `yaml:"verb,omitempty" json:"verb,omitempty"`
}

// Batch is the EvalManager for one set of quadrature points.
// A Batch is read-only once built.
type Batch struct {
	data   BatchData
	logger *slog.Logger
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithBatchLogger sets the logger that receives evaluation diagnostics.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBatch checks data for internal consistency and wraps it. Whether the
// batch carries every value a particular setup needs is checked separately
// by Validate.
func NewBatch(data BatchData, opts ...BatchOption) (*Batch, error) {
	if data.Points <= 0 {
		return nil, &BatchError{Code: ErrCodeBadPoints, Message: fmt.Sprintf("point count must be positive, got %d", data.Points)}
	}
	var errs []error
	for dir, vals := range data.Coords {
		if len(vals) != data.Points {
			errs = append(errs, &BatchError{
				Code:    ErrCodeLengthMismatch,
				Message: fmt.Sprintf("coordinate %d has %d values, want %d", dir, len(vals), data.Points),
			})
		}
	}
	for _, name := range sortedFieldNames(data.Fields) {
		if vals := data.Fields[name]; len(vals) != data.Points {
			errs = append(errs, &BatchError{
				Code:    ErrCodeLengthMismatch,
				Message: fmt.Sprintf("field %q has %d values, want %d", name, len(vals), data.Points),
			})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	b := &Batch{data: data, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// MustBatch is like NewBatch but panics on error.
func MustBatch(data BatchData, opts ...BatchOption) *Batch {
	b, err := NewBatch(data, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Data returns the batch contents.
func (b *Batch) Data() BatchData { return b.data }

// Verb implements expr.EvalManager.
func (b *Batch) Verb() int { return b.data.Verb }

// Points implements expr.EvalManager.
func (b *Batch) Points() int { return b.data.Points }

// Logger implements expr.EvalManager.
func (b *Batch) Logger() *slog.Logger { return b.logger }

// Coordinate implements expr.EvalManager. Panics if the direction is
// absent; Validate reports that case as an error before evaluation.
func (b *Batch) Coordinate(dir int) []float64 {
	if dir < 0 || dir >= len(b.data.Coords) {
		panic(&expr.InternalError{Message: fmt.Sprintf("batch has no coordinate %d", dir)})
	}
	return b.data.Coords[dir]
}

// Field implements expr.EvalManager. Panics if the field is absent;
// Validate reports that case as an error before evaluation.
func (b *Batch) Field(name string) []float64 {
	vals, ok := b.data.Fields[name]
	if !ok {
		panic(&expr.InternalError{Message: fmt.Sprintf("batch has no field %q", name)})
	}
	return vals
}

// Validate reports every leaf reached by s whose batch data is missing.
// Unknown functions only need data when their value (not just their
// derivative) is required.
func (b *Batch) Validate(s *expr.Setup) error {
	var errs []error
	for _, e := range s.Nodes() {
		switch e.Kind() {
		case expr.KindCoordinate:
			if s.SparsitySuperset(e).IsEmpty() {
				continue
			}
			if e.Dir() >= len(b.data.Coords) {
				errs = append(errs, &BatchError{
					Code:    ErrCodeMissingCoordinate,
					Message: fmt.Sprintf("coordinate %d not provided", e.Dir()),
					Node:    e.String(),
				})
			}
		case expr.KindField, expr.KindUnknown:
			if !s.SparsitySuperset(e).Contains(multiset.Empty()) {
				continue
			}
			if _, ok := b.data.Fields[e.Name()]; !ok {
				errs = append(errs, &BatchError{
					Code:    ErrCodeMissingField,
					Message: fmt.Sprintf("field %q not provided", e.Name()),
					Node:    e.String(),
				})
			}
		}
	}
	return errors.Join(errs...)
}

func sortedFieldNames(fields map[string][]float64) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
