package eval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/ir"
	"github.com/qsnake/trilinos-sub010/internal/multiset"
)

// Entry pairs one derivative of the root with its value.
type Entry struct {
	Deriv  multiset.MultiSet
	Result expr.Result
}

// Report is the outcome of one batch evaluation.
type Report struct {
	Context expr.EvalContext
	Root    expr.Expr
	Seq     int64
	Points  int
	Entries []Entry
}

// Lookup returns the result for derivative d.
func (r *Report) Lookup(d multiset.MultiSet) (expr.Result, bool) {
	for _, e := range r.Entries {
		if e.Deriv.Equal(d) {
			return e.Result, true
		}
	}
	return expr.Result{}, false
}

// IR renders the entries in canonical IR form. Values are carried as
// shortest round-trip decimal strings.
func (r *Report) IR() ir.IRArray {
	arr := make(ir.IRArray, len(r.Entries))
	for i, e := range r.Entries {
		obj := ir.IRObject{
			"deriv":    ir.IRString(e.Deriv.String()),
			"constant": ir.IRBool(e.Result.Constant),
		}
		if e.Result.Constant {
			obj["value"] = ir.FloatString(e.Result.Scalar)
		} else {
			obj["value"] = ir.FloatArray(e.Result.Vector)
		}
		arr[i] = obj
	}
	return arr
}

// ContextHash identifies the (context, root) pair the report belongs to.
func (r *Report) ContextHash() (string, error) {
	return ir.ContextHash(r.Context.Label, r.Context.MaxOrder, r.Root.Hash())
}

// Hash identifies the report's content.
func (r *Report) Hash() (string, error) {
	ch, err := r.ContextHash()
	if err != nil {
		return "", err
	}
	return ir.RunHash(ch, r.IR(), r.Seq)
}

// Runner evaluates batches against set-up expressions.
type Runner struct {
	clock  Sequencer
	logger *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock sets the sequence source. Default: a fresh Clock at 0.
func WithClock(c Sequencer) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the run logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{clock: NewClock(), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clock returns the runner's sequence source.
func (r *Runner) Clock() Sequencer { return r.clock }

// Run validates b against s and evaluates s's root. Missing batch data is
// returned as an error; setup and invariant violations panic.
func (r *Runner) Run(ctx context.Context, s *expr.Setup, b *Batch) (*Report, error) {
	label := s.Context().Label
	ctx, span := startRunSpan(ctx, label, s.Root().Hash(), b.Points())
	start := time.Now()
	success := false
	defer func() {
		recordRunMetrics(ctx, label, time.Since(start), b.Points(), success)
		span.End()
	}()

	if err := b.Validate(s); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid batch")
		return nil, fmt.Errorf("run %s: %w", s.Context(), err)
	}

	root := s.RootEvaluator()
	results := root.Eval(b)

	report := &Report{
		Context: s.Context(),
		Root:    s.Root(),
		Seq:     r.clock.Next(),
		Points:  b.Points(),
		Entries: make([]Entry, len(results)),
	}
	for i, d := range root.Superset().Items() {
		report.Entries[i] = Entry{Deriv: d, Result: results[i]}
	}

	success = true
	r.logger.Debug("batch evaluated",
		slog.Any("context", s.Context()),
		slog.String("root", s.Root().String()),
		slog.Int64("seq", report.Seq),
		slog.Int("points", b.Points()),
		slog.Int("outputs", len(report.Entries)),
	)
	return report, nil
}

// Record converts the report into its store form. The ID is left empty
// for the store to assign.
func (r *Report) Record() (ir.RunRecord, error) {
	ch, err := r.ContextHash()
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("record: %w", err)
	}
	results := r.IR()
	hash, err := ir.RunHash(ch, results, r.Seq)
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("record: %w", err)
	}
	rec := ir.RunRecord{
		Hash:          hash,
		Context:       r.Context.Label,
		MaxOrder:      r.Context.MaxOrder,
		ContextHash:   ch,
		RootHash:      r.Root.Hash(),
		Points:        r.Points,
		Seq:           r.Seq,
		EngineVersion: ir.EngineVersion,
		Results:       make([]ir.ResultRecord, len(results)),
	}
	for i, e := range r.Entries {
		rec.Results[i] = ir.ResultRecord{
			Index:    i,
			Deriv:    e.Deriv.String(),
			Constant: e.Result.Constant,
			Value:    results[i].(ir.IRObject)["value"],
		}
	}
	return rec, nil
}
