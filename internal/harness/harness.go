package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/qsnake/trilinos-sub010/internal/compiler"
	"github.com/qsnake/trilinos-sub010/internal/eval"
	"github.com/qsnake/trilinos-sub010/internal/expr"
	"github.com/qsnake/trilinos-sub010/internal/store"
	"github.com/qsnake/trilinos-sub010/internal/testutil"
)

// harness holds the per-scenario execution state.
type harness struct {
	store  *store.Store
	runner *eval.Runner
	ids    *testutil.SequentialIDs
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Compile and validate the spec directory
//  2. Set up the scenario context and check the root superset
//  3. Evaluate each batch, persisting successful runs
//  4. Check each batch's expectations
//  5. Read the runs back from the store to build the trace
//
// Errors returned are infrastructure failures (bad spec, store failure).
// Expectation mismatches are collected in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.DiscardHandler)

	prog, err := compiler.CompileDir(scenario.Specs, eval.NewDAG())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", scenario.Specs, err)
	}
	if verrs := compiler.Validate(prog); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return nil, fmt.Errorf("validate %s: %w", scenario.Specs, errors.Join(errs...))
	}
	setup, err := prog.Setup(scenario.Context)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	records, err := prog.Records()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := st.WriteExpression(ctx, rec); err != nil {
			return nil, fmt.Errorf("write expression %s: %w", rec.Name, err)
		}
	}

	h := &harness{
		store:  st,
		runner: eval.NewRunner(eval.WithClock(testutil.NewDeterministicClock()), eval.WithLogger(logger)),
		ids:    testutil.NewSequentialIDs(scenario.Name),
		logger: logger,
	}

	result := NewResult()
	result.Superset = setup.SparsitySuperset(setup.Root()).String()
	if err := checkSuperset(scenario.Superset, result.Superset); err != nil {
		result.AddError(err.Error())
	}

	batchOf := map[string]int{}
	var failed []TraceEvent
	for i, step := range scenario.Batches {
		report, err := h.evaluate(ctx, setup, step)
		if err != nil {
			codes := eval.BatchErrorCodes(err)
			if len(codes) == 0 {
				return nil, fmt.Errorf("batch %d: %w", i, err)
			}
			failed = append(failed, TraceEvent{Batch: i, Error: joinCodes(codes)})
			if err := checkError(step.ExpectError, err); err != nil {
				result.AddError(fmt.Sprintf("batch %d: %v", i, err))
			}
			continue
		}
		if step.ExpectError != "" {
			result.AddError(fmt.Sprintf("batch %d: expected error %s, evaluation succeeded", i, step.ExpectError))
		}
		for _, err := range checkExpectations(report, step.Expect) {
			result.AddError(fmt.Sprintf("batch %d: %v", i, err))
		}

		rec, err := report.Record()
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		rec.ID = h.ids.Generate()
		if _, err := st.WriteRun(ctx, rec); err != nil {
			return nil, fmt.Errorf("batch %d: write run: %w", i, err)
		}
		batchOf[rec.ID] = i
	}

	trace, err := h.readTrace(ctx, scenario.Context, batchOf)
	if err != nil {
		return nil, err
	}
	trace = append(trace, failed...)
	slices.SortFunc(trace, func(a, b TraceEvent) int { return a.Batch - b.Batch })
	result.Trace = trace
	return result, nil
}

func (h *harness) evaluate(ctx context.Context, setup *expr.Setup, step BatchStep) (*eval.Report, error) {
	batch, err := eval.NewBatch(step.BatchData, eval.WithBatchLogger(h.logger))
	if err != nil {
		return nil, err
	}
	return h.runner.Run(ctx, setup, batch)
}

// readTrace loads every run of the scenario context from the store.
func (h *harness) readTrace(ctx context.Context, contextLabel string, batchOf map[string]int) ([]TraceEvent, error) {
	headers, err := h.store.ListRuns(ctx, store.RunFilter{Context: contextLabel})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	trace := make([]TraceEvent, 0, len(headers))
	for _, hdr := range headers {
		run, err := h.store.ReadRun(ctx, hdr.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read run %s: %w", hdr.ID, err)
		}
		trace = append(trace, TraceEvent{
			Batch:   batchOf[run.ID],
			Seq:     run.Seq,
			RunID:   run.ID,
			Points:  run.Points,
			Results: run.Results,
		})
	}
	return trace, nil
}

func joinCodes(codes []eval.BatchErrorCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
