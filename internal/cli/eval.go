package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qsnake/trilinos-sub010/internal/eval"
	"github.com/qsnake/trilinos-sub010/internal/ir"
	"github.com/qsnake/trilinos-sub010/internal/store"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Context  string
	Data     string // batch YAML file
	Database string // optional SQLite database to record runs in
}

// BatchResult is the evaluation of one batch.
type BatchResult struct {
	Index   int               `json:"index"`
	Seq     int64             `json:"seq"`
	RunID   string            `json:"run_id,omitempty"`
	Hash    string            `json:"hash"`
	Points  int               `json:"points"`
	Results []ir.ResultRecord `json:"results"`
}

// EvalResult is the eval command's payload.
type EvalResult struct {
	Context string        `json:"context"`
	Root    string        `json:"root"`
	Batches []BatchResult `json:"batches"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <specs-dir>",
		Short: "Evaluate a context on quadrature batches",
		Long: `Evaluate every nonzero derivative of a context's root on the batches in
a YAML data file. The file holds one batch per YAML document:

  points: 2
  coords: [[0, 1]]
  fields: {k: [2, 3], u: [1, 4]}
  ---
  points: 1
  fields: {k: [1], u: [0]}

With --db, the expressions and every run are recorded in a SQLite
database; sequence numbers continue from the last recorded run.

Examples:
  sundance eval ./specs --context jacobian --data batch.yaml
  sundance eval ./specs --context jacobian --data batch.yaml --db runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "context to evaluate (required)")
	_ = cmd.MarkFlagRequired("context")
	cmd.Flags().StringVar(&opts.Data, "data", "", "batch data YAML file (required)")
	_ = cmd.MarkFlagRequired("data")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for recording runs")

	return cmd
}

func runEval(opts *EvalOptions, specsDir string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	prog, err := loadProgram(formatter, specsDir, logger)
	if err != nil {
		return err
	}
	batches, err := LoadBatches(opts.Data)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadData, err.Error(), nil)
	}
	setup, err := prog.Setup(opts.Context)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidContext, err.Error(), nil)
	}

	clock := eval.NewClock()
	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		records, err := prog.Records()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		for _, rec := range records {
			if err := st.WriteExpression(ctx, rec); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
			}
		}
		last, err := st.GetLastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read last sequence", err)
		}
		clock = eval.NewClockAt(last)
		formatter.VerboseLog("Resuming at seq %d in %s", last, opts.Database)
	}

	runner := eval.NewRunner(eval.WithClock(clock), eval.WithLogger(logger))
	result := EvalResult{
		Context: opts.Context,
		Root:    prog.Contexts[opts.Context].Root,
		Batches: make([]BatchResult, 0, len(batches)),
	}
	for i, data := range batches {
		batch, err := eval.NewBatch(data, eval.WithBatchLogger(logger))
		if err != nil {
			return failBatch(formatter, i, err)
		}
		report, err := runner.Run(ctx, setup, batch)
		if err != nil {
			return failBatch(formatter, i, err)
		}
		rec, err := report.Record()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		if st != nil {
			if rec.ID, err = st.WriteRun(ctx, rec); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
			}
		}
		result.Batches = append(result.Batches, BatchResult{
			Index:   i,
			Seq:     rec.Seq,
			RunID:   rec.ID,
			Hash:    rec.Hash,
			Points:  rec.Points,
			Results: rec.Results,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputEvalText(formatter.Writer, result)
	return nil
}

// LoadBatches reads batch data from a YAML file, one batch per document.
// Unknown keys are rejected.
func LoadBatches(path string) ([]eval.BatchData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var batches []eval.BatchData
	for {
		var b eval.BatchData
		err := decoder.Decode(&b)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse batch %d: %w", len(batches), err)
		}
		batches = append(batches, b)
	}
	if len(batches) == 0 {
		return nil, fmt.Errorf("no batches in %s", path)
	}
	return batches, nil
}

// failBatch reports a batch error under its first error code.
func failBatch(formatter *OutputFormatter, index int, err error) error {
	code := ErrCodeGeneric
	if codes := eval.BatchErrorCodes(err); len(codes) > 0 {
		code = string(codes[0])
	}
	return formatter.Fail(ExitCommandError, code, fmt.Sprintf("batch %d: %v", index, err), nil)
}

func outputEvalText(w io.Writer, r EvalResult) {
	fmt.Fprintf(w, "Context %s, root %s\n", r.Context, r.Root)
	for _, b := range r.Batches {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Batch %d (seq %d, %d point(s))", b.Index, b.Seq, b.Points)
		if b.RunID != "" {
			fmt.Fprintf(w, " run %s", b.RunID)
		}
		fmt.Fprintln(w)
		for _, res := range b.Results {
			fmt.Fprintf(w, "  %-10s %s\n", res.Deriv, formatResultValue(res))
		}
	}
}

// formatResultValue renders a stored result value for text output.
func formatResultValue(r ir.ResultRecord) string {
	switch v := r.Value.(type) {
	case ir.IRString:
		return string(v)
	case ir.IRArray:
		out := "["
		for i, x := range v {
			if i > 0 {
				out += " "
			}
			if s, ok := x.(ir.IRString); ok {
				out += string(s)
			}
		}
		return out + "]"
	}
	return fmt.Sprint(r.Value)
}
