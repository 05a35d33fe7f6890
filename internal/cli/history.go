package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qsnake/trilinos-sub010/internal/ir"
	"github.com/qsnake/trilinos-sub010/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Context  string // only runs of this context
	Run      string // show one run with its results
	Verify   bool   // recompute and check every run hash
}

// RunSummary is one listed run.
type RunSummary struct {
	Seq     int64  `json:"seq"`
	ID      string `json:"id"`
	Context string `json:"context"`
	Points  int    `json:"points"`
	Hash    string `json:"hash"`
	Valid   *bool  `json:"valid,omitempty"` // set with --verify
	Reason  string `json:"reason,omitempty"`
}

// HistoryResult is the history command's payload.
type HistoryResult struct {
	Runs     []RunSummary `json:"runs"`
	Verified bool         `json:"verified,omitempty"`
	Invalid  int          `json:"invalid,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and verify recorded runs",
		Long: `List the runs recorded by eval --db in sequence order.

With --run, one run is shown with its stored derivative values. With
--verify, every run's context and content hashes are recomputed from the
stored rows; any mismatch fails the command.

Exit codes:
  0 - Success (all runs verified)
  1 - One or more runs failed verification
  2 - Command error (database not found, unknown run)

Examples:
  sundance history --db runs.db
  sundance history --db runs.db --context jacobian --verify
  sundance history --db runs.db --run 01926c1e-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Context, "context", "", "only list runs of this context")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show one run by ID")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "recompute and check run hashes")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Run != "" {
		return showRun(ctx, formatter, st, opts.Run, opts.Verify)
	}

	runs, err := st.ListRuns(ctx, store.RunFilter{Context: opts.Context})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	result := HistoryResult{Runs: make([]RunSummary, 0, len(runs)), Verified: opts.Verify}
	for _, run := range runs {
		summary := summarizeRun(run)
		if opts.Verify {
			full, err := st.ReadRun(ctx, run.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read run", err)
			}
			markVerified(&summary, full.Verify())
			if !*summary.Valid {
				result.Invalid++
			}
		}
		result.Runs = append(result.Runs, summary)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputHistoryText(formatter, result)
	}
	if result.Invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) failed verification", result.Invalid))
	}
	return nil
}

// showRun prints one run with its results.
func showRun(ctx context.Context, formatter *OutputFormatter, st *store.Store, id string, verify bool) error {
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	var verifyErr error
	if verify {
		verifyErr = run.Verify()
	}

	if formatter.Format == "json" {
		if err := formatter.Success(run); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		fmt.Fprintf(w, "Run %s (seq %d)\n", run.ID, run.Seq)
		fmt.Fprintf(w, "Context %s, max order %d, %d point(s)\n", run.Context, run.MaxOrder, run.Points)
		fmt.Fprintf(w, "Hash %s\n\n", run.Hash)
		for _, res := range run.Results {
			fmt.Fprintf(w, "  %-10s %s\n", res.Deriv, formatResultValue(res))
		}
		if verify && verifyErr == nil {
			fmt.Fprintln(w, "\n✓ Hashes verified")
		}
	}
	if verifyErr != nil {
		return formatter.Fail(ExitFailure, ErrCodeHashMismatch, verifyErr.Error(), nil)
	}
	return nil
}

func summarizeRun(run ir.RunRecord) RunSummary {
	return RunSummary{
		Seq:     run.Seq,
		ID:      run.ID,
		Context: run.Context,
		Points:  run.Points,
		Hash:    run.Hash,
	}
}

func markVerified(s *RunSummary, err error) {
	valid := err == nil
	s.Valid = &valid
	if err != nil {
		s.Reason = err.Error()
	}
}

func outputHistoryText(formatter *OutputFormatter, r HistoryResult) {
	w := formatter.Writer
	if len(r.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, run := range r.Runs {
		mark := ""
		if run.Valid != nil {
			mark = "✓ "
			if !*run.Valid {
				mark = "✗ "
			}
		}
		fmt.Fprintf(w, "%s%4d  %s  %-12s %3d pt  %s\n", mark, run.Seq, run.ID, run.Context, run.Points, truncateHash(run.Hash))
		if run.Reason != "" {
			fmt.Fprintf(w, "      %s\n", run.Reason)
		}
	}
	if r.Verified {
		fmt.Fprintln(w)
		if r.Invalid == 0 {
			fmt.Fprintf(w, "✓ %d run(s) verified\n", len(r.Runs))
		} else {
			fmt.Fprintf(w, "✗ %d of %d run(s) failed verification\n", r.Invalid, len(r.Runs))
		}
	}
}
