package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qsnake/trilinos-sub010/internal/compiler"
	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// ExpressionSummary describes one compiled named expression.
type ExpressionSummary struct {
	Name  string `json:"name"`
	Hash  string `json:"hash"`
	Infix string `json:"infix"`
	Nodes int    `json:"nodes"`
}

// ContextSummary describes one declared context.
type ContextSummary struct {
	Name      string `json:"name"`
	Root      string `json:"root"`
	MaxOrder  int    `json:"max_order"`
	SetupVerb int    `json:"setup_verb,omitempty"`
}

// CompilationResult is the compile command's payload.
type CompilationResult struct {
	Expressions []ExpressionSummary `json:"expressions"`
	Contexts    []ContextSummary    `json:"contexts"`
	NodeCount   int                 `json:"node_count"`
	Output      string              `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE expression specs to canonical IR",
		Long: `Compile a CUE expression spec package to canonical IR.

The compiler parses the CUE files, builds every named expression into one
hash-consed DAG and, with --output, writes the canonical node table.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll, logger)
	if loadResult == nil || loadResult.Program == nil || hasLoadError(loadErrors) {
		return outputCompileErrors(formatter, loadErrors)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	// Validation errors do not stop compile; they are reported by validate.
	for _, err := range loadErrors {
		code, message := errorCode(err)
		formatter.VerboseLog("warning %s: %s", code, message)
	}

	prog := loadResult.Program
	result := summarize(prog)

	if opts.Output != "" {
		if err := writeIRToFile(prog, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
		result.Output = opts.Output
	}

	return outputCompileSuccess(formatter, result)
}

func hasLoadError(errs []error) bool {
	for _, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return true
		}
	}
	return false
}

// summarize builds the compile payload for prog.
func summarize(prog *compiler.Program) *CompilationResult {
	result := &CompilationResult{
		Expressions: make([]ExpressionSummary, 0, len(prog.Order)),
		Contexts:    make([]ContextSummary, 0, len(prog.Contexts)),
		NodeCount:   prog.DAG.Len(),
	}
	for _, name := range prog.Order {
		e := prog.Exprs[name]
		result.Expressions = append(result.Expressions, ExpressionSummary{
			Name:  name,
			Hash:  e.Hash(),
			Infix: e.String(),
			Nodes: len(prog.DAG.PostOrder(e)),
		})
	}
	for _, name := range prog.ContextNames() {
		c := prog.Contexts[name]
		result.Contexts = append(result.Contexts, ContextSummary{
			Name:      name,
			Root:      c.Root,
			MaxOrder:  c.MaxOrder,
			SetupVerb: c.SetupVerb,
		})
	}
	return result
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d expression(s), %d context(s), %d node(s)\n\n",
		len(result.Expressions), len(result.Contexts), result.NodeCount)

	if len(result.Expressions) > 0 {
		fmt.Fprintln(w, "Expressions:")
		for _, e := range result.Expressions {
			fmt.Fprintf(w, "  %s = %s  [%s]\n", e.Name, e.Infix, truncateHash(e.Hash))
		}
		fmt.Fprintln(w)
	}

	if len(result.Contexts) > 0 {
		fmt.Fprintln(w, "Contexts:")
		for _, c := range result.Contexts {
			fmt.Fprintf(w, "  %s: root %s, max order %d\n", c.Name, c.Root, c.MaxOrder)
		}
		fmt.Fprintln(w)
	}

	if result.Output != "" {
		fmt.Fprintf(w, "Wrote canonical IR to %s\n", result.Output)
	}
	return nil
}

// outputCompileErrors outputs every load or compile error.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if len(errs) == 0 {
		errs = []error{errors.New("compilation failed")}
	}

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := errorCode(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		code, message := errorCode(errs[0])
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		code, message := errorCode(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	code, message := errorCode(errs[0])
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// writeIRToFile writes the program's canonical IR as a single line.
func writeIRToFile(prog *compiler.Program, filename string) error {
	data, err := ir.MarshalCanonical(prog.IR())
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// truncateHash shortens a content hash for text output.
func truncateHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
