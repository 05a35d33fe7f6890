package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qsnake/trilinos-sub010/internal/compiler"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Context string
	XML     bool // include the root's XML rendering
}

// OrderSets holds the derivative sets of one order.
type OrderSets struct {
	Order int      `json:"order"`
	W     []string `json:"w"`
	C     []string `json:"c"`
	V     []string `json:"v"`
}

// NodeAnalysis is the superset of one node reached by setup.
type NodeAnalysis struct {
	Kind     string   `json:"kind"`
	Infix    string   `json:"infix"`
	Superset []string `json:"superset"`
}

// Linearity classifies the root in one unknown.
type Linearity struct {
	Unknown   string `json:"unknown"`
	Linear    bool   `json:"linear"`
	Quadratic bool   `json:"quadratic"`
}

// AnalysisResult is the analyze command's payload.
type AnalysisResult struct {
	Context       string         `json:"context"`
	MaxOrder      int            `json:"max_order"`
	Root          string         `json:"root"`
	Infix         string         `json:"infix"`
	Superset      []string       `json:"superset"`
	Orders        []OrderSets    `json:"orders"`
	LinearInTests bool           `json:"linear_in_tests"`
	Linearity     []Linearity    `json:"linearity"`
	Nodes         []NodeAnalysis `json:"nodes"`
	XML           string         `json:"xml,omitempty"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <specs-dir>",
		Short: "Show the sparsity analysis of a context",
		Long: `Run the setup pass for one context and show which derivatives of its
root are structurally nonzero (W), constant (C) and varying (V) at each
order, the superset every reached node must produce, and how the root
depends on each unknown.

Examples:
  sundance analyze ./specs --context jacobian
  sundance analyze ./specs --context jacobian --xml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "context to analyse (required)")
	_ = cmd.MarkFlagRequired("context")
	cmd.Flags().BoolVar(&opts.XML, "xml", false, "include the root's XML rendering")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	prog, err := loadProgram(formatter, specsDir, logger)
	if err != nil {
		return err
	}

	result, err := analyze(prog, opts.Context, opts.XML)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidContext, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputAnalysisText(formatter, result)
	return nil
}

// analyze sets up the named context and collects its sets.
func analyze(prog *compiler.Program, contextName string, withXML bool) (*AnalysisResult, error) {
	ctx, root, err := prog.EvalContext(contextName)
	if err != nil {
		return nil, err
	}
	setup := prog.DAG.Setup(root, ctx)

	result := &AnalysisResult{
		Context:       ctx.Label,
		MaxOrder:      ctx.MaxOrder,
		Root:          prog.Contexts[contextName].Root,
		Infix:         root.String(),
		Superset:      setup.SparsitySuperset(root).Strings(),
		LinearInTests: root.IsLinearInTests(),
		Linearity:     []Linearity{},
	}
	for order := 0; order <= ctx.MaxOrder; order++ {
		result.Orders = append(result.Orders, OrderSets{
			Order: order,
			W:     root.FindW(order, ctx).Strings(),
			C:     root.FindC(order, ctx).Strings(),
			V:     root.FindV(order, ctx).Strings(),
		})
	}
	for _, name := range slices.Sorted(maps.Keys(prog.Unknowns)) {
		u, _ := prog.Unknown(name)
		result.Linearity = append(result.Linearity, Linearity{
			Unknown:   name,
			Linear:    root.IsLinearForm(u),
			Quadratic: root.IsQuadraticForm(u),
		})
	}
	for _, n := range setup.Nodes() {
		result.Nodes = append(result.Nodes, NodeAnalysis{
			Kind:     n.Kind().String(),
			Infix:    n.String(),
			Superset: setup.SparsitySuperset(n).Strings(),
		})
	}
	if withXML {
		xml, err := root.XML()
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", result.Root, err)
		}
		result.XML = xml
	}
	return result, nil
}

func outputAnalysisText(formatter *OutputFormatter, r *AnalysisResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Context %s (max order %d)\n", r.Context, r.MaxOrder)
	fmt.Fprintf(w, "Root %s = %s\n", r.Root, r.Infix)
	fmt.Fprintf(w, "Superset: %s\n\n", braces(r.Superset))

	fmt.Fprintln(w, "Orders:")
	for _, o := range r.Orders {
		fmt.Fprintf(w, "  %d: W=%s C=%s V=%s\n", o.Order, braces(o.W), braces(o.C), braces(o.V))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Linear in test functions: %t\n", r.LinearInTests)
	for _, l := range r.Linearity {
		fmt.Fprintf(w, "  %s: linear=%t quadratic=%t\n", l.Unknown, l.Linear, l.Quadratic)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Nodes:")
	for _, n := range r.Nodes {
		fmt.Fprintf(w, "  %-10s %-30s %s\n", n.Kind, n.Infix, braces(n.Superset))
	}

	if r.XML != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.XML)
	}
}

// braces renders a derivative list in set notation.
func braces(items []string) string {
	return "{" + strings.Join(items, ",") + "}"
}
