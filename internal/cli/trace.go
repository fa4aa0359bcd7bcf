package cli

import (
	"fmt"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/slate-hq/slate/internal/harness"
	"github.com/slate-hq/slate/internal/op"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Order int // which delivery order to trace
}

// TraceEvent is one resolved operation in the trace timeline.
type TraceEvent struct {
	Seq       int    `json:"seq"`
	ID        string `json:"id"`
	Type      string `json:"type"`
	ElementID string `json:"element_id"`
	UserID    string `json:"user_id"`
	Lamport   int64  `json:"lamport"`
	Rewritten bool   `json:"rewritten,omitempty"`
}

// TraceResult holds the complete trace output for one delivery order.
type TraceResult struct {
	Scenario string       `json:"scenario"`
	Order    []string     `json:"order"`
	Timeline []TraceEvent `json:"timeline"`
	Elements int          `json:"elements"`
	Digest   string       `json:"digest"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario.yaml>",
		Short: "Show the resolved operation timeline for a scenario",
		Long: `Fold one delivery order of a scenario and show what each operation
resolved to: operations rewritten by the transform (a style turned into
a delete, a move absorbed into a combined update) are marked.

With --verbose the final materialized state is dumped as well.

Examples:
  slate trace scenarios/delete_beats_concurrent_style.yaml
  slate trace scenarios/move_style_combine.yaml --order 1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Order, "order", 0, "index of the delivery order to trace")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command, path string) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("load scenario %s", path), err)
	}

	run, err := harness.Run(s)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("run scenario %s", s.Name), err)
	}
	if opts.Order < 0 || opts.Order >= len(run.Orders) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("order index %d out of range: scenario ran %d orders", opts.Order, len(run.Orders)))
	}
	traced := run.Orders[opts.Order]

	originals := make(map[string]op.Type, len(s.Operations))
	for _, step := range s.Operations {
		originals[step.ID] = op.Type(step.Type)
	}

	result := TraceResult{
		Scenario: s.Name,
		Order:    traced.Order,
		Elements: len(traced.State.Elements),
		Digest:   traced.Digest,
	}
	for i, o := range traced.Resolved {
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:       i + 1,
			ID:        o.ID,
			Type:      string(o.Type),
			ElementID: o.ElementID,
			UserID:    o.UserID,
			Lamport:   o.Lamport,
			Rewritten: originals[o.ID] != o.Type,
		})
	}

	if opts.Format == "json" {
		return out.Success(result)
	}

	printTraceText(out, result)
	if opts.Verbose {
		fmt.Fprintln(out.Writer, "final state:")
		fmt.Fprintln(out.Writer, litter.Sdump(traced.State))
	}
	return nil
}

func printTraceText(out *OutputFormatter, result TraceResult) {
	fmt.Fprintf(out.Writer, "scenario %s, order %v\n", result.Scenario, result.Order)
	for _, ev := range result.Timeline {
		mark := ""
		if ev.Rewritten {
			mark = "  (rewritten)"
		}
		fmt.Fprintf(out.Writer, "%3d  %-8s %s  element=%s user=%s lamport=%d%s\n",
			ev.Seq, ev.Type, ev.ID, ev.ElementID, ev.UserID, ev.Lamport, mark)
	}
	fmt.Fprintf(out.Writer, "%d element(s), digest %s\n", result.Elements, result.Digest)
}
