package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slate-hq/slate/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	CanvasID string // optional - specific canvas only
}

// ReplayCanvasResult holds the replay result for a single canvas.
type ReplayCanvasResult struct {
	CanvasID      string `json:"canvas_id"`
	OpsApplied    int64  `json:"ops_applied"`
	FromSnapshot  int64  `json:"from_snapshot,omitempty"`
	Elements      int    `json:"elements"`
	Digest        string `json:"digest"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Canvases         []ReplayCanvasResult `json:"canvases"`
	TotalCanvases    int                  `json:"total_canvases"`
	AllDeterministic bool                 `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay operation logs and verify determinism",
		Long: `Materialize each canvas from its resolved operation log.

Every canvas is replayed twice; a deterministic log produces the same
state digest both times. The command reports per-canvas statistics and
the digest of the materialized state.

Exit codes:
  0 - all canvases replay deterministically
  1 - divergent replay detected
  2 - command error (database not found, etc.)

Examples:
  slate replay --db ./slate.db
  slate replay --db ./slate.db --canvas board-7
  slate replay --db ./slate.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.CanvasID, "canvas", "", "replay a specific canvas only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	canvases, err := targetCanvases(ctx, st, opts.CanvasID)
	if err != nil {
		return err
	}
	if len(canvases) == 0 {
		if opts.Format == "json" {
			return out.Success(ReplayResult{Canvases: []ReplayCanvasResult{}, AllDeterministic: true})
		}
		fmt.Fprintln(out.Writer, "No canvases found in database.")
		return nil
	}

	result := ReplayResult{
		Canvases:         make([]ReplayCanvasResult, 0, len(canvases)),
		TotalCanvases:    len(canvases),
		AllDeterministic: true,
	}
	for _, id := range canvases {
		out.VerboseLog("replaying canvas %s", id)
		cr, err := replayCanvasTwice(ctx, st, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay canvas %s", id), err)
		}
		result.Canvases = append(result.Canvases, cr)
		if !cr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		printReplayText(out, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "divergent replay detected")
	}
	return nil
}

// replayCanvasTwice materializes the canvas twice and compares digests.
// The log stores resolved operations, so both passes must agree.
func replayCanvasTwice(ctx context.Context, st *store.Store, canvasID string) (ReplayCanvasResult, error) {
	first, err := st.Replay(ctx, canvasID)
	if err != nil {
		return ReplayCanvasResult{}, fmt.Errorf("first replay: %w", err)
	}
	second, err := st.Replay(ctx, canvasID)
	if err != nil {
		return ReplayCanvasResult{}, fmt.Errorf("second replay: %w", err)
	}

	return ReplayCanvasResult{
		CanvasID:      canvasID,
		OpsApplied:    first.OpsApplied,
		FromSnapshot:  first.FromSnapshot,
		Elements:      len(first.State.Elements),
		Digest:        first.Digest,
		Deterministic: first.Digest == second.Digest,
	}, nil
}

func targetCanvases(ctx context.Context, st *store.Store, canvasID string) ([]string, error) {
	if canvasID != "" {
		return []string{canvasID}, nil
	}
	canvases, err := st.Canvases(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list canvases", err)
	}
	return canvases, nil
}

func printReplayText(out *OutputFormatter, result ReplayResult) {
	for _, cr := range result.Canvases {
		status := "ok"
		if !cr.Deterministic {
			status = "DIVERGENT"
		}
		fmt.Fprintf(out.Writer, "%-12s canvas=%s ops=%d elements=%d snapshot_seq=%d digest=%s\n",
			status, cr.CanvasID, cr.OpsApplied, cr.Elements, cr.FromSnapshot, cr.Digest)
	}
	if result.AllDeterministic {
		fmt.Fprintf(out.Writer, "%d canvas(es) replayed deterministically\n", len(result.Canvases))
	}
}
