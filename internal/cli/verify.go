package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slate-hq/slate/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	CanvasID string
}

// VerifyCanvasResult holds the verification outcome for one canvas.
type VerifyCanvasResult struct {
	CanvasID string `json:"canvas_id"`
	OK       bool   `json:"ok"`
	Detail   string `json:"detail,omitempty"`
}

// VerifyResult holds the overall verification outcome.
type VerifyResult struct {
	Canvases []VerifyCanvasResult `json:"canvases"`
	AllValid bool                 `json:"all_valid"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify snapshot digests against the operation log",
		Long: `Check each canvas's latest snapshot against a from-scratch replay of
its log. A digest mismatch means the snapshot and the log disagree and
the snapshot should not be trusted as a replay starting point.

Exit codes:
  0 - all snapshots match their logs
  1 - digest mismatch detected
  2 - command error (database not found, etc.)

Examples:
  slate verify --db ./slate.db
  slate verify --db ./slate.db --canvas board-7`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.CanvasID, "canvas", "", "verify a specific canvas only")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
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

	result := VerifyResult{AllValid: true}
	for _, id := range canvases {
		out.VerboseLog("verifying canvas %s", id)
		cr := VerifyCanvasResult{CanvasID: id, OK: true}
		if err := st.Verify(ctx, id); err != nil {
			cr.OK = false
			cr.Detail = err.Error()
			result.AllValid = false
		}
		result.Canvases = append(result.Canvases, cr)
	}

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		printVerifyText(out, result)
	}

	if !result.AllValid {
		return NewExitError(ExitFailure, "snapshot digest mismatch detected")
	}
	return nil
}

func printVerifyText(out *OutputFormatter, result VerifyResult) {
	for _, cr := range result.Canvases {
		if cr.OK {
			fmt.Fprintf(out.Writer, "ok    %s\n", cr.CanvasID)
		} else {
			fmt.Fprintf(out.Writer, "FAIL  %s: %s\n", cr.CanvasID, cr.Detail)
		}
	}
}
