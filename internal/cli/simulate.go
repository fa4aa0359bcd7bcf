package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slate-hq/slate/internal/harness"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
}

// ScenarioOutcome is the per-file result of a simulation run.
type ScenarioOutcome struct {
	File      string   `json:"file"`
	Scenario  string   `json:"scenario"`
	Pass      bool     `json:"pass"`
	Converged bool     `json:"converged"`
	Orders    int      `json:"orders"`
	Errors    []string `json:"errors,omitempty"`
}

// SimulateResult is the overall result across all scenario files.
type SimulateResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	AllPassed bool              `json:"all_passed"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml> [more.yaml...]",
		Short: "Run conformance scenarios against the transform engine",
		Long: `Run scenario files: each delivery order is folded through a fresh
engine and the scenario's expectations are checked, convergence included.

Exit codes:
  0 - all scenarios passed
  1 - at least one scenario failed
  2 - command error (unreadable or invalid scenario file)

Examples:
  slate simulate internal/harness/testdata/scenarios/move_style_combine.yaml
  slate simulate scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, cmd, args)
		},
	}

	return cmd
}

func runSimulate(opts *SimulateOptions, cmd *cobra.Command, paths []string) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result := SimulateResult{AllPassed: true}
	for _, path := range paths {
		s, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("load scenario %s", path), err)
		}

		out.VerboseLog("running %s (%d operations)", s.Name, len(s.Operations))
		run, err := harness.Run(s)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("run scenario %s", s.Name), err)
		}

		result.Scenarios = append(result.Scenarios, ScenarioOutcome{
			File:      path,
			Scenario:  s.Name,
			Pass:      run.Pass,
			Converged: run.Converged,
			Orders:    len(run.Orders),
			Errors:    run.Errors,
		})
		if !run.Pass {
			result.AllPassed = false
		}
	}

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		printSimulateText(out, result)
	}

	if !result.AllPassed {
		return NewExitError(ExitFailure, "one or more scenarios failed")
	}
	return nil
}

func printSimulateText(out *OutputFormatter, result SimulateResult) {
	for _, sc := range result.Scenarios {
		status := "PASS"
		if !sc.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(out.Writer, "%s  %s (%d orders, converged=%v)\n", status, sc.Scenario, sc.Orders, sc.Converged)
		for _, e := range sc.Errors {
			fmt.Fprintf(out.Writer, "      %s\n", e)
		}
	}
	if result.AllPassed {
		fmt.Fprintf(out.Writer, "%d scenario(s) passed\n", len(result.Scenarios))
	}
}
