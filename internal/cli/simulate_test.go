package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenarioYAML = `
name: cli_delete_beats_style
description: delete wins over a concurrent style
seed:
  - id: e
    type: sticky
operations:
  - id: op-delete
    type: delete
    element: e
    user: alice
    vector_clock: {alice: 2}
    lamport: 2
  - id: op-style
    type: style
    element: e
    user: bob
    style: {fill: "red"}
    vector_clock: {alice: 1, bob: 1}
    lamport: 2
expect:
  element_count: 0
`

const failingScenarioYAML = `
name: cli_wrong_expectation
description: expectation contradicts the transform outcome
seed:
  - id: e
    type: sticky
operations:
  - id: op-delete
    type: delete
    element: e
    user: alice
    vector_clock: {alice: 2}
    lamport: 2
expect:
  element_count: 1
`

func writeTempScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSimulate_PassingScenario(t *testing.T) {
	path := writeTempScenario(t, passingScenarioYAML)

	stdout, _, err := executeCommand(t, "simulate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "PASS  cli_delete_beats_style")
	assert.Contains(t, stdout, "1 scenario(s) passed")
}

func TestSimulate_FailingScenarioExitCode(t *testing.T) {
	path := writeTempScenario(t, failingScenarioYAML)

	stdout, _, err := executeCommand(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "FAIL  cli_wrong_expectation")
	assert.Contains(t, stdout, "element count")
}

func TestSimulate_MissingFileIsCommandError(t *testing.T) {
	_, _, err := executeCommand(t, "simulate", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulate_JSONOutput(t *testing.T) {
	path := writeTempScenario(t, passingScenarioYAML)

	stdout, _, err := executeCommand(t, "--format", "json", "simulate", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result SimulateResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Scenarios, 1)
	assert.True(t, result.AllPassed)
	assert.Equal(t, 2, result.Scenarios[0].Orders)
	assert.True(t, result.Scenarios[0].Converged)
}
