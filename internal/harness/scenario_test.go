package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_AllFixturesParse(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Name)
			assert.NotEmpty(t, s.Description)
			assert.NotEmpty(t, s.Operations)
		})
	}
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenarioFile(t, `
name: bad
description: unknown field
operations:
  - id: op-1
    type: move
    element: el-1
    user: alice
    position: {x: 1, y: 1}
    vector_clock: {alice: 1}
    lamport: 1
typo_field: true
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse YAML")
}

func TestLoadScenario_DuplicateOperationID(t *testing.T) {
	path := writeScenarioFile(t, `
name: bad
description: duplicate ids
operations:
  - id: op-1
    type: delete
    element: el-1
    user: alice
    vector_clock: {alice: 1}
    lamport: 1
  - id: op-1
    type: delete
    element: el-2
    user: bob
    vector_clock: {bob: 1}
    lamport: 2
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestLoadScenario_OrderMustCoverAllOperations(t *testing.T) {
	path := writeScenarioFile(t, `
name: bad
description: short order
operations:
  - id: op-1
    type: delete
    element: el-1
    user: alice
    vector_clock: {alice: 1}
    lamport: 1
  - id: op-2
    type: delete
    element: el-2
    user: bob
    vector_clock: {bob: 1}
    lamport: 2
orders:
  - [op-1]
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must list all 2 operation ids")
}

func TestLoadScenario_OrderUnknownID(t *testing.T) {
	path := writeScenarioFile(t, `
name: bad
description: unknown id in order
operations:
  - id: op-1
    type: delete
    element: el-1
    user: alice
    vector_clock: {alice: 1}
    lamport: 1
orders:
  - [op-9]
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown operation id "op-9"`)
}

func TestBuildOperation_NullPayloadValueRejected(t *testing.T) {
	step := OperationStep{
		ID:          "op-1",
		Type:        "update",
		Element:     "el-1",
		User:        "alice",
		Data:        map[string]any{"label": nil},
		VectorClock: map[string]int64{"alice": 1},
	}
	_, err := step.buildOperation(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null values are not representable")
}

func TestPermutations_SortedFirstAndComplete(t *testing.T) {
	orders := permutations([]string{"c", "a", "b"})
	require.Len(t, orders, 6)
	assert.Equal(t, []string{"a", "b", "c"}, orders[0])

	seen := make(map[string]bool, len(orders))
	for _, order := range orders {
		require.Len(t, order, 3)
		key := order[0] + order[1] + order[2]
		assert.False(t, seen[key], "duplicate permutation %v", order)
		seen[key] = true
	}
}
