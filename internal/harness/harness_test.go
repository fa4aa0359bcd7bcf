package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every fixture under testdata/scenarios must execute cleanly and meet
// its own expectations. New conformance scenarios only need a YAML file.
func TestRun_ScenarioFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "expectation failures: %v", result.Errors)
			assert.True(t, result.Converged)
		})
	}
}

func TestRun_ConcurrentMovesWinnerPosition(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "concurrent_moves_higher_lamport_wins.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "expectation failures: %v", result.Errors)

	// Both permutations of two operations run; each lands the higher
	// Lamport stamp's position.
	require.Len(t, result.Orders, 2)
	for _, or := range result.Orders {
		el, ok := or.State.Find("el-1")
		require.True(t, ok)
		assert.Equal(t, 20.0, el.Position.X)
		assert.Equal(t, 20.0, el.Position.Y)
	}
}

func TestRun_MalformedOperationSkipped(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "malformed_clock_rejected.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "expectation failures: %v", result.Errors)

	// The rejected operation never reaches materialization.
	for _, or := range result.Orders {
		require.Len(t, or.Resolved, 1)
		assert.Equal(t, "move-good", or.Resolved[0].ID)
	}
}

func TestRun_PermutationCapRequiresExplicitOrders(t *testing.T) {
	s := &Scenario{
		Name:        "too_many",
		Description: "exceeds the implicit permutation cap",
	}
	for i := 0; i < maxPermutedOps+1; i++ {
		s.Operations = append(s.Operations, OperationStep{
			ID:          string(rune('a' + i)),
			Type:        "delete",
			Element:     "el-1",
			User:        "alice",
			VectorClock: map[string]int64{"alice": int64(i + 1)},
			Lamport:     int64(i + 1),
		})
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permutation cap")
}

func TestRunWithGolden_DeleteBeatsConcurrentStyle(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "delete_beats_concurrent_style.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "expectation failures: %v", result.Errors)
	assert.Empty(t, result.Orders[0].State.Elements)
}
