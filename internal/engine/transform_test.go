package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slate-hq/slate/internal/attr"
	"github.com/slate-hq/slate/internal/canvas"
	"github.com/slate-hq/slate/internal/clock"
	"github.com/slate-hq/slate/internal/op"
	"github.com/slate-hq/slate/internal/spatial"
)

func TestTransform_RejectsMalformed(t *testing.T) {
	e := New()

	// Vector clock missing the issuing user's entry.
	bad := buildOp(opSpec{"bad", op.TypeMove, "el-1", "alice", clock.VectorClock{"bob": 1}, 1})

	_, err := e.Transform(bad, nil)
	require.Error(t, err)
	assert.True(t, IsMalformedError(err))

	var te *TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeMalformedOperation, te.Code)
	assert.Equal(t, "bad", te.OperationID)
}

func TestTransform_EmptyPendingSetPassesThrough(t *testing.T) {
	e := New()
	o := buildOp(opSpec{"o", op.TypeMove, "el-1", "alice", clock.VectorClock{"alice": 1}, 1})

	got, err := e.Transform(o, nil)
	require.NoError(t, err)
	assert.Equal(t, o, got)
}

func TestTransform_DiscardsCausallyLaterOps(t *testing.T) {
	e := New()
	newOp := buildOp(opSpec{"n", op.TypeMove, "el-1", "alice", clock.VectorClock{"alice": 2}, 2})
	newOp.Position = &op.Position{X: 5, Y: 5}

	// This op's clock dominates the new op's; it must be dropped, not
	// folded, so the new op passes through unchanged.
	laterMove := buildOp(opSpec{"l", op.TypeMove, "el-1", "bob", clock.VectorClock{"alice": 2, "bob": 1}, 9})
	laterMove.Position = &op.Position{X: 99, Y: 99}

	got, err := e.Transform(newOp, []op.Operation{laterMove})
	require.NoError(t, err)
	assert.Equal(t, op.Position{X: 5, Y: 5}, *got.Position)
}

func TestTransform_SkipsItselfOnReplay(t *testing.T) {
	e := New()
	o := buildOp(opSpec{"dup", op.TypeDelete, "el-1", "alice", clock.VectorClock{"alice": 1}, 1})

	got, err := e.Transform(o, []op.Operation{o})
	require.NoError(t, err)
	assert.Equal(t, op.TypeDelete, got.Type)
}

func TestConcurrentSet_DeterministicOrder(t *testing.T) {
	e := New()
	newOp := buildOp(opSpec{"n", op.TypeUpdate, "el-1", "zed", clock.VectorClock{"zed": 5}, 50})

	before := buildOp(opSpec{"b", op.TypeStyle, "el-1", "zed", clock.VectorClock{"zed": 1}, 40})
	concLow := buildOp(opSpec{"c1", op.TypeMove, "el-1", "bob", clock.VectorClock{"bob": 1}, 3})
	concHigh := buildOp(opSpec{"c2", op.TypeMove, "el-1", "amy", clock.VectorClock{"amy": 1}, 7})
	concTieA := buildOp(opSpec{"t1", op.TypeMove, "el-1", "ann", clock.VectorClock{"ann": 1}, 5})
	concTieB := buildOp(opSpec{"t2", op.TypeMove, "el-1", "zoe", clock.VectorClock{"zoe": 1}, 5})

	pending := []op.Operation{concHigh, concTieB, before, concTieA, concLow}
	got := e.concurrentSet(newOp, pending)

	ids := make([]string, len(got))
	for i, o := range got {
		ids[i] = o.ID
	}
	// Causally-before first, then ascending lamport, userID ascending on ties.
	assert.Equal(t, []string{"b", "c1", "t1", "t2", "c2"}, ids)

	// Any permutation of the pending multiset yields the same order.
	perm := []op.Operation{concLow, before, concTieA, concHigh, concTieB}
	got2 := e.concurrentSet(newOp, perm)
	ids2 := make([]string, len(got2))
	for i, o := range got2 {
		ids2[i] = o.ID
	}
	assert.Equal(t, ids, ids2)
}

func TestTransform_ProcessingBudget(t *testing.T) {
	// A fake time source advances one second per observation, blowing a
	// two-second budget on the second fold step.
	var ticks int64
	fakeNow := func() time.Time {
		ticks++
		return time.Unix(ticks, 0)
	}
	e := New(WithMaxProcessingTime(2*time.Second), WithNow(fakeNow))

	newOp := buildOp(opSpec{"n", op.TypeUpdate, "el-1", "zed", clock.VectorClock{"zed": 1}, 9})
	pending := []op.Operation{
		buildOp(opSpec{"p1", op.TypeStyle, "el-1", "a", clock.VectorClock{"a": 1}, 1}),
		buildOp(opSpec{"p2", op.TypeStyle, "el-1", "b", clock.VectorClock{"b": 1}, 2}),
		buildOp(opSpec{"p3", op.TypeStyle, "el-1", "c", clock.VectorClock{"c": 1}, 3}),
	}

	_, err := e.Transform(newOp, pending)
	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))

	var te *TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeProcessingTimeout, te.Code)
}

func TestTransform_SpatialNudge(t *testing.T) {
	// Spec scenario: moves on different elements targeting (100,100) and
	// (105,103) - distance about 5.8, well under the 50-unit threshold.
	// The later-folded operation lands offset by (+10,+10) once.
	e := New()

	mvA := buildOp(opSpec{"ma", op.TypeMove, "el-a", "alice", clock.VectorClock{"alice": 1}, 1})
	mvA.Position = &op.Position{X: 100, Y: 100}
	mvB := buildOp(opSpec{"mb", op.TypeMove, "el-b", "bob", clock.VectorClock{"bob": 1}, 2})
	mvB.Position = &op.Position{X: 105, Y: 103}

	got, err := e.Transform(mvB, []op.Operation{mvA})
	require.NoError(t, err)
	assert.Equal(t, op.Position{X: 115, Y: 113}, *got.Position)
	assert.Equal(t, op.TypeMove, got.Type, "nudge never changes the type")
}

func TestTransform_SpatialNudge_FarApartUntouched(t *testing.T) {
	e := New()

	mvA := buildOp(opSpec{"ma", op.TypeMove, "el-a", "alice", clock.VectorClock{"alice": 1}, 1})
	mvA.Position = &op.Position{X: 0, Y: 0}
	mvB := buildOp(opSpec{"mb", op.TypeMove, "el-b", "bob", clock.VectorClock{"bob": 1}, 2})
	mvB.Position = &op.Position{X: 500, Y: 500}

	got, err := e.Transform(mvB, []op.Operation{mvA})
	require.NoError(t, err)
	assert.Equal(t, op.Position{X: 500, Y: 500}, *got.Position)
}

func TestTransform_SpatialNudge_WithGridIndex(t *testing.T) {
	grid := spatial.NewGrid(spatial.DefaultCellSize)
	grid.Insert("el-a", op.Bounds{X: 95, Y: 95, Width: 10, Height: 10})
	e := New(WithSpatialIndex(grid))

	mvA := buildOp(opSpec{"ma", op.TypeMove, "el-a", "alice", clock.VectorClock{"alice": 1}, 1})
	mvA.Position = &op.Position{X: 100, Y: 100}
	mvB := buildOp(opSpec{"mb", op.TypeMove, "el-b", "bob", clock.VectorClock{"bob": 1}, 2})
	mvB.Position = &op.Position{X: 105, Y: 103}

	got, err := e.Transform(mvB, []op.Operation{mvA})
	require.NoError(t, err)
	assert.Equal(t, op.Position{X: 115, Y: 113}, *got.Position)

	// An element the grid has never seen is not a candidate.
	grid.Remove("el-a")
	got, err = e.Transform(mvB, []op.Operation{mvA})
	require.NoError(t, err)
	assert.Equal(t, op.Position{X: 105, Y: 103}, *got.Position)
}

func TestTransform_NudgeIsNonDestructive(t *testing.T) {
	// Nudging never changes type, data, or same-element winners.
	e := New()

	mvA := buildOp(opSpec{"ma", op.TypeMove, "el-a", "alice", clock.VectorClock{"alice": 1}, 1})
	mvA.Position = &op.Position{X: 100, Y: 100}
	mvB := buildOp(opSpec{"mb", op.TypeMove, "el-b", "bob", clock.VectorClock{"bob": 1}, 2})
	mvB.Position = &op.Position{X: 105, Y: 103}
	mvB.Data = attr.Map{"tag": attr.String("keep")}

	got, err := e.Transform(mvB, []op.Operation{mvA})
	require.NoError(t, err)
	assert.Equal(t, mvB.Type, got.Type)
	assert.True(t, attr.Equal(mvB.Data, got.Data))
	assert.Equal(t, mvB.VectorClock, got.VectorClock)
}

// --- End-to-end scenarios from the component contract ---

func materialize(t *testing.T, e *Engine, initial canvas.State, ops ...op.Operation) canvas.State {
	t.Helper()
	state := initial
	var applied []op.Operation
	for _, o := range ops {
		resolved, err := e.Transform(o, applied)
		require.NoError(t, err)
		state = canvas.Apply(state, resolved)
		applied = append(applied, o)
	}
	return state
}

func seededCanvas(t *testing.T, elementID string) canvas.State {
	t.Helper()
	create := buildOp(opSpec{"seed-" + elementID, op.TypeCreate, elementID, "seed", clock.VectorClock{"seed": 1}, 0})
	return canvas.Apply(canvas.NewState(), create)
}

func TestScenario_ConcurrentMovesConverge(t *testing.T) {
	// Replicas A and B move the same element concurrently; B's higher
	// lamport wins on both replicas.
	e := New()
	initial := seededCanvas(t, "el-1")

	mvA := buildOp(opSpec{"ma", op.TypeMove, "el-1", "A", clock.VectorClock{"A": 2}, 5})
	mvA.Position = &op.Position{X: 10, Y: 10}
	mvB := buildOp(opSpec{"mb", op.TypeMove, "el-1", "B", clock.VectorClock{"B": 2}, 7})
	mvB.Position = &op.Position{X: 20, Y: 20}

	onA := materialize(t, e, initial, mvA, mvB)
	onB := materialize(t, e, initial, mvB, mvA)

	require.Len(t, onA.Elements, 1)
	assert.Equal(t, op.Position{X: 20, Y: 20}, onA.Elements[0].Position)
	assert.Equal(t, onA.MustDigest(), onB.MustDigest())
}

func TestScenario_DeleteBeatsConcurrentStyle(t *testing.T) {
	// A deletes at {A:2}; B styles having seen only {A:1}. Concurrent,
	// so the delete wins and the element is gone everywhere.
	e := New()
	initial := seededCanvas(t, "el-1")

	del := buildOp(opSpec{"d", op.TypeDelete, "el-1", "A", clock.VectorClock{"A": 2}, 5})
	styleOp := buildOp(opSpec{"s", op.TypeStyle, "el-1", "B", clock.VectorClock{"A": 1, "B": 1}, 6})

	onA := materialize(t, e, initial, del, styleOp)
	onB := materialize(t, e, initial, styleOp, del)

	assert.Empty(t, onA.Elements)
	assert.Empty(t, onB.Elements)
	assert.Equal(t, onA.MustDigest(), onB.MustDigest())
}

func TestScenario_DeleteBeatsConcurrentMoveAfterSharedCreate(t *testing.T) {
	// A creates at {A:1}; B deletes causally after at {A:1,B:1}; C moves
	// concurrently with the delete at {A:1,C:1}. Delete wins.
	e := New()

	create := buildOp(opSpec{"c", op.TypeCreate, "el-1", "A", clock.VectorClock{"A": 1}, 1})
	del := buildOp(opSpec{"d", op.TypeDelete, "el-1", "B", clock.VectorClock{"A": 1, "B": 1}, 2})
	move := buildOp(opSpec{"m", op.TypeMove, "el-1", "C", clock.VectorClock{"A": 1, "C": 1}, 3})

	one := materialize(t, e, canvas.NewState(), create, del, move)
	two := materialize(t, e, canvas.NewState(), create, move, del)

	assert.Empty(t, one.Elements)
	assert.Empty(t, two.Elements)
}

func TestScenario_PermutationConvergence(t *testing.T) {
	// Every delivery order of the same multiset converges.
	e := New()
	initial := seededCanvas(t, "el-1")

	mv := buildOp(opSpec{"m", op.TypeMove, "el-1", "A", clock.VectorClock{"A": 2}, 4})
	mv.Position = &op.Position{X: 50, Y: 60}
	st := buildOp(opSpec{"s", op.TypeStyle, "el-1", "B", clock.VectorClock{"B": 2}, 5})
	st.Style = attr.Map{"fill": attr.String("blue")}
	up := buildOp(opSpec{"u", op.TypeUpdate, "el-1", "C", clock.VectorClock{"C": 2}, 6})
	up.Data = attr.Map{"label": attr.String("hello")}

	ops := []op.Operation{mv, st, up}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var digests []string
	for _, p := range perms {
		ordered := []op.Operation{ops[p[0]], ops[p[1]], ops[p[2]]}
		final := materialize(t, e, initial, ordered...)
		digests = append(digests, final.MustDigest())
	}
	for i := 1; i < len(digests); i++ {
		assert.Equal(t, digests[0], digests[i], "permutation %d diverged", i)
	}
}
