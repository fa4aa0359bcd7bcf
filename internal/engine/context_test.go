package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slate-hq/slate/internal/attr"
	"github.com/slate-hq/slate/internal/clock"
	"github.com/slate-hq/slate/internal/op"
)

type fixedIDs struct {
	next int
}

func (f *fixedIDs) NewID() string {
	f.next++
	return "op-" + string(rune('0'+f.next))
}

func TestContext_Update_AdvancesClocksAndVersion(t *testing.T) {
	ctx := NewContext("alice", "bob")

	o := buildOp(opSpec{"o1", op.TypeMove, "el-1", "bob", clock.VectorClock{"alice": 1, "bob": 3}, 7})
	ctx.Update(o)

	assert.Equal(t, int64(1), ctx.CanvasVersion)
	assert.Equal(t, int64(7), ctx.LamportClock)
	assert.Equal(t, int64(1), ctx.CurrentVectorClock.Get("alice"))
	assert.Equal(t, int64(3), ctx.CurrentVectorClock.Get("bob"))

	es, ok := ctx.ElementStates["el-1"]
	require.True(t, ok)
	assert.Equal(t, "bob", es.LastUserID)
	assert.Equal(t, int64(7), es.LastLamport)
}

func TestContext_Update_LamportNeverRegresses(t *testing.T) {
	ctx := NewContext()
	ctx.Update(buildOp(opSpec{"hi", op.TypeMove, "el-1", "a", clock.VectorClock{"a": 1}, 10}))
	ctx.Update(buildOp(opSpec{"lo", op.TypeMove, "el-1", "b", clock.VectorClock{"b": 1}, 3}))

	assert.Equal(t, int64(10), ctx.LamportClock)
	assert.Equal(t, int64(2), ctx.CanvasVersion, "version advances per accepted op regardless")
}

func TestContext_CreateOperation_PureWithRespectToContext(t *testing.T) {
	ctx := NewContext("alice")
	ctx.LamportClock = 4
	ctx.CanvasVersion = 9

	gen := &fixedIDs{}
	pos := op.Position{X: 1, Y: 2}
	o := ctx.CreateOperation(Draft{
		Type:      op.TypeMove,
		ElementID: "el-1",
		Position:  &pos,
	}, "alice", gen, pairTime)

	require.NoError(t, o.Validate())
	assert.Equal(t, int64(1), o.VectorClock.Get("alice"))
	assert.Equal(t, int64(5), o.Lamport)
	assert.Equal(t, int64(9), o.Version)

	// The context only moves via Update.
	assert.Equal(t, int64(0), ctx.CurrentVectorClock.Get("alice"))
	assert.Equal(t, int64(4), ctx.LamportClock)

	// Payload is copied, not aliased.
	pos.X = 99
	assert.Equal(t, float64(1), o.Position.X)
}

func TestContext_CreateOperation_ClonesMaps(t *testing.T) {
	ctx := NewContext("alice")
	data := attr.Map{"label": attr.String("a")}

	o := ctx.CreateOperation(Draft{
		Type: op.TypeCreate, ElementID: "el-1", ElementType: "rect", Data: data,
	}, "alice", &fixedIDs{}, pairTime)

	data["label"] = attr.String("mutated")
	assert.Equal(t, attr.String("a"), o.Data["label"])
}

func TestContext_Acknowledge(t *testing.T) {
	ctx := NewContext("alice")
	ctx.PendingOperations = []op.Operation{
		buildOp(opSpec{"p1", op.TypeMove, "el-1", "alice", clock.VectorClock{"alice": 1}, 1}),
		buildOp(opSpec{"p2", op.TypeMove, "el-1", "alice", clock.VectorClock{"alice": 2}, 2}),
	}

	ctx.Acknowledge("p1")
	require.Len(t, ctx.PendingOperations, 1)
	assert.Equal(t, "p2", ctx.PendingOperations[0].ID)

	// Unknown ids are ignored.
	ctx.Acknowledge("ghost")
	assert.Len(t, ctx.PendingOperations, 1)
}

func TestReplicaTrustState_Observe(t *testing.T) {
	trust := NewReplicaTrustState()
	local := time.Unix(1000, 0)

	trust.Observe("bob", local.Add(3*time.Second), local)
	assert.Equal(t, 3*time.Second, trust.Skew("bob"))

	trust.Observe("bob", local.Add(-1*time.Second), local)
	assert.Equal(t, -1*time.Second, trust.Skew("bob"), "last observation wins")

	assert.Equal(t, time.Duration(0), trust.Skew("never-seen"))
}
