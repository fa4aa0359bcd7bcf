package op

import (
	"time"

	"github.com/slate-hq/slate/internal/attr"
	"github.com/slate-hq/slate/internal/clock"
)

// Type discriminates the operation union.
type Type string

const (
	TypeCreate  Type = "create"
	TypeUpdate  Type = "update"
	TypeDelete  Type = "delete"
	TypeMove    Type = "move"
	TypeStyle   Type = "style"
	TypeReorder Type = "reorder"
)

// KnownTypes lists every member of the operation union.
var KnownTypes = []Type{TypeCreate, TypeUpdate, TypeDelete, TypeMove, TypeStyle, TypeReorder}

// Position is a point on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the box's center point.
func (b Bounds) Center() Position {
	return Position{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Operation is a single canvas edit. Type-specific payload fields are
// pointers or maps left nil when not applicable to the variant.
type Operation struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	ElementID string `json:"element_id"`
	UserID    string `json:"user_id"`

	// create only
	ElementType string `json:"element_type,omitempty"`

	// create, update
	Data attr.Map `json:"data,omitempty"`

	// create, update, style
	Style attr.Map `json:"style,omitempty"`

	// create, update, move
	Position *Position `json:"position,omitempty"`
	Bounds   *Bounds   `json:"bounds,omitempty"`

	// reorder only
	ZIndex *int `json:"z_index,omitempty"`

	// Advisory wall-clock time. Never used for ordering (see clock pkg).
	Timestamp time.Time `json:"timestamp"`

	// Document version at issue time.
	Version int64 `json:"version"`

	// Issuing replica's clock after incrementing its own entry.
	VectorClock clock.VectorClock `json:"vector_clock"`

	// Concurrent tie-break stamp.
	Lamport int64 `json:"lamport"`
}

// Clone returns a deep copy. Transform steps derive modified copies from
// it so the original operation value is never aliased or mutated.
func (o Operation) Clone() Operation {
	out := o
	out.Data = o.Data.Clone()
	out.Style = o.Style.Clone()
	out.VectorClock = o.VectorClock.Clone()
	if o.Position != nil {
		p := *o.Position
		out.Position = &p
	}
	if o.Bounds != nil {
		b := *o.Bounds
		out.Bounds = &b
	}
	if o.ZIndex != nil {
		z := *o.ZIndex
		out.ZIndex = &z
	}
	return out
}
