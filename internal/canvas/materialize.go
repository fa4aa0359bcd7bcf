package canvas

import (
	"sort"

	"github.com/slate-hq/slate/internal/op"
)

// Apply materializes one already-resolved operation onto the state and
// returns the next state. The input state is never mutated.
//
// Every branch that targets a missing element id is a silent no-op:
// delete-then-reference races are expected and were resolved upstream.
// After the type switch, Version and LastModified are stamped from the
// operation regardless of whether the branch changed anything.
func Apply(s State, o op.Operation) State {
	next := s.Clone()

	switch o.Type {
	case op.TypeCreate:
		// A create whose id already exists replaces the element in
		// place. That makes resolved duplicate creates and
		// recreate-after-delete idempotent: every replica ends up with
		// the winning payload no matter which create it applied first.
		if i := next.indexOf(o.ElementID); i >= 0 {
			next.Elements[i] = elementFromCreate(o)
		} else {
			next.Elements = append(next.Elements, elementFromCreate(o))
		}

	case op.TypeUpdate:
		if i := next.indexOf(o.ElementID); i >= 0 {
			el := &next.Elements[i]
			el.Data = Override(el.Data, o.Data)
			el.Style = Override(el.Style, o.Style)
			if o.Position != nil {
				el.Position = *o.Position
			}
			if o.Bounds != nil {
				el.Bounds = *o.Bounds
			}
		}

	case op.TypeDelete:
		if i := next.indexOf(o.ElementID); i >= 0 {
			next.Elements = append(next.Elements[:i], next.Elements[i+1:]...)
		}

	case op.TypeMove:
		if i := next.indexOf(o.ElementID); i >= 0 {
			el := &next.Elements[i]
			if o.Position != nil {
				el.Position = *o.Position
			}
			if o.Bounds != nil {
				el.Bounds = *o.Bounds
			}
		}

	case op.TypeStyle:
		if i := next.indexOf(o.ElementID); i >= 0 {
			el := &next.Elements[i]
			el.Style = Override(el.Style, o.Style)
		}

	case op.TypeReorder:
		if i := next.indexOf(o.ElementID); i >= 0 && o.ZIndex != nil {
			next.Elements[i].ZIndex = *o.ZIndex
			// Stable: zIndex ties keep their prior relative order.
			sort.SliceStable(next.Elements, func(a, b int) bool {
				return next.Elements[a].ZIndex < next.Elements[b].ZIndex
			})
		}
	}

	next.Version = o.Version
	next.LastModified = o.Timestamp
	return next
}

func elementFromCreate(o op.Operation) Element {
	el := Element{
		ID:    o.ElementID,
		Type:  o.ElementType,
		Data:  o.Data.Clone(),
		Style: o.Style.Clone(),
	}
	if o.Position != nil {
		el.Position = *o.Position
	}
	if o.Bounds != nil {
		el.Bounds = *o.Bounds
	}
	if o.ZIndex != nil {
		el.ZIndex = *o.ZIndex
	}
	return el
}
