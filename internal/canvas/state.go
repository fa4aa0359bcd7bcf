package canvas

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/slate-hq/slate/internal/attr"
	"github.com/slate-hq/slate/internal/op"
)

// Element is one item on the canvas. ZIndex is its rendering order key,
// not a causal ordering.
type Element struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Data     attr.Map    `json:"data,omitempty"`
	Style    attr.Map    `json:"style,omitempty"`
	Position op.Position `json:"position"`
	Bounds   op.Bounds   `json:"bounds"`
	ZIndex   int         `json:"z_index"`
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	out := e
	out.Data = e.Data.Clone()
	out.Style = e.Style.Clone()
	return out
}

// State is the canonical document: an ordered element sequence plus the
// document version and the advisory last-modified time.
type State struct {
	Elements     []Element `json:"elements"`
	Version      int64     `json:"version"`
	LastModified time.Time `json:"last_modified"`
}

// NewState returns an empty document at version zero.
func NewState() State {
	return State{Elements: []Element{}}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Elements = make([]Element, len(s.Elements))
	for i, e := range s.Elements {
		out.Elements[i] = e.Clone()
	}
	return out
}

// Find returns a copy of the element with the given id.
func (s State) Find(elementID string) (Element, bool) {
	for _, e := range s.Elements {
		if e.ID == elementID {
			return e.Clone(), true
		}
	}
	return Element{}, false
}

func (s State) indexOf(elementID string) int {
	for i, e := range s.Elements {
		if e.ID == elementID {
			return i
		}
	}
	return -1
}

// Digest returns the domain-separated content digest of the state,
// covering element identity, payloads, geometry, and zIndex order.
// Version and LastModified are excluded: they advance per accepted
// operation and differ across replicas that saw different op counts on
// the way to the same converged document.
//
// Elements are digested in render order, (zIndex, id) ascending, not in
// slice order. Replicas that created concurrent elements in different
// arrival orders hold permuted slices for the same visible document;
// the digest must agree for them.
func (s State) Digest() (string, error) {
	ordered := make([]Element, len(s.Elements))
	copy(ordered, s.Elements)
	sort.Slice(ordered, func(a, b int) bool {
		if ordered[a].ZIndex != ordered[b].ZIndex {
			return ordered[a].ZIndex < ordered[b].ZIndex
		}
		return ordered[a].ID < ordered[b].ID
	})

	elems := make(attr.List, len(ordered))
	for i, e := range ordered {
		elems[i] = attr.Map{
			"id":       attr.String(e.ID),
			"type":     attr.String(e.Type),
			"data":     orEmpty(e.Data),
			"style":    orEmpty(e.Style),
			"position": positionValue(e.Position),
			"bounds":   boundsValue(e.Bounds),
			"z_index":  attr.Int(int64(e.ZIndex)),
		}
	}
	d, err := attr.Digest(attr.DomainCanvasState, attr.Map{"elements": elems})
	if err != nil {
		return "", fmt.Errorf("canvas digest: %w", err)
	}
	return d, nil
}

// MustDigest is like Digest but panics on error. Use in tests.
func (s State) MustDigest() string {
	d, err := s.Digest()
	if err != nil {
		panic(err)
	}
	return d
}

func orEmpty(m attr.Map) attr.Map {
	if m == nil {
		return attr.Map{}
	}
	return m
}

func positionValue(p op.Position) attr.Map {
	return attr.Map{"x": attr.Float(p.X), "y": attr.Float(p.Y)}
}

func boundsValue(b op.Bounds) attr.Map {
	return attr.Map{
		"x":      attr.Float(b.X),
		"y":      attr.Float(b.Y),
		"width":  attr.Float(b.Width),
		"height": attr.Float(b.Height),
	}
}

// String summarizes the state for logs.
func (s State) String() string {
	return "canvas{v" + strconv.FormatInt(s.Version, 10) +
		", " + strconv.Itoa(len(s.Elements)) + " elements}"
}
