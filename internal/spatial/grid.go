// Package spatial provides a uniform-grid index over element bounding
// boxes. It answers "which elements are candidates for spatial conflict"
// in O(cells touched): false positives are expected and filtered by the
// caller's exact distance check, false negatives never occur for
// axis-aligned boxes overlapping the queried cell span.
package spatial

import (
	"math"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/slate-hq/slate/internal/op"
)

// DefaultCellSize is the grid cell edge length in canvas units.
const DefaultCellSize = 100.0

type cellKey struct {
	x, y int
}

// Grid buckets element ids by the cells their bounding boxes span.
//
// Thread-safety: writes (Insert/Remove) must come from the document's
// single apply goroutine; QueryNear may run concurrently with that writer
// under the read lock. Candidate sets read during a concurrent write are
// eventually consistent, which is acceptable because spatial nudging is a
// heuristic, not a safety property.
type Grid struct {
	cellSize float64

	mu    sync.RWMutex
	cells map[cellKey]mapset.Set[string]
	byID  map[string][]cellKey
}

// NewGrid creates a grid index. A zero or negative cell size falls back
// to DefaultCellSize.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey]mapset.Set[string]),
		byID:     make(map[string][]cellKey),
	}
}

// cellSpan returns every cell key the bounds overlap.
func (g *Grid) cellSpan(b op.Bounds) []cellKey {
	minX := int(math.Floor(b.X / g.cellSize))
	minY := int(math.Floor(b.Y / g.cellSize))
	maxX := int(math.Floor((b.X + b.Width) / g.cellSize))
	maxY := int(math.Floor((b.Y + b.Height) / g.cellSize))

	keys := make([]cellKey, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			keys = append(keys, cellKey{x, y})
		}
	}
	return keys
}

// Insert registers the element under every cell its bounds span,
// replacing any prior registration for the same id.
func (g *Grid) Insert(elementID string, bounds op.Bounds) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeLocked(elementID)

	keys := g.cellSpan(bounds)
	for _, k := range keys {
		bucket, ok := g.cells[k]
		if !ok {
			bucket = mapset.NewThreadUnsafeSet[string]()
			g.cells[k] = bucket
		}
		bucket.Add(elementID)
	}
	g.byID[elementID] = keys
}

// Remove unregisters the element from every cell it was inserted under.
// Removing an unknown id is a no-op.
func (g *Grid) Remove(elementID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(elementID)
}

func (g *Grid) removeLocked(elementID string) {
	for _, k := range g.byID[elementID] {
		if bucket, ok := g.cells[k]; ok {
			bucket.Remove(elementID)
			if bucket.Cardinality() == 0 {
				delete(g.cells, k)
			}
		}
	}
	delete(g.byID, elementID)
}

// QueryNear unions the buckets of every cell the query bounds overlap.
// The result is a fresh set owned by the caller.
func (g *Grid) QueryNear(bounds op.Bounds) mapset.Set[string] {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := mapset.NewThreadUnsafeSet[string]()
	for _, k := range g.cellSpan(bounds) {
		if bucket, ok := g.cells[k]; ok {
			bucket.Each(func(id string) bool {
				out.Add(id)
				return false
			})
		}
	}
	return out
}

// Len returns the number of registered elements.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}
