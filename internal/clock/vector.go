package clock

// Ordering is the result of comparing two vector clocks.
type Ordering int

const (
	// Concurrent means neither clock dominates the other. Equal clocks
	// also compare Concurrent: identical clocks carry no new information,
	// so callers must fall back to a separate tie-break.
	Concurrent Ordering = iota
	// Before means the first clock is causally before the second.
	Before
	// After means the first clock is causally after the second.
	After
)

// String returns the ordering name for logs and test output.
func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "concurrent"
	}
}

// VectorClock maps a replica id to its operation counter.
//
// A replica's own counter increases by exactly one each time it issues an
// operation; no other entry is ever mutated except by Merge (always to the
// max of the two observed values). Missing entries are treated as zero.
//
// VectorClock values are immutable by convention: every operation returns
// a fresh map. Callers must not mutate a clock after handing it out.
type VectorClock map[string]int64

// New creates a vector clock with all known replicas initialized to zero.
func New(knownReplicas ...string) VectorClock {
	vc := make(VectorClock, len(knownReplicas))
	for _, id := range knownReplicas {
		vc[id] = 0
	}
	return vc
}

// Get returns the counter for a replica, zero if absent.
func (vc VectorClock) Get(replicaID string) int64 {
	return vc[replicaID]
}

// Clone returns a copy of the clock. A nil clock clones to an empty one.
func (vc VectorClock) Clone() VectorClock {
	out := make(VectorClock, len(vc))
	for id, n := range vc {
		out[id] = n
	}
	return out
}

// Increment returns a copy of the clock with the replica's counter advanced
// by one (to one if the replica was absent). The receiver is not mutated.
func (vc VectorClock) Increment(replicaID string) VectorClock {
	out := vc.Clone()
	out[replicaID]++
	return out
}

// Merge returns the pointwise maximum of the two clocks over the union of
// their replica ids. Merge is commutative, associative, and idempotent.
// Neither input is mutated.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	out := vc.Clone()
	for id, n := range other {
		if n > out[id] {
			out[id] = n
		}
	}
	return out
}

// Compare realizes the vector-clock causality test over the union of keys.
//
// If every entry of vc is <= the corresponding entry of other and at least
// one is strictly less, vc is Before other; the symmetric case is After.
// If neither clock dominates - including when the clocks are equal - the
// result is Concurrent.
func (vc VectorClock) Compare(other VectorClock) Ordering {
	var less, greater bool

	for id, n := range vc {
		o := other[id]
		switch {
		case n < o:
			less = true
		case n > o:
			greater = true
		}
	}
	// Entries present only in other count as vc=0 < other's value.
	for id, o := range other {
		if _, seen := vc[id]; !seen && o > 0 {
			less = true
		}
	}

	switch {
	case less && !greater:
		return Before
	case greater && !less:
		return After
	default:
		return Concurrent
	}
}
