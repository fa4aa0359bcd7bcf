package harness

import (
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/slate-hq/slate/internal/attr"
	"github.com/slate-hq/slate/internal/canvas"
	"github.com/slate-hq/slate/internal/op"
)

// traceSnapshot flattens a scenario result into a canonical attribute
// map. Only the canonical order's resolved operations and final state
// are captured; vector clocks and digests are deliberately omitted so
// golden files stay human-reviewable.
func traceSnapshot(s *Scenario, result *Result) attr.Map {
	orders := make(attr.List, len(result.Orders))
	for i, or := range result.Orders {
		ids := make(attr.List, len(or.Order))
		for j, id := range or.Order {
			ids[j] = attr.String(id)
		}
		orders[i] = ids
	}

	var resolved attr.List
	var elements attr.List
	if len(result.Orders) > 0 {
		canonical := result.Orders[0]
		resolved = make(attr.List, len(canonical.Resolved))
		for i, o := range canonical.Resolved {
			resolved[i] = resolvedEntry(o)
		}
		elements = renderOrderEntries(canonical.State)
	}

	return attr.Map{
		"converged": attr.Bool(result.Converged),
		"elements":  elements,
		"orders":    orders,
		"resolved":  resolved,
		"scenario":  attr.String(s.Name),
	}
}

func resolvedEntry(o op.Operation) attr.Map {
	return attr.Map{
		"element": attr.String(o.ElementID),
		"id":      attr.String(o.ID),
		"lamport": attr.Int(o.Lamport),
		"type":    attr.String(string(o.Type)),
		"user":    attr.String(o.UserID),
	}
}

// renderOrderEntries lists the final elements in render order so the
// golden file is stable across delivery permutations.
func renderOrderEntries(state canvas.State) attr.List {
	elems := make([]canvas.Element, len(state.Elements))
	copy(elems, state.Elements)
	sort.SliceStable(elems, func(i, j int) bool {
		if elems[i].ZIndex != elems[j].ZIndex {
			return elems[i].ZIndex < elems[j].ZIndex
		}
		return elems[i].ID < elems[j].ID
	})

	out := make(attr.List, len(elems))
	for i, e := range elems {
		entry := attr.Map{
			"id":   attr.String(e.ID),
			"type": attr.String(e.Type),
			"x":    attr.Float(e.Position.X),
			"y":    attr.Float(e.Position.Y),
			"z":    attr.Int(int64(e.ZIndex)),
		}
		if len(e.Data) > 0 {
			entry["data"] = e.Data.Clone()
		}
		if len(e.Style) > 0 {
			entry["style"] = e.Style.Clone()
		}
		out[i] = entry
	}
	return out
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		return nil, err
	}

	trace, err := attr.MarshalCanonical(traceSnapshot(s, result))
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, trace)
	return result, nil
}
