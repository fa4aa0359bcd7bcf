package harness

import (
	"fmt"
	"time"

	"github.com/slate-hq/slate/internal/attr"
	"github.com/slate-hq/slate/internal/canvas"
	"github.com/slate-hq/slate/internal/engine"
	"github.com/slate-hq/slate/internal/op"
)

// scenarioEpoch anchors advisory timestamps so traces are reproducible.
var scenarioEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// maxPermutedOps caps implicit permutation expansion: 6! = 720 runs is
// the largest multiset still worth folding exhaustively in a unit test.
const maxPermutedOps = 6

// OrderResult is the outcome of one delivery order.
type OrderResult struct {
	Order    []string
	Resolved []op.Operation
	State    canvas.State
	Digest   string
}

// Result is the outcome of a scenario execution across all orders.
type Result struct {
	// Pass is true when every expectation (including convergence)
	// held.
	Pass bool

	// Converged reports whether all executed orders reached the same
	// state digest.
	Converged bool

	// Orders holds the per-order outcomes; Orders[0] is the canonical
	// order used for state expectations and golden traces.
	Orders []OrderResult

	// Errors lists expectation failures. Empty when Pass is true.
	Errors []string
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes a scenario: every delivery order is folded through a
// fresh engine over the seeded canvas, then expectations are checked.
func Run(s *Scenario) (*Result, error) {
	ops := make(map[string]op.Operation, len(s.Operations))
	ids := make([]string, 0, len(s.Operations))
	for i, step := range s.Operations {
		o, err := step.buildOperation(i)
		if err != nil {
			return nil, err
		}
		ops[o.ID] = o
		ids = append(ids, o.ID)
	}

	orders := s.Orders
	if len(orders) == 0 {
		if len(ids) > maxPermutedOps {
			return nil, fmt.Errorf("scenario %s: %d operations exceed the permutation cap (%d); list orders explicitly",
				s.Name, len(ids), maxPermutedOps)
		}
		orders = permutations(ids)
	}

	expectMalformed := make(map[string]bool)
	if s.Expect != nil {
		for _, id := range s.Expect.Malformed {
			expectMalformed[id] = true
		}
	}

	result := &Result{Pass: true}
	for _, order := range orders {
		or, err := runOrder(s, ops, order, expectMalformed, result)
		if err != nil {
			return nil, err
		}
		result.Orders = append(result.Orders, or)
	}

	result.Converged = true
	for _, or := range result.Orders[1:] {
		if or.Digest != result.Orders[0].Digest {
			result.Converged = false
			break
		}
	}

	checkExpectations(s, result)
	return result, nil
}

func runOrder(s *Scenario, ops map[string]op.Operation, order []string, expectMalformed map[string]bool, result *Result) (OrderResult, error) {
	eng := engine.New()
	state := s.seedState()

	or := OrderResult{Order: order}
	var applied []op.Operation

	for _, id := range order {
		o := ops[id]
		resolved, err := eng.Transform(o, applied)
		if err != nil {
			if expectMalformed[id] && engine.IsMalformedError(err) {
				continue
			}
			return or, fmt.Errorf("scenario %s, order %v: transform %s: %w", s.Name, order, id, err)
		}
		if expectMalformed[id] {
			result.addError("order %v: operation %s was accepted but expected malformed", order, id)
		}
		state = canvas.Apply(state, resolved)
		applied = append(applied, o)
		or.Resolved = append(or.Resolved, resolved)
	}

	or.State = state
	digest, err := state.Digest()
	if err != nil {
		return or, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	or.Digest = digest
	return or, nil
}

func checkExpectations(s *Scenario, result *Result) {
	wantConverged := true
	if s.Expect != nil && s.Expect.Converged != nil {
		wantConverged = *s.Expect.Converged
	}
	if result.Converged != wantConverged {
		result.addError("convergence: got %v, want %v", result.Converged, wantConverged)
	}

	if s.Expect == nil || len(result.Orders) == 0 {
		return
	}
	final := result.Orders[0].State

	if s.Expect.ElementCount != nil && len(final.Elements) != *s.Expect.ElementCount {
		result.addError("element count: got %d, want %d", len(final.Elements), *s.Expect.ElementCount)
	}

	for _, want := range s.Expect.Elements {
		checkElement(want, final, result)
	}
}

func checkElement(want ElementExpect, final canvas.State, result *Result) {
	el, ok := final.Find(want.ID)
	if !ok {
		result.addError("element %s: not present in final state", want.ID)
		return
	}
	if want.Type != nil && el.Type != *want.Type {
		result.addError("element %s: type got %q, want %q", want.ID, el.Type, *want.Type)
	}
	if want.X != nil && el.Position.X != *want.X {
		result.addError("element %s: x got %v, want %v", want.ID, el.Position.X, *want.X)
	}
	if want.Y != nil && el.Position.Y != *want.Y {
		result.addError("element %s: y got %v, want %v", want.ID, el.Position.Y, *want.Y)
	}
	if want.ZIndex != nil && el.ZIndex != *want.ZIndex {
		result.addError("element %s: zIndex got %d, want %d", want.ID, el.ZIndex, *want.ZIndex)
	}
	checkAttrSubset(want.ID, "data", want.Data, el.Data, result)
	checkAttrSubset(want.ID, "style", want.Style, el.Style, result)
}

// checkAttrSubset validates that every expected key is present with the
// expected value; extra keys in the actual map are ignored.
func checkAttrSubset(elementID, field string, want map[string]any, got attr.Map, result *Result) {
	if len(want) == 0 {
		return
	}
	expected, err := toAttrMap(want)
	if err != nil {
		result.addError("element %s: %s expectation: %v", elementID, field, err)
		return
	}
	for k, v := range expected {
		actual, ok := got[k]
		if !ok {
			result.addError("element %s: %s[%q] missing", elementID, field, k)
			continue
		}
		if !attr.Equal(v, actual) {
			result.addError("element %s: %s[%q] mismatch", elementID, field, k)
		}
	}
}
