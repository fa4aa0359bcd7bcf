package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slate-hq/slate/internal/attr"
	"github.com/slate-hq/slate/internal/canvas"
	"github.com/slate-hq/slate/internal/clock"
	"github.com/slate-hq/slate/internal/op"
)

// Scenario defines a conformance test scenario: a seeded canvas, a
// multiset of operations, the delivery orders to exercise, and the
// expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files use it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed lists elements present before any operation is delivered.
	Seed []SeedElement `yaml:"seed,omitempty"`

	// Operations is the delivered multiset. Clocks and stamps are
	// explicit so the file fully determines the causal structure.
	Operations []OperationStep `yaml:"operations"`

	// Orders lists delivery orders as operation id sequences. Empty
	// means every permutation of the multiset.
	Orders [][]string `yaml:"orders,omitempty"`

	// Expect validates the outcome. Nil means convergence only.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// SeedElement is an element present on the canvas at scenario start.
type SeedElement struct {
	ID     string  `yaml:"id"`
	Type   string  `yaml:"type"`
	X      float64 `yaml:"x,omitempty"`
	Y      float64 `yaml:"y,omitempty"`
	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`
	ZIndex int     `yaml:"z_index,omitempty"`
}

// OperationStep is one operation of the delivered multiset.
type OperationStep struct {
	ID          string           `yaml:"id"`
	Type        string           `yaml:"type"`
	Element     string           `yaml:"element"`
	User        string           `yaml:"user"`
	ElementType string           `yaml:"element_type,omitempty"`
	Data        map[string]any   `yaml:"data,omitempty"`
	Style       map[string]any   `yaml:"style,omitempty"`
	Position    *PointSpec       `yaml:"position,omitempty"`
	Bounds      *BoundsSpec      `yaml:"bounds,omitempty"`
	ZIndex      *int             `yaml:"z_index,omitempty"`
	VectorClock map[string]int64 `yaml:"vector_clock"`
	Lamport     int64            `yaml:"lamport"`
}

// PointSpec is a YAML position.
type PointSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// BoundsSpec is a YAML bounding box.
type BoundsSpec struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// ExpectClause validates the scenario outcome.
type ExpectClause struct {
	// Converged overrides the default expectation that all executed
	// orders reach the same digest. Set false for deliberately
	// order-dependent scenarios.
	Converged *bool `yaml:"converged,omitempty"`

	// ElementCount is the expected number of surviving elements.
	ElementCount *int `yaml:"element_count,omitempty"`

	// Elements are subset matches against the first order's final
	// state: only specified fields are validated.
	Elements []ElementExpect `yaml:"elements,omitempty"`

	// Malformed lists operation ids expected to be rejected by the
	// well-formedness gate instead of being folded.
	Malformed []string `yaml:"malformed,omitempty"`
}

// ElementExpect is a subset match against one final element.
type ElementExpect struct {
	ID     string         `yaml:"id"`
	Type   *string        `yaml:"type,omitempty"`
	X      *float64       `yaml:"x,omitempty"`
	Y      *float64       `yaml:"y,omitempty"`
	ZIndex *int           `yaml:"z_index,omitempty"`
	Data   map[string]any `yaml:"data,omitempty"`
	Style  map[string]any `yaml:"style,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently weakening a
// scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Operations) == 0 {
		return fmt.Errorf("operations list is required and must be non-empty")
	}

	ids := make(map[string]bool, len(s.Operations))
	for i, step := range s.Operations {
		if step.ID == "" {
			return fmt.Errorf("operations[%d]: id is required", i)
		}
		if ids[step.ID] {
			return fmt.Errorf("operations[%d]: duplicate id %q", i, step.ID)
		}
		ids[step.ID] = true
	}

	for i, order := range s.Orders {
		if len(order) != len(s.Operations) {
			return fmt.Errorf("orders[%d]: must list all %d operation ids", i, len(s.Operations))
		}
		seen := make(map[string]bool, len(order))
		for _, id := range order {
			if !ids[id] {
				return fmt.Errorf("orders[%d]: unknown operation id %q", i, id)
			}
			if seen[id] {
				return fmt.Errorf("orders[%d]: duplicate operation id %q", i, id)
			}
			seen[id] = true
		}
	}
	return nil
}

// seedState builds the canvas state the scenario starts from.
func (s *Scenario) seedState() canvas.State {
	state := canvas.NewState()
	for _, seed := range s.Seed {
		state.Elements = append(state.Elements, canvas.Element{
			ID:       seed.ID,
			Type:     seed.Type,
			Position: op.Position{X: seed.X, Y: seed.Y},
			Bounds:   op.Bounds{X: seed.X, Y: seed.Y, Width: seed.Width, Height: seed.Height},
			ZIndex:   seed.ZIndex,
		})
	}
	return state
}

// buildOperation converts a YAML step to a stamped operation. seq
// fixes the advisory timestamp and version so traces are reproducible.
func (step OperationStep) buildOperation(seq int) (op.Operation, error) {
	data, err := toAttrMap(step.Data)
	if err != nil {
		return op.Operation{}, fmt.Errorf("operation %s: data: %w", step.ID, err)
	}
	style, err := toAttrMap(step.Style)
	if err != nil {
		return op.Operation{}, fmt.Errorf("operation %s: style: %w", step.ID, err)
	}

	o := op.Operation{
		ID:          step.ID,
		Type:        op.Type(step.Type),
		ElementID:   step.Element,
		UserID:      step.User,
		ElementType: step.ElementType,
		Data:        data,
		Style:       style,
		Timestamp:   scenarioEpoch.Add(time.Duration(seq) * time.Second),
		Version:     int64(seq) + 1,
		VectorClock: clock.VectorClock(step.VectorClock).Clone(),
		Lamport:     step.Lamport,
	}
	if step.Position != nil {
		o.Position = &op.Position{X: step.Position.X, Y: step.Position.Y}
	}
	if step.Bounds != nil {
		o.Bounds = &op.Bounds{X: step.Bounds.X, Y: step.Bounds.Y, Width: step.Bounds.Width, Height: step.Bounds.Height}
	}
	if step.ZIndex != nil {
		z := *step.ZIndex
		o.ZIndex = &z
	}
	return o, nil
}

// toAttrMap converts decoded YAML values to the attribute model.
func toAttrMap(m map[string]any) (attr.Map, error) {
	if m == nil {
		return nil, nil
	}
	out := make(attr.Map, len(m))
	for k, v := range m {
		val, err := toAttrValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func toAttrValue(v any) (attr.Value, error) {
	switch val := v.(type) {
	case string:
		return attr.String(val), nil
	case int:
		return attr.Int(int64(val)), nil
	case int64:
		return attr.Int(val), nil
	case float64:
		return attr.Float(val), nil
	case bool:
		return attr.Bool(val), nil
	case []any:
		list := make(attr.List, len(val))
		for i, elem := range val {
			conv, err := toAttrValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = conv
		}
		return list, nil
	case map[string]any:
		return toAttrMap(val)
	case nil:
		return nil, fmt.Errorf("null values are not representable")
	default:
		return nil, fmt.Errorf("unsupported YAML type %T", v)
	}
}

// permutations returns every ordering of ids, sorted-first so the
// canonical (golden) order is stable regardless of file order.
func permutations(ids []string) [][]string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	var out [][]string
	var recurse func(prefix, rest []string)
	recurse = func(prefix, rest []string) {
		if len(rest) == 0 {
			order := make([]string, len(prefix))
			copy(order, prefix)
			out = append(out, order)
			return
		}
		for i := range rest {
			next := make([]string, 0, len(rest)-1)
			next = append(next, rest[:i]...)
			next = append(next, rest[i+1:]...)
			recurse(append(prefix, rest[i]), next)
		}
	}
	recurse(nil, sorted)
	return out
}
