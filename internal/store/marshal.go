package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slate-hq/slate/internal/canvas"
	"github.com/slate-hq/slate/internal/clock"
	"github.com/slate-hq/slate/internal/op"
)

// marshalOperation serializes the full operation to JSON TEXT.
// HTML escaping is disabled and map keys sort alphabetically, so the
// same operation always produces the same stored text.
func marshalOperation(o op.Operation) (string, error) {
	return encodeJSON(o, "marshal operation")
}

func unmarshalOperation(data string) (op.Operation, error) {
	var o op.Operation
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return op.Operation{}, fmt.Errorf("unmarshal operation: %w", err)
	}
	return o, nil
}

// marshalClock serializes a vector clock to JSON TEXT with sorted keys.
func marshalClock(vc clock.VectorClock) (string, error) {
	if vc == nil {
		return "{}", nil
	}
	return encodeJSON(vc, "marshal clock")
}

func unmarshalClock(data string) (clock.VectorClock, error) {
	if data == "" || data == "{}" {
		return clock.VectorClock{}, nil
	}
	var vc clock.VectorClock
	if err := json.Unmarshal([]byte(data), &vc); err != nil {
		return nil, fmt.Errorf("unmarshal clock: %w", err)
	}
	return vc, nil
}

// marshalState serializes the materialized canvas state to JSON TEXT.
// Snapshot equality checks use the state digest, not this text.
func marshalState(s canvas.State) (string, error) {
	return encodeJSON(s, "marshal state")
}

func unmarshalState(data string) (canvas.State, error) {
	var s canvas.State
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return canvas.State{}, fmt.Errorf("unmarshal state: %w", err)
	}
	if s.Elements == nil {
		s.Elements = []canvas.Element{}
	}
	return s, nil
}

func encodeJSON(v any, what string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("%s: %w", what, err)
	}
	// Encoder adds a trailing newline, remove it.
	return strings.TrimSpace(buf.String()), nil
}
