package canvas

import "github.com/slate-hq/slate/internal/attr"

// Override merges two payload maps with the overriding map winning
// field-by-field. This is the documented replacement for the source
// material's object-spread idiom: shallow, key-level, last-writer-per-key.
// It is deliberately NOT a deep merge - a nested map in override replaces
// the base's nested map wholesale.
//
// Neither input is mutated. A nil override returns a clone of base;
// a nil base returns a clone of override.
func Override(base, override attr.Map) attr.Map {
	if override == nil {
		return base.Clone()
	}
	if base == nil {
		return override.Clone()
	}
	out := base.Clone()
	for k, v := range override.Clone() {
		out[k] = v
	}
	return out
}
