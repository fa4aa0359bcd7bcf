package op

import "fmt"

// Validate checks the mechanical well-formedness gate. It verifies field
// presence only - causal consistency is the transform engine's concern.
//
// Returns nil for a well-formed operation, otherwise an error naming the
// first missing field.
func (o Operation) Validate() error {
	switch {
	case o.ID == "":
		return fmt.Errorf("operation missing id")
	case o.ElementID == "":
		return fmt.Errorf("operation %s missing element id", o.ID)
	case o.UserID == "":
		return fmt.Errorf("operation %s missing user id", o.ID)
	case o.Timestamp.IsZero():
		return fmt.Errorf("operation %s missing timestamp", o.ID)
	case len(o.VectorClock) == 0:
		return fmt.Errorf("operation %s missing vector clock", o.ID)
	}

	if !knownType(o.Type) {
		return fmt.Errorf("operation %s has unknown type %q", o.ID, o.Type)
	}

	// Type-specific mandatory payload fields.
	switch o.Type {
	case TypeCreate:
		if o.ElementType == "" {
			return fmt.Errorf("create operation %s missing element type", o.ID)
		}
	case TypeMove:
		if o.Position == nil {
			return fmt.Errorf("move operation %s missing position", o.ID)
		}
	case TypeStyle:
		if o.Style == nil {
			return fmt.Errorf("style operation %s missing style map", o.ID)
		}
	case TypeReorder:
		if o.ZIndex == nil {
			return fmt.Errorf("reorder operation %s missing z-index", o.ID)
		}
	}

	// An operation always advances its issuer's own clock entry before it
	// is considered valid.
	if o.VectorClock.Get(o.UserID) < 1 {
		return fmt.Errorf("operation %s vector clock has no entry for issuer %s", o.ID, o.UserID)
	}

	return nil
}

// IsWellFormed reports whether the operation passes Validate.
func (o Operation) IsWellFormed() bool {
	return o.Validate() == nil
}

func knownType(t Type) bool {
	for _, k := range KnownTypes {
		if t == k {
			return true
		}
	}
	return false
}
