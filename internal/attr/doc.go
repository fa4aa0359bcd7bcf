// Package attr provides the constrained value types for opaque element
// payloads (the data and style maps carried by canvas operations).
//
// Payload content is deliberately opaque to the transform engine: it is
// merged field-by-field under deterministic override rules, never inspected
// character-by-character. The value set is therefore small and closed -
// String, Int, Float, Bool, List, and Map - rather than an open any.
//
// This package contains value definitions, canonical serialization, and
// content digests only. Every other internal package may import attr; attr
// imports nothing internal, keeping it the foundational layer.
//
// Canonical serialization (sorted keys, NFC-normalized strings, no HTML
// escaping) exists so that two replicas holding deep-equal state produce
// byte-identical bytes, and therefore identical digests - the convergence
// check used by replay and the scenario harness.
package attr
