// Package harness provides conformance testing for the canvas transform
// pipeline.
//
// The harness loads YAML scenarios describing a multiset of operations,
// folds them through the engine in one or more delivery orders, and
// validates convergence plus expected final state.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	seed:
//	  - id: el-1
//	    type: rect
//	operations:
//	  - id: d
//	    type: delete
//	    element: el-1
//	    user: A
//	    vector_clock: {A: 2}
//	    lamport: 5
//	orders:            # optional; defaults to every permutation
//	  - [d, s]
//	expect:
//	  element_count: 0
//	  elements:
//	    - id: el-2
//	      x: 115
//	      y: 113
//	  malformed: [bad-op]
//
// When orders is omitted, every permutation of the operation multiset is
// executed and the final state digests must agree - the convergence
// property as an executable check. Explicit orders exist for behaviors
// that are deliberately order-dependent, such as spatial nudging.
//
// # Deterministic Testing
//
// Scenarios carry explicit vector clocks and Lamport stamps, and the
// runner assigns fixed wall timestamps, so the same scenario file always
// produces the same resolved trace. Golden snapshots (sebdah/goldie)
// serialize the trace with canonical JSON for byte-stable comparison.
package harness
