// Package op defines the closed set of canvas edit operations and their
// mechanical validation gate.
//
// An Operation is a tagged union over create, update, delete, move, style,
// and reorder. Every operation carries the issuing replica's vector clock
// (taken after incrementing its own entry) and a Lamport stamp. The wall
// timestamp is advisory only - ordering decisions never consult it.
//
// Operations are values: they are created once by the issuing replica,
// transformed into new values (never mutated in place), and discarded
// after materialization. Clone exists so transform steps can derive a
// modified copy without aliasing payload maps.
package op
