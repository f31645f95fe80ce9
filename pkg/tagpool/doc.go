// Package tagpool implements a tagged, elastic worker pool: a bounded
// population of workers partitioned into named capacity groups, plus a
// generic overflow group that any named group may borrow from.
//
// The package is organized around four pieces: SlotLedger tracks
// reserved/in-use/borrowed slot counts per tag and makes the admission
// decision; Executor is the narrow interface the pool uses to actually
// run a submitted function; ResultPump drains completions from the
// Executor and routes them to a callback or the result queue; Pool
// wires the three together and exposes the public API (Put, Ingest,
// Adjust, Join, Stop, iteration).
package tagpool
