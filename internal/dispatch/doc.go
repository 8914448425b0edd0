// Package dispatch creates the batches of tasks that make up a research
// cycle and wires the dependency edges between them.
//
// A full cycle is four phases run in order:
//
//	scan (one task per source) -> extraction -> grading -> synthesis
//
// Each phase's tasks depend on the previous phase's, so workers that honor
// dependency gating process a cycle front to back. Verification and
// exploration tasks are dispatched on request and are not part of a cycle.
//
// The cycle counter lives in State, which the caller loads, hands to New and
// persists again after DispatchFullCycle. The Dispatcher never touches
// state.json on its own.
package dispatch
