// Package dispatch provides the engine's entry points: compile-only
// previews, direct flow runs, and admission-controlled test-case runs with
// soft and hard time limits. The terminator owns end-of-task cleanup (slot
// release, cancellation marking) and guarantees it happens exactly once.
package dispatch
