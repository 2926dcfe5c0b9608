// Package plan compiles a validated flow graph into a layered execution
// plan using a Kahn-style layered topological sort. Each layer holds nodes
// with no dependencies among them; the executor runs layers in order with
// full parallelism inside a layer. Compilation is deterministic: the same
// graph always yields the same plan.
package plan
