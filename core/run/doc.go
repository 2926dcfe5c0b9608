// Package run executes compiled plans. The executor walks a plan layer by
// layer, runs each layer's nodes concurrently on a bounded worker pool,
// waits on a barrier, and then performs a single-threaded propagation step
// that moves values across edges, applies handle adapters and edge
// conditions, and resolves router branch selection. Three scopes are
// supported: full runs, partial runs that re-execute stale ancestors before
// continuing from a node, and single-node runs.
package run
