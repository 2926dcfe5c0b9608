// Package handle describes the typed ports through which data enters and
// leaves flow nodes, and the adapter registry that decides which handle
// kinds may be connected and how values are coerced along an edge.
//
// A Handle carries a semantic Kind plus UI hints and, for inputs, edge
// acceptance rules. The AdapterRegistry holds a matrix of pure conversion
// functions keyed by (source Kind, target Kind); the graph loader consults
// it to validate connections and the executor applies it during post-layer
// value propagation.
package handle
