// Package node defines the contract between the flow engine and concrete
// node implementations: the immutable Spec describing a node's ports and
// parameters, the mutable per-run Data, the Node and ToolNode interfaces,
// the type-name Registry, and the runner that performs input extraction and
// output packaging around Process.
package node
