// Package nodes provides the builtin node library: chat endpoints, value
// plumbing (identity, template), branching (condition, router), and
// side-effecting nodes (llm, webfetch). Builtin returns a registry with all
// of them registered.
package nodes
