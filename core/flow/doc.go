// Package flow ingests raw node/edge graph descriptions and produces the
// validated in-memory multigraph the compiler and executor operate on.
//
// Loading happens in two phases: the raw JSON request is checked against an
// embedded JSON schema, then the loader resolves node types through the
// registry, strips -index<N> handle disambiguators, verifies that every
// edge references existing, kind-compatible handles, and enforces each
// input handle's edge acceptance rules.
package flow
