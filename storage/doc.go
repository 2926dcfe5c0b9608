// Package storage provides the Postgres-backed repositories: test-case run
// records consulted and updated by the dispatcher, and the connection
// helper shared with the Postgres event stream. An in-memory variant backs
// tests and single-process deployments.
package storage
