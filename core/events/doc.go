// Package events defines the execution lifecycle events and the per-user
// ordered streams they are published onto.
//
// A Stream is an append-only log keyed by user_events:{user_id}; each
// append yields a monotone id that doubles as a resumption cursor for the
// SSE and WebSocket bridges. Delivery is at-least-once across reader
// reconnects. Two backends are provided: MemoryStream for tests and
// single-process deployments, and PostgresStream for multi-process workers
// sharing a database.
package events
