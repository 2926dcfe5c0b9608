// Package admission throttles heavy per-user work. Each user holds at most
// a configured number of concurrently running dispatcher tasks; an acquire
// above that budget is rejected and the dispatcher re-queues itself with a
// jittered backoff rather than blocking.
package admission
