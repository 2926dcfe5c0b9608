package events

import (
	"context"
	"sync"
	"time"
)

// MemoryStream is an in-process Stream for tests and single-process
// deployments. A single global sequence counter makes ids comparable
// across users; entries are retained for the lifetime of the process.
type MemoryStream struct {
	mu       sync.Mutex
	sequence uint64
	logs     map[string][]memoryEntry
	waiters  map[string]chan struct{}
}

type memoryEntry struct {
	sequence uint64
	payload  []byte
}

var _ Stream = (*MemoryStream)(nil)

// NewMemoryStream creates an empty in-memory stream.
func NewMemoryStream() *MemoryStream {
	return &MemoryStream{
		logs:    make(map[string][]memoryEntry),
		waiters: make(map[string]chan struct{}),
	}
}

// Append adds a payload to the user's log and wakes blocked readers.
func (stream *MemoryStream) Append(_ context.Context, userID string, payload []byte) (string, error) {
	stream.mu.Lock()
	defer stream.mu.Unlock()

	stream.sequence++
	stored := make([]byte, len(payload))
	copy(stored, payload)

	key := StreamKey(userID)
	stream.logs[key] = append(stream.logs[key], memoryEntry{sequence: stream.sequence, payload: stored})

	if waiter, exists := stream.waiters[key]; exists {
		close(waiter)
		delete(stream.waiters, key)
	}

	return formatCursor(stream.sequence), nil
}

// Read returns up to count entries newer than sinceID, blocking up to the
// block duration for new entries when none are immediately available.
func (stream *MemoryStream) Read(ctx context.Context, userID, sinceID string, count int, block time.Duration) ([]Entry, error) {
	cursor, err := parseCursor(sinceID)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 1
	}

	deadline := time.Now().Add(block)

	for {
		entries, waiter := stream.collect(userID, cursor, count)
		if len(entries) > 0 {
			return entries, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-waiter:
			timer.Stop()
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// collect gathers matching entries under the lock, registering a waiter
// channel for the caller to block on when nothing matched.
func (stream *MemoryStream) collect(userID string, cursor uint64, count int) ([]Entry, chan struct{}) {
	stream.mu.Lock()
	defer stream.mu.Unlock()

	key := StreamKey(userID)
	entries := make([]Entry, 0, count)
	for _, stored := range stream.logs[key] {
		if stored.sequence <= cursor {
			continue
		}
		entries = append(entries, Entry{ID: formatCursor(stored.sequence), Payload: stored.payload})
		if len(entries) == count {
			break
		}
	}

	if len(entries) > 0 {
		return entries, nil
	}

	waiter, exists := stream.waiters[key]
	if !exists {
		waiter = make(chan struct{})
		stream.waiters[key] = waiter
	}
	return nil, waiter
}
