package events

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// BeginningID is the cursor meaning "from the start of the stream". An
// empty since_id normalizes to this marker.
const BeginningID = "0"

// ErrInvalidCursor indicates a since_id that the stream cannot interpret.
// Bridges recover locally by resetting their cursor to BeginningID.
var ErrInvalidCursor = fmt.Errorf("invalid stream id")

// StreamKey returns the stream key for a user's event stream.
func StreamKey(userID string) string {
	return "user_events:" + userID
}

// Entry is one raw record read from a stream: the monotone id and the
// JSON-encoded event payload.
type Entry struct {
	ID      string
	Payload []byte
}

// Stream is an append-only, per-user ordered event log. Appends produce
// monotone ids usable as resumption cursors; reads after a cursor are
// at-least-once across reconnects and totally ordered within one user's
// stream.
type Stream interface {
	// Append adds a payload to the user's stream and returns its id.
	Append(ctx context.Context, userID string, payload []byte) (string, error)

	// Read returns up to count entries with ids strictly greater than
	// sinceID, blocking up to the block duration when the stream has no
	// newer entries. A timeout returns an empty slice and nil error.
	// An uninterpretable sinceID fails with ErrInvalidCursor.
	Read(ctx context.Context, userID, sinceID string, count int, block time.Duration) ([]Entry, error)
}

// parseCursor interprets a cursor as a sequence number. BeginningID (and
// the empty string) mean zero; anything non-numeric is ErrInvalidCursor.
func parseCursor(sinceID string) (uint64, error) {
	if sinceID == "" || sinceID == BeginningID {
		return 0, nil
	}
	sequence, err := strconv.ParseUint(sinceID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, sinceID)
	}
	return sequence, nil
}

// formatCursor renders a sequence number as a cursor.
func formatCursor(sequence uint64) string {
	return strconv.FormatUint(sequence, 10)
}
