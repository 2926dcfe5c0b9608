package events

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// EventRow is the persisted form of one stream entry. The BIGSERIAL
// primary key provides the monotone, globally comparable cursor.
type EventRow struct {
	bun.BaseModel `bun:"table:flow_events"`

	ID        int64     `bun:"id,pk,autoincrement"`
	StreamKey string    `bun:"stream_key,notnull"`
	Payload   []byte    `bun:"payload,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// postgresPollInterval bounds how often a blocked Read re-queries the
// table while waiting for new entries.
const postgresPollInterval = 250 * time.Millisecond

// PostgresStream is a Stream backed by a shared Postgres table, for
// deployments where multiple worker processes publish and one API process
// serves the bridges. Blocking reads are implemented as bounded polling.
type PostgresStream struct {
	db *bun.DB
}

var _ Stream = (*PostgresStream)(nil)

// NewPostgresStream creates a stream over an existing bun connection.
func NewPostgresStream(db *bun.DB) *PostgresStream {
	return &PostgresStream{db: db}
}

// CreateTable creates the flow_events table if it does not exist. Called
// once at process start.
func (stream *PostgresStream) CreateTable(ctx context.Context) error {
	_, err := stream.db.NewCreateTable().
		Model((*EventRow)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Append inserts a payload and returns the assigned id as the cursor.
func (stream *PostgresStream) Append(ctx context.Context, userID string, payload []byte) (string, error) {
	row := &EventRow{
		StreamKey: StreamKey(userID),
		Payload:   payload,
	}

	if _, err := stream.db.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		return "", err
	}
	return formatCursor(uint64(row.ID)), nil
}

// Read returns up to count entries newer than sinceID, polling up to the
// block duration when none are available.
func (stream *PostgresStream) Read(ctx context.Context, userID, sinceID string, count int, block time.Duration) ([]Entry, error) {
	cursor, err := parseCursor(sinceID)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 1
	}

	deadline := time.Now().Add(block)

	for {
		var rows []EventRow
		err := stream.db.NewSelect().
			Model(&rows).
			Where("stream_key = ?", StreamKey(userID)).
			Where("id > ?", int64(cursor)).
			Order("id ASC").
			Limit(count).
			Scan(ctx)
		if err != nil {
			return nil, err
		}

		if len(rows) > 0 {
			entries := make([]Entry, 0, len(rows))
			for _, row := range rows {
				entries = append(entries, Entry{ID: formatCursor(uint64(row.ID)), Payload: row.Payload})
			}
			return entries, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		interval := postgresPollInterval
		if remaining < interval {
			interval = remaining
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}
