package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sink is the write side of the event pipeline as seen by the executor and
// dispatcher. Publisher is the production implementation; tests substitute
// recording fakes.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Nop is a Sink that discards every event.
type Nop struct{}

var _ Sink = Nop{}

// Publish discards the event.
func (Nop) Publish(context.Context, Event) error { return nil }

// Publisher appends lifecycle events to a user's ordered stream. It is
// bound to one user and one dispatcher task at construction and stamps
// every event with the correlation ids and a timestamp.
type Publisher struct {
	stream Stream
	logger zerolog.Logger

	userID string
	taskID string
	runID  string
}

var _ Sink = (*Publisher)(nil)

// NewPublisher creates a publisher bound to a user's stream.
func NewPublisher(stream Stream, logger zerolog.Logger, userID, taskID string) *Publisher {
	return &Publisher{
		stream: stream,
		logger: logger.With().Str("component", "event_publisher").Str("user_id", userID).Logger(),
		userID: userID,
		taskID: taskID,
	}
}

// WithRun returns a copy of the publisher that stamps events with the given
// run id.
func (publisher *Publisher) WithRun(runID string) *Publisher {
	bound := *publisher
	bound.runID = runID
	return &bound
}

// Publish stamps and appends one event. Correlation ids already present on
// the event are preserved.
func (publisher *Publisher) Publish(ctx context.Context, event Event) error {
	event.UserID = publisher.userID
	if event.TaskID == "" {
		event.TaskID = publisher.taskID
	}
	if event.RunID == "" {
		event.RunID = publisher.runID
	}
	event.Stamp(time.Now())

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	streamID, err := publisher.stream.Append(ctx, publisher.userID, payload)
	if err != nil {
		publisher.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish event")
		return fmt.Errorf("appending event to stream: %w", err)
	}

	publisher.logger.Trace().
		Str("stream_id", streamID).
		Str("event_type", string(event.Type)).
		Str("node_id", event.NodeID).
		Msg("event published")

	return nil
}
