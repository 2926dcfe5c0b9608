// Package bridge holds what the SSE and WebSocket endpoints share: token
// authorization and the cursor-tracking stream follow loop with its
// self-healing and backoff rules.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/flowgrid/flowgrid/core/events"
)

const (
	// BlockDuration is how long one stream read blocks waiting for entries.
	BlockDuration = 5 * time.Second

	// ErrorBackoff is the minimum pause after a read error or cursor reset
	// before the next read attempt.
	ErrorBackoff = 200 * time.Millisecond

	// BatchCount is the maximum number of entries fetched per read.
	BatchCount = 64
)

// ErrForbidden indicates the token does not authorize access to the
// requested user's stream.
var ErrForbidden = fmt.Errorf("token subject does not match requested user")

// Authorize parses and verifies an HMAC-signed JWT and checks that its
// subject equals the requested user id. Stream access is strictly
// per-user; a valid token for another user is still forbidden.
func Authorize(tokenString, userID string, secret []byte) error {
	subject, err := Subject(tokenString, secret)
	if err != nil {
		return err
	}
	if subject != userID {
		return ErrForbidden
	}
	return nil
}

// Subject parses and verifies an HMAC-signed JWT and returns its subject,
// the authenticated user id.
func Subject(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, isHMAC := token.Method.(*jwt.SigningMethodHMAC); !isHMAC {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}

// NormalizeCursor maps the client-provided since_id to a stream cursor. An
// absent cursor means "from the beginning".
func NormalizeCursor(sinceID string) string {
	if sinceID == "" {
		return events.BeginningID
	}
	return sinceID
}

// Deliver sends one stream entry to the client. Returning an error stops
// the follow loop; the connection is assumed broken.
type Deliver func(entry events.Entry) error

// OnError reports a read failure to the client, best effort.
type OnError func(err error)

// Follow reads a user's stream from the cursor onward and delivers each
// entry in order, blocking on the stream between batches. An invalid
// cursor self-heals by resetting to the beginning; at-least-once delivery
// means the client may see entries again after such a reset. Other read
// errors are reported and retried after a backoff. Follow returns when the
// context ends or delivery fails.
func Follow(ctx context.Context, stream events.Stream, logger zerolog.Logger, userID, sinceID string, deliver Deliver, onError OnError) error {
	cursor := NormalizeCursor(sinceID)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		entries, err := stream.Read(ctx, userID, cursor, BatchCount, BlockDuration)
		if errors.Is(err, events.ErrInvalidCursor) {
			logger.Warn().Str("user_id", userID).Str("cursor", cursor).Msg("invalid cursor, resetting to beginning")
			cursor = events.BeginningID
			if !pause(ctx) {
				return ctx.Err()
			}
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("stream read failed")
			if onError != nil {
				onError(err)
			}
			if !pause(ctx) {
				return ctx.Err()
			}
			continue
		}

		for _, entry := range entries {
			if err := deliver(entry); err != nil {
				return err
			}
			cursor = entry.ID
		}
	}
}

func pause(ctx context.Context) bool {
	timer := time.NewTimer(ErrorBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
