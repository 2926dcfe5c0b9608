package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/core/events"
)

var testSecret = []byte("bridge-test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestSubjectValidToken(t *testing.T) {
	tokenString := signToken(t, testSecret, jwt.MapClaims{"sub": "alice"})

	subject, err := Subject(tokenString, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestSubjectWrongSecret(t *testing.T) {
	tokenString := signToken(t, []byte("other-secret"), jwt.MapClaims{"sub": "alice"})

	_, err := Subject(tokenString, testSecret)
	assert.Error(t, err)
}

func TestSubjectMissingSubject(t *testing.T) {
	tokenString := signToken(t, testSecret, jwt.MapClaims{"scope": "events"})

	_, err := Subject(tokenString, testSecret)
	assert.Error(t, err)
}

func TestSubjectRejectsUnsignedToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"})
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = Subject(unsigned, testSecret)
	assert.Error(t, err)
}

func TestSubjectGarbageToken(t *testing.T) {
	_, err := Subject("not-a-token", testSecret)
	assert.Error(t, err)
}

func TestAuthorizeMatchingSubject(t *testing.T) {
	tokenString := signToken(t, testSecret, jwt.MapClaims{"sub": "alice"})

	assert.NoError(t, Authorize(tokenString, "alice", testSecret))
}

func TestAuthorizeForeignSubject(t *testing.T) {
	// A valid token for another user must still be rejected.
	tokenString := signToken(t, testSecret, jwt.MapClaims{"sub": "bob"})

	err := Authorize(tokenString, "alice", testSecret)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestNormalizeCursor(t *testing.T) {
	assert.Equal(t, events.BeginningID, NormalizeCursor(""))
	assert.Equal(t, "42", NormalizeCursor("42"))
}

var errStopFollowing = errors.New("stop following")

func TestFollowDeliversInOrder(t *testing.T) {
	stream := events.NewMemoryStream()
	ctx := context.Background()

	for _, payload := range []string{"one", "two", "three"} {
		_, err := stream.Append(ctx, "alice", []byte(payload))
		require.NoError(t, err)
	}

	delivered := make([]string, 0, 3)
	err := Follow(ctx, stream, zerolog.Nop(), "alice", "", func(entry events.Entry) error {
		delivered = append(delivered, string(entry.Payload))
		if len(delivered) == 3 {
			return errStopFollowing
		}
		return nil
	}, nil)

	assert.ErrorIs(t, err, errStopFollowing)
	assert.Equal(t, []string{"one", "two", "three"}, delivered)
}

func TestFollowResumesAfterCursor(t *testing.T) {
	stream := events.NewMemoryStream()
	ctx := context.Background()

	_, err := stream.Append(ctx, "alice", []byte("old"))
	require.NoError(t, err)
	cursor, err := stream.Append(ctx, "alice", []byte("seen"))
	require.NoError(t, err)
	_, err = stream.Append(ctx, "alice", []byte("new"))
	require.NoError(t, err)

	var delivered []string
	err = Follow(ctx, stream, zerolog.Nop(), "alice", cursor, func(entry events.Entry) error {
		delivered = append(delivered, string(entry.Payload))
		return errStopFollowing
	}, nil)

	assert.ErrorIs(t, err, errStopFollowing)
	assert.Equal(t, []string{"new"}, delivered)
}

func TestFollowSelfHealsInvalidCursor(t *testing.T) {
	stream := events.NewMemoryStream()
	ctx := context.Background()

	_, err := stream.Append(ctx, "alice", []byte("payload"))
	require.NoError(t, err)

	// A garbage cursor resets to the beginning instead of failing the
	// connection.
	var delivered []string
	err = Follow(ctx, stream, zerolog.Nop(), "alice", "garbage", func(entry events.Entry) error {
		delivered = append(delivered, string(entry.Payload))
		return errStopFollowing
	}, nil)

	assert.ErrorIs(t, err, errStopFollowing)
	assert.Equal(t, []string{"payload"}, delivered)
}

func TestFollowReturnsOnContextEnd(t *testing.T) {
	stream := events.NewMemoryStream()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Follow(ctx, stream, zerolog.Nop(), "alice", "", func(events.Entry) error {
		t.Fatal("nothing should be delivered")
		return nil
	}, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// failingStream always fails its reads.
type failingStream struct{}

var _ events.Stream = failingStream{}

func (failingStream) Append(context.Context, string, []byte) (string, error) {
	return "", errors.New("append unsupported")
}

func (failingStream) Read(context.Context, string, string, int, time.Duration) ([]events.Entry, error) {
	return nil, errors.New("backend unavailable")
}

func TestFollowReportsReadErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reported := make(chan error, 1)
	err := Follow(ctx, failingStream{}, zerolog.Nop(), "alice", "", func(events.Entry) error {
		return nil
	}, func(readErr error) {
		select {
		case reported <- readErr:
		default:
		}
		cancel()
	})

	assert.ErrorIs(t, err, context.Canceled)
	select {
	case readErr := <-reported:
		assert.Contains(t, readErr.Error(), "backend unavailable")
	default:
		t.Fatal("read error was not reported")
	}
}
