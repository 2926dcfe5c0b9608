package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStreamAppendReturnsMonotoneCursors(t *testing.T) {
	stream := NewMemoryStream()
	ctx := context.Background()

	first, err := stream.Append(ctx, "alice", []byte("one"))
	require.NoError(t, err)
	second, err := stream.Append(ctx, "alice", []byte("two"))
	require.NoError(t, err)

	assert.Equal(t, "1", first)
	assert.Equal(t, "2", second)
}

func TestMemoryStreamReadFromBeginning(t *testing.T) {
	stream := NewMemoryStream()
	ctx := context.Background()

	_, err := stream.Append(ctx, "alice", []byte("one"))
	require.NoError(t, err)
	_, err = stream.Append(ctx, "alice", []byte("two"))
	require.NoError(t, err)

	entries, err := stream.Read(ctx, "alice", BeginningID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("one"), entries[0].Payload)
	assert.Equal(t, []byte("two"), entries[1].Payload)

	// An empty cursor also means "from the beginning".
	entries, err = stream.Read(ctx, "alice", "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMemoryStreamReadResumesAfterCursor(t *testing.T) {
	stream := NewMemoryStream()
	ctx := context.Background()

	_, err := stream.Append(ctx, "alice", []byte("one"))
	require.NoError(t, err)
	cursor, err := stream.Append(ctx, "alice", []byte("two"))
	require.NoError(t, err)
	_, err = stream.Append(ctx, "alice", []byte("three"))
	require.NoError(t, err)

	entries, err := stream.Read(ctx, "alice", cursor, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("three"), entries[0].Payload)
}

func TestMemoryStreamReadHonorsCount(t *testing.T) {
	stream := NewMemoryStream()
	ctx := context.Background()

	for index := 0; index < 5; index++ {
		_, err := stream.Append(ctx, "alice", []byte{byte('a' + index)})
		require.NoError(t, err)
	}

	entries, err := stream.Read(ctx, "alice", BeginningID, 3, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestMemoryStreamPerUserIsolation(t *testing.T) {
	stream := NewMemoryStream()
	ctx := context.Background()

	_, err := stream.Append(ctx, "alice", []byte("for alice"))
	require.NoError(t, err)
	_, err = stream.Append(ctx, "bob", []byte("for bob"))
	require.NoError(t, err)

	entries, err := stream.Read(ctx, "alice", BeginningID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("for alice"), entries[0].Payload)
}

func TestMemoryStreamInvalidCursor(t *testing.T) {
	stream := NewMemoryStream()

	_, err := stream.Read(context.Background(), "alice", "not-a-number", 10, 0)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestMemoryStreamBlockingReadTimesOut(t *testing.T) {
	stream := NewMemoryStream()

	start := time.Now()
	entries, err := stream.Read(context.Background(), "alice", BeginningID, 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestMemoryStreamBlockingReadWakesOnAppend(t *testing.T) {
	stream := NewMemoryStream()
	ctx := context.Background()

	done := make(chan []Entry, 1)
	go func() {
		entries, err := stream.Read(ctx, "alice", BeginningID, 10, 2*time.Second)
		require.NoError(t, err)
		done <- entries
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := stream.Append(ctx, "alice", []byte("wake up"))
	require.NoError(t, err)

	select {
	case entries := <-done:
		require.Len(t, entries, 1)
		assert.Equal(t, []byte("wake up"), entries[0].Payload)
	case <-time.After(time.Second):
		t.Fatal("blocked read did not wake on append")
	}
}

func TestMemoryStreamReadRespectsContext(t *testing.T) {
	stream := NewMemoryStream()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := stream.Read(ctx, "alice", BeginningID, 10, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStreamConcurrentAppendsStayOrdered(t *testing.T) {
	stream := NewMemoryStream()
	ctx := context.Background()

	var waitGroup sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		waitGroup.Add(1)
		go func(worker int) {
			defer waitGroup.Done()
			for index := 0; index < 25; index++ {
				_, err := stream.Append(ctx, "alice", []byte(fmt.Sprintf("%d-%d", worker, index)))
				assert.NoError(t, err)
			}
		}(worker)
	}
	waitGroup.Wait()

	entries, err := stream.Read(ctx, "alice", BeginningID, 500, 0)
	require.NoError(t, err)
	require.Len(t, entries, 200)

	previous := uint64(0)
	for _, entry := range entries {
		current, parseErr := parseCursor(entry.ID)
		require.NoError(t, parseErr)
		assert.Greater(t, current, previous)
		previous = current
	}
}
