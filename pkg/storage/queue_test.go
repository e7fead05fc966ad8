package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := NewQueue(filepath.Join(t.TempDir(), "queue.db"), 0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestQueueEnqueueDrain(t *testing.T) {
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue("CCCCCCCC", "msg-1", []byte("packet-1"), false))
	require.NoError(t, q.Enqueue("CCCCCCCC", "msg-2", []byte("packet-2"), true))
	require.NoError(t, q.Enqueue("DDDDDDDD", "msg-3", []byte("packet-3"), false))

	count, err := q.Count("CCCCCCCC")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	packets, err := q.Drain("CCCCCCCC")
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.Equal(t, []byte("packet-1"), packets[0])
	assert.Equal(t, []byte("packet-2"), packets[1])

	// Drained messages are gone; the other recipient's queue is intact.
	count, err = q.Count("CCCCCCCC")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = q.Count("DDDDDDDD")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQueueDuplicateMessageID(t *testing.T) {
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue("CCCCCCCC", "msg-1", []byte("packet-1"), false))
	require.NoError(t, q.Enqueue("CCCCCCCC", "msg-1", []byte("packet-1-again"), false))

	packets, err := q.Drain("CCCCCCCC")
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, []byte("packet-1"), packets[0])
}

func TestQueueExpiry(t *testing.T) {
	// A negative retention expires everything immediately.
	q, err := NewQueue(filepath.Join(t.TempDir(), "queue.db"), -time.Hour, 168*time.Hour)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Enqueue("CCCCCCCC", "stale", []byte("old"), false))
	require.NoError(t, q.Enqueue("CCCCCCCC", "fresh", []byte("new"), true))

	deleted, err := q.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	packets, err := q.Drain("CCCCCCCC")
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, []byte("new"), packets[0])
}

func TestQueueDrainEmpty(t *testing.T) {
	q := newTestQueue(t)

	packets, err := q.Drain("NOBODY00")
	require.NoError(t, err)
	assert.Empty(t, packets)
}
