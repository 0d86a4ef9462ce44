package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	writeDeadlines []time.Time
	writes         []any
}

func (t *recordingTransport) WriteJSON(v any) error {
	t.writes = append(t.writes, v)
	return nil
}

func (t *recordingTransport) WriteControl(int, []byte, time.Time) error { return nil }

func (t *recordingTransport) SetWriteDeadline(deadline time.Time) error {
	t.writeDeadlines = append(t.writeDeadlines, deadline)
	return nil
}

func (t *recordingTransport) Close() error { return nil }

func TestWriteJSONSetsDeadlineBeforeEveryWrite(t *testing.T) {
	tr := &recordingTransport{}
	sess := NewSession("id", RoleViewer, tr, "127.0.0.1")

	before := time.Now()
	require.NoError(t, sess.WriteJSON("one"))
	require.NoError(t, sess.WriteJSON("two"))

	require.Len(t, tr.writeDeadlines, 2, "one deadline per write")
	for _, deadline := range tr.writeDeadlines {
		assert.True(t, deadline.After(before), "deadline must be in the future")
		assert.LessOrEqual(t, deadline.Sub(before), time.Minute, "deadline must be short")
	}
	assert.Len(t, tr.writes, 2)
}

func TestPingBookkeeping(t *testing.T) {
	sess := NewSession("id", RoleViewer, &recordingTransport{}, "127.0.0.1")

	assert.False(t, sess.PingPending(), "a fresh session owes no pong")

	sess.MarkPinged()
	assert.True(t, sess.PingPending())

	sess.MarkAlive()
	assert.False(t, sess.PingPending())
}
