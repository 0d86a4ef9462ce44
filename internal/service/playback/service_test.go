package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncinema/server/internal/domain"
	"github.com/syncinema/server/internal/protocol"
	"github.com/syncinema/server/internal/state"
)

type fakeTransport struct {
	mu          sync.Mutex
	messages    []any
	closed      bool
	failWrites  bool
	failControl bool
}

func (t *fakeTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("transport closed")
	}
	if t.failWrites {
		return errors.New("write deadline exceeded")
	}
	t.messages = append(t.messages, v)
	return nil
}

func (t *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (t *fakeTransport) WriteControl(int, []byte, time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.failControl {
		return errors.New("transport closed")
	}
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) sent() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]any(nil), t.messages...)
}

func (t *fakeTransport) countByType(tag string) int {
	n := 0
	for _, msg := range t.sent() {
		switch m := msg.(type) {
		case protocol.RoleRevoked:
			if m.Type == tag {
				n++
			}
		case protocol.AdminLeft:
			if m.Type == tag {
				n++
			}
		case protocol.StateEvent:
			if m.Type == tag {
				n++
			}
		}
	}
	return n
}

func newTestService(clock clockwork.Clock) *service {
	store := state.NewStore(clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, &Config{
		RoomSecret: "room-secret",
		HostSecret: "host-secret",
	}, logger)
}

func connect(t *testing.T, s *service, hostSecret string) (*domain.Session, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	resp, err := s.Connect(context.Background(), &ConnectParams{
		Transport:  tr,
		RoomSecret: "room-secret",
		HostSecret: hostSecret,
		RemoteAddr: "127.0.0.1",
	})
	require.NoError(t, err)
	return resp.Session, tr
}

func TestConnectAuthFailed(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())

	_, err := s.Connect(context.Background(), &ConnectParams{
		Transport:  &fakeTransport{},
		RoomSecret: "wrong",
	})
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestConnectAssignsRoles(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	viewerResp, err := s.Connect(ctx, &ConnectParams{
		Transport:  &fakeTransport{},
		RoomSecret: "room-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleViewer, viewerResp.Session.Role)
	assert.False(t, viewerResp.IsHostActive)
	assert.False(t, viewerResp.HasSnapshot)

	hostResp, err := s.Connect(ctx, &ConnectParams{
		Transport:  &fakeTransport{},
		RoomSecret: "room-secret",
		HostSecret: "host-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, hostResp.Session.Role)
	assert.True(t, hostResp.IsHostActive)
}

func TestConnectWrongHostSecretJoinsAsViewer(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())

	resp, err := s.Connect(context.Background(), &ConnectParams{
		Transport:  &fakeTransport{},
		RoomSecret: "room-secret",
		HostSecret: "guess",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleViewer, resp.Session.Role)
}

func TestSecondHostSupersedesFirst(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())

	_, tr1 := connect(t, s, "host-secret")
	host2, _ := connect(t, s, "host-secret")

	assert.Equal(t, 1, tr1.countByType(protocol.TypeRoleRevoked), "exactly one revocation notice")
	assert.True(t, tr1.closed, "old host transport force-closed")
	assert.Equal(t, host2.Id, s.sessions.HostId())
	assert.Equal(t, 1, s.sessions.Len())
}

func TestLoad(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, hostTr := connect(t, s, "host-secret")
	_, viewerTr := connect(t, s, "")

	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))

	snap, ok := s.store.Project()
	require.True(t, ok)
	assert.Equal(t, domain.Snapshot{File: "A.mp4", Time: 0, Playing: false}, snap)

	msgs := viewerTr.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.LoadEvent{Type: protocol.TypeLoad, File: "A.mp4"}, msgs[0])
	assert.Empty(t, hostTr.sent(), "sender is excluded from the broadcast")
}

func TestPlayAdvancesProjection(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestService(clock)
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))
	require.NoError(t, s.Heartbeat(ctx, &HeartbeatParams{SenderId: host.Id, File: "A.mp4", Time: 10, Playing: false}))
	require.NoError(t, s.Play(ctx, &PlayParams{SenderId: host.Id}))

	clock.Advance(5 * time.Second)

	snap, ok := s.store.Project()
	require.True(t, ok)
	assert.InDelta(t, 15.0, snap.Time, 1e-9)
	assert.True(t, snap.Playing)
}

func TestPauseStopsProjection(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestService(clock)
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	_, viewerTr := connect(t, s, "")
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))
	require.NoError(t, s.Play(ctx, &PlayParams{SenderId: host.Id}))
	clock.Advance(7 * time.Second)

	require.NoError(t, s.Pause(ctx, &PauseParams{SenderId: host.Id}))

	snap, _ := s.store.Project()
	assert.InDelta(t, 7.0, snap.Time, 1e-9, "projection anchors at the pause time")
	assert.False(t, snap.Playing)

	clock.Advance(time.Minute)
	snap, _ = s.store.Project()
	assert.InDelta(t, 7.0, snap.Time, 1e-9, "paused projection does not advance")

	last := viewerTr.sent()[len(viewerTr.sent())-1]
	assert.Equal(t, protocol.PauseEvent{Type: protocol.TypePause}, last)
}

func TestSeekWhilePausedUsesSuppliedTime(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	_, viewerTr := connect(t, s, "")
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))

	resp, err := s.Seek(ctx, &SeekParams{SenderId: host.Id, Time: 42})
	require.NoError(t, err)
	assert.Equal(t, 42.0, resp.Time)

	snap, _ := s.store.Project()
	assert.Equal(t, 42.0, snap.Time)

	last := viewerTr.sent()[len(viewerTr.sent())-1]
	assert.Equal(t, protocol.SeekEvent{Type: protocol.TypeSeek, Time: 42}, last)
}

func TestSeekWhilePlayingReanchorsToProjection(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestService(clock)
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))
	require.NoError(t, s.Play(ctx, &PlayParams{SenderId: host.Id}))
	clock.Advance(30 * time.Second)

	// the supplied time is stale; the projected position wins
	resp, err := s.Seek(ctx, &SeekParams{SenderId: host.Id, Time: 3})
	require.NoError(t, err)
	assert.InDelta(t, 30.0, resp.Time, 1e-9)
}

func TestHeartbeatOverwritesStateWithoutBroadcast(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	_, viewerTr := connect(t, s, "")
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))
	before := len(viewerTr.sent())

	require.NoError(t, s.Heartbeat(ctx, &HeartbeatParams{SenderId: host.Id, File: "A.mp4", Time: 99.5, Playing: true}))

	snap, _ := s.store.Project()
	assert.Equal(t, 99.5, snap.Time)
	assert.True(t, snap.Playing)
	assert.Len(t, viewerTr.sent(), before, "heartbeat is not an event, no broadcast")
}

func TestForceSyncBroadcastsSnapshot(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, hostTr := connect(t, s, "host-secret")
	_, viewer1Tr := connect(t, s, "")
	_, viewer2Tr := connect(t, s, "")

	require.NoError(t, s.ForceSync(ctx, &ForceSyncParams{SenderId: host.Id, File: "B.mp4", Time: 42, Playing: true}))

	want := protocol.StateEvent{Type: protocol.TypeAuthoritativeSync, File: "B.mp4", Time: 42, Playing: true}
	for _, tr := range []*fakeTransport{viewer1Tr, viewer2Tr} {
		msgs := tr.sent()
		require.NotEmpty(t, msgs)
		assert.Equal(t, want, msgs[len(msgs)-1])
	}
	assert.Equal(t, 0, hostTr.countByType(protocol.TypeAuthoritativeSync))
}

func TestNonHostCommandsAreRejected(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, hostTr := connect(t, s, "host-secret")
	viewer, _ := connect(t, s, "")
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))
	before, _ := s.store.Project()
	hostBefore := len(hostTr.sent())

	assert.ErrorIs(t, s.Load(ctx, &LoadParams{SenderId: viewer.Id, File: "evil.mp4"}), ErrPermissionDenied)
	_, err := s.Seek(ctx, &SeekParams{SenderId: viewer.Id, Time: 1})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, s.Play(ctx, &PlayParams{SenderId: viewer.Id}), ErrPermissionDenied)
	assert.ErrorIs(t, s.Pause(ctx, &PauseParams{SenderId: viewer.Id}), ErrPermissionDenied)
	assert.ErrorIs(t, s.Heartbeat(ctx, &HeartbeatParams{SenderId: viewer.Id, Time: 1}), ErrPermissionDenied)
	assert.ErrorIs(t, s.ForceSync(ctx, &ForceSyncParams{SenderId: viewer.Id, Time: 1}), ErrPermissionDenied)

	after, _ := s.store.Project()
	assert.Equal(t, before, after, "no state change from non-host commands")
	assert.Len(t, hostTr.sent(), hostBefore, "no broadcast from non-host commands")
}

func TestRequestSync(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, hostTr := connect(t, s, "host-secret")
	viewer, viewerTr := connect(t, s, "")

	// nothing loaded yet
	s.RequestSync(ctx, &RequestSyncParams{SenderId: viewer.Id})
	msgs := viewerTr.sent()
	require.Len(t, msgs, 1)
	noContent, ok := msgs[0].(protocol.NoContent)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeNoContent, noContent.Type)

	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))

	s.RequestSync(ctx, &RequestSyncParams{SenderId: viewer.Id})
	msgs = viewerTr.sent()
	assert.Equal(t, protocol.StateEvent{
		Type: protocol.TypeAuthoritativeSync,
		File: "A.mp4",
	}, msgs[len(msgs)-1])

	// a host asking for sync is ignored
	before := len(hostTr.sent())
	s.RequestSync(ctx, &RequestSyncParams{SenderId: host.Id})
	assert.Len(t, hostTr.sent(), before)
}

func TestCheckTimeRepliesComparisonOnly(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestService(clock)
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	viewer, viewerTr := connect(t, s, "")

	// no reply while nothing is loaded
	s.CheckTime(ctx, &CheckTimeParams{SenderId: viewer.Id})
	assert.Empty(t, viewerTr.sent())

	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))
	require.NoError(t, s.Heartbeat(ctx, &HeartbeatParams{SenderId: host.Id, File: "A.mp4", Time: 100, Playing: true}))
	clock.Advance(6 * time.Second)

	local := 100.0
	s.CheckTime(ctx, &CheckTimeParams{SenderId: viewer.Id, Time: &local})

	msgs := viewerTr.sent()
	require.NotEmpty(t, msgs)
	result, ok := msgs[len(msgs)-1].(protocol.StateEvent)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeTimeCheckResult, result.Type)
	assert.InDelta(t, 106.0, result.Time, 1e-9)

	snap, _ := s.store.Project()
	assert.InDelta(t, 106.0, snap.Time, 1e-9, "checkTime never mutates state")
}

func TestHostDisconnectClearsStateAndNotifies(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	_, viewer1Tr := connect(t, s, "")
	_, viewer2Tr := connect(t, s, "")
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))

	resp := s.Disconnect(ctx, host.Id, "gone")
	assert.True(t, resp.WasHost)

	_, ok := s.store.Project()
	assert.False(t, ok, "authoritative state cleared on host departure")
	assert.Empty(t, s.sessions.HostId())

	for _, tr := range []*fakeTransport{viewer1Tr, viewer2Tr} {
		assert.Equal(t, 1, tr.countByType(protocol.TypeAdminLeft), "exactly one adminLeft per remaining session")
	}
}

func TestViewerDisconnectKeepsState(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	viewer, _ := connect(t, s, "")
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))

	resp := s.Disconnect(ctx, viewer.Id, "")
	assert.False(t, resp.WasHost)

	_, ok := s.store.Project()
	assert.True(t, ok)
	assert.Equal(t, host.Id, s.sessions.HostId())
}

func TestSweepEvictsDeadSessions(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, hostTr := connect(t, s, "host-secret")
	viewer, viewerTr := connect(t, s, "")
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))

	hostTr.failControl = true
	s.Sweep(ctx)

	assert.Equal(t, 1, s.sessions.Len(), "dead host evicted")
	assert.Empty(t, s.sessions.HostId())
	_, ok := s.store.Project()
	assert.False(t, ok, "sweep follows the host-departure rule")
	assert.Equal(t, 1, viewerTr.countByType(protocol.TypeAdminLeft))

	// sessions that answer the ping survive subsequent sweeps
	viewer.MarkAlive()
	s.Sweep(ctx)
	assert.Equal(t, 1, s.sessions.Len())
}

func TestSweepEvictsSilentSession(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	ponging, _ := connect(t, s, "")
	silent, _ := connect(t, s, "")

	// first sweep only sends pings; writes succeed even on a half-open peer
	s.Sweep(ctx)
	assert.Equal(t, 3, s.sessions.Len())

	host.MarkAlive()
	ponging.MarkAlive()

	// the session that never pongs is evicted on the next pass
	s.Sweep(ctx)
	assert.Equal(t, 2, s.sessions.Len())
	_, ok := s.sessions.Get(silent.Id)
	assert.False(t, ok)
	_, ok = s.sessions.Get(ponging.Id)
	assert.True(t, ok)
	assert.Equal(t, host.Id, s.sessions.HostId())
}

func TestBroadcastIsolatesFailingRecipient(t *testing.T) {
	s := newTestService(clockwork.NewFakeClock())
	ctx := context.Background()

	host, _ := connect(t, s, "host-secret")
	_, stalledTr := connect(t, s, "")
	_, healthyTr := connect(t, s, "")

	// a recipient whose writes time out must not cost the others their delivery
	stalledTr.failWrites = true
	require.NoError(t, s.Load(ctx, &LoadParams{SenderId: host.Id, File: "A.mp4"}))

	msgs := healthyTr.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.LoadEvent{Type: protocol.TypeLoad, File: "A.mp4"}, msgs[0])
	assert.Empty(t, stalledTr.sent())
}
