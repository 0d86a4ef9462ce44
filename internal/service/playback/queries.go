package playback

import (
	"context"

	"github.com/syncinema/server/internal/protocol"
)

type RequestSyncParams struct {
	SenderId string
}

// RequestSync replies to a viewer with the current snapshot, or noContent
// when nothing is loaded. A host sending this is a no-op.
func (s *service) RequestSync(ctx context.Context, params *RequestSyncParams) {
	if s.checkIfHost(params.SenderId) == nil {
		return
	}

	s.logger.InfoContext(ctx, "sync requested", "sender_id", params.SenderId)

	snap, ok := s.store.Project()
	if !ok {
		s.sendOne(ctx, params.SenderId, protocol.NoContent{
			Type:   protocol.TypeNoContent,
			Reason: "nothing is playing",
		})
		return
	}

	s.sendOne(ctx, params.SenderId, protocol.NewStateEvent(protocol.TypeAuthoritativeSync, snap))
}

type CheckTimeParams struct {
	SenderId string
	// Time is the viewer's locally observed position, reported for
	// server-side diagnostics only. Nil when the client did not report one.
	Time *float64
}

// CheckTime replies with the snapshot tagged for comparison only; the viewer
// decides whether its drift warrants a resync, the server never seeks anyone.
// No reply when nothing is loaded. A host sending this is a no-op.
func (s *service) CheckTime(ctx context.Context, params *CheckTimeParams) {
	if s.checkIfHost(params.SenderId) == nil {
		return
	}

	snap, ok := s.store.Project()
	if !ok {
		return
	}

	s.sendOne(ctx, params.SenderId, protocol.NewStateEvent(protocol.TypeTimeCheckResult, snap))

	attrs := []any{
		"sender_id", params.SenderId,
		"projected_time", snap.Time,
	}
	if params.Time != nil {
		attrs = append(attrs, "reported_time", *params.Time)
	}
	s.logger.InfoContext(ctx, "time check", attrs...)
}
