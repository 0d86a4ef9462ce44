package playback

import (
	"context"
	"fmt"
	"math"

	"github.com/syncinema/server/internal/protocol"
)

// divergence above this is logged at WARN on heartbeat; the host-reported
// state is applied regardless.
const driftWarnThreshold = 1.0

type LoadParams struct {
	SenderId string
	File     string
}

// Load replaces the active file, anchored at zero and paused, and tells every
// other session to load it.
func (s *service) Load(ctx context.Context, params *LoadParams) error {
	if err := s.checkIfHost(params.SenderId); err != nil {
		return fmt.Errorf("failed to check if sender is host: %w", err)
	}

	s.store.Apply(params.File, 0, false)

	s.logger.InfoContext(ctx, "load", "file", params.File, "sender_id", params.SenderId)

	s.broadcast(ctx, protocol.LoadEvent{
		Type: protocol.TypeLoad,
		File: params.File,
	}, params.SenderId)

	return nil
}

type SeekParams struct {
	SenderId string
	Time     float64
}

type SeekResponse struct {
	Time float64
}

// Seek re-anchors the timeline. During playback the anchor is the projected
// current time, not the supplied one, so a stale client-side time cannot drag
// the authoritative position backwards. The state is left paused.
func (s *service) Seek(ctx context.Context, params *SeekParams) (SeekResponse, error) {
	if err := s.checkIfHost(params.SenderId); err != nil {
		return SeekResponse{}, fmt.Errorf("failed to check if sender is host: %w", err)
	}

	snap, ok := s.store.Project()
	if !ok {
		return SeekResponse{}, fmt.Errorf("failed to seek: %w", ErrNoContent)
	}

	newTime := params.Time
	if snap.Playing {
		newTime = snap.Time
	}

	s.store.Apply(snap.File, newTime, false)

	s.logger.InfoContext(ctx, "seek", "time", newTime, "sender_id", params.SenderId)

	s.broadcast(ctx, protocol.SeekEvent{
		Type: protocol.TypeSeek,
		Time: newTime,
	}, params.SenderId)

	return SeekResponse{Time: newTime}, nil
}

type PlayParams struct {
	SenderId string
}

// Play anchors at the current projection and starts advancing.
func (s *service) Play(ctx context.Context, params *PlayParams) error {
	if err := s.checkIfHost(params.SenderId); err != nil {
		return fmt.Errorf("failed to check if sender is host: %w", err)
	}

	snap, ok := s.store.Project()
	if !ok {
		return fmt.Errorf("failed to play: %w", ErrNoContent)
	}

	s.store.Apply(snap.File, snap.Time, true)

	s.logger.InfoContext(ctx, "play", "base_time", snap.Time, "sender_id", params.SenderId)

	s.broadcast(ctx, protocol.PlayEvent{Type: protocol.TypePlay}, params.SenderId)

	return nil
}

type PauseParams struct {
	SenderId string
}

// Pause anchors at the current projection and stops advancing.
func (s *service) Pause(ctx context.Context, params *PauseParams) error {
	if err := s.checkIfHost(params.SenderId); err != nil {
		return fmt.Errorf("failed to check if sender is host: %w", err)
	}

	snap, ok := s.store.Project()
	if !ok {
		return fmt.Errorf("failed to pause: %w", ErrNoContent)
	}

	s.store.Apply(snap.File, snap.Time, false)

	s.logger.InfoContext(ctx, "pause", "time", snap.Time, "sender_id", params.SenderId)

	s.broadcast(ctx, protocol.PauseEvent{Type: protocol.TypePause}, params.SenderId)

	return nil
}

type HeartbeatParams struct {
	SenderId string
	File     string
	Time     float64
	Playing  bool
}

// Heartbeat unconditionally overwrites the authoritative state with the
// host's self-reported position (the host is correct by construction). The
// divergence between the pre-update projection and the reported time is
// logged for observability; it is never rejected. No broadcast: this is a
// periodic self-correction, not an event.
func (s *service) Heartbeat(ctx context.Context, params *HeartbeatParams) error {
	if err := s.checkIfHost(params.SenderId); err != nil {
		return fmt.Errorf("failed to check if sender is host: %w", err)
	}

	if snap, ok := s.store.Project(); ok {
		drift := math.Abs(snap.Time - params.Time)
		s.logger.InfoContext(ctx, "heartbeat",
			"sender_id", params.SenderId,
			"reported_time", params.Time,
			"projected_time", snap.Time,
			"drift", drift,
			"playing", params.Playing,
		)
		if drift > driftWarnThreshold {
			s.logger.WarnContext(ctx, "significant drift detected, resetting anchor",
				"sender_id", params.SenderId,
				"drift", drift,
			)
		}
	}

	s.store.Apply(params.File, params.Time, params.Playing)

	return nil
}

type ForceSyncParams struct {
	SenderId string
	File     string
	Time     float64
	Playing  bool
}

// ForceSync is a heartbeat followed by an explicit authoritative snapshot
// pushed to every viewer, for on-demand full resynchronization.
func (s *service) ForceSync(ctx context.Context, params *ForceSyncParams) error {
	if err := s.checkIfHost(params.SenderId); err != nil {
		return fmt.Errorf("failed to check if sender is host: %w", err)
	}

	s.store.Apply(params.File, params.Time, params.Playing)

	snap, ok := s.store.Project()
	if !ok {
		return nil
	}

	s.logger.InfoContext(ctx, "force sync", "sender_id", params.SenderId, "file", snap.File, "time", snap.Time)

	s.broadcast(ctx, protocol.NewStateEvent(protocol.TypeAuthoritativeSync, snap), params.SenderId)

	return nil
}
