package playback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/syncinema/server/internal/domain"
	"github.com/syncinema/server/internal/protocol"
	"github.com/syncinema/server/internal/registry"
)

var (
	ErrAuthFailed       = errors.New("invalid room secret")
	ErrPermissionDenied = domain.ErrPermissionDenied
	ErrNoContent        = domain.ErrNoContent
)

const controlWriteTimeout = 5 * time.Second

type iStateStore interface {
	Project() (domain.Snapshot, bool)
	Apply(file string, baseTime float64, isPlaying bool)
	Clear()
}

type Config struct {
	RoomSecret string
	HostSecret string
}

type service struct {
	store    iStateStore
	sessions *registry.Registry
	cfg      *Config
	logger   *slog.Logger
}

func NewService(store iStateStore, cfg *Config, logger *slog.Logger) *service {
	s := service{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
	s.sessions = registry.NewRegistry(s.revokeHost)

	return &s
}

// revokeHost runs once the registry has completed the handoff: the
// superseded host has already lost the role, so the notification and
// force-close here are pure teardown and their I/O holds no lock.
func (s *service) revokeHost(old *domain.Session, reason string) {
	if err := old.WriteJSON(protocol.RoleRevoked{
		Type:   protocol.TypeRoleRevoked,
		Reason: reason,
	}); err != nil {
		s.logger.Warn("failed to notify revoked host", "session_id", old.Id, "error", err)
	}

	deadline := time.Now().Add(controlWriteTimeout)
	closeMsg := websocket.FormatCloseMessage(protocol.CloseHostSuperseded, reason)
	if err := old.WriteControl(websocket.CloseMessage, closeMsg, deadline); err != nil {
		s.logger.Warn("failed to send close to revoked host", "session_id", old.Id, "error", err)
	}
	old.Close()

	s.logger.Info("host revoked", "session_id", old.Id, "remote_addr", old.RemoteAddr, "reason", reason)
}

type ConnectParams struct {
	Transport  domain.Transport
	RoomSecret string
	HostSecret string
	RemoteAddr string
}

type ConnectResponse struct {
	Session      *domain.Session
	IsHostActive bool
	Snapshot     domain.Snapshot
	HasSnapshot  bool
}

// Connect authenticates the room secret and registers a session. ErrAuthFailed
// is returned before any session exists; the caller must close the transport
// with the bad-secret code.
func (s *service) Connect(ctx context.Context, params *ConnectParams) (ConnectResponse, error) {
	if params.RoomSecret != s.cfg.RoomSecret {
		return ConnectResponse{}, ErrAuthFailed
	}

	role := domain.RoleViewer
	if s.cfg.HostSecret != "" && params.HostSecret == s.cfg.HostSecret {
		role = domain.RoleHost
	}

	sess := domain.NewSession(uuid.NewString(), role, params.Transport, params.RemoteAddr)
	s.sessions.Register(sess)

	s.logger.InfoContext(ctx, "session connected",
		"session_id", sess.Id,
		"role", sess.Role,
		"remote_addr", sess.RemoteAddr,
		"total_sessions", s.sessions.Len(),
	)

	snap, ok := s.store.Project()

	return ConnectResponse{
		Session:      sess,
		IsHostActive: s.sessions.HostId() != "",
		Snapshot:     snap,
		HasSnapshot:  ok,
	}, nil
}

type DisconnectResponse struct {
	WasHost bool
}

// Disconnect removes a session. If it held the host role the authoritative
// state is cleared and every remaining session is told the host left.
func (s *service) Disconnect(ctx context.Context, sessionId string, reason string) DisconnectResponse {
	wasHost, ok := s.sessions.Unregister(sessionId)
	if !ok {
		return DisconnectResponse{}
	}

	if wasHost {
		s.store.Clear()
		s.broadcast(ctx, protocol.AdminLeft{
			Type:   protocol.TypeAdminLeft,
			Reason: reason,
		}, "")
	}

	s.logger.InfoContext(ctx, "session disconnected",
		"session_id", sessionId,
		"was_host", wasHost,
		"total_sessions", s.sessions.Len(),
	)

	return DisconnectResponse{WasHost: wasHost}
}

// broadcast delivers an event to every session except the excluded id,
// best-effort: a failing recipient is logged and skipped, never retried.
func (s *service) broadcast(ctx context.Context, event any, excludeSessionId string) {
	for _, sess := range s.sessions.List(excludeSessionId) {
		if err := sess.WriteJSON(event); err != nil {
			s.logger.WarnContext(ctx, "failed to deliver event",
				"session_id", sess.Id,
				"error", err,
			)
		}
	}
}

// sendOne delivers an event to a single session, silently no-oping when the
// session is gone.
func (s *service) sendOne(ctx context.Context, sessionId string, event any) {
	sess, ok := s.sessions.Get(sessionId)
	if !ok {
		return
	}

	if err := sess.WriteJSON(event); err != nil {
		s.logger.WarnContext(ctx, "failed to deliver event",
			"session_id", sessionId,
			"error", err,
		)
	}
}

// checkIfHost gates host-only commands. Callers drop ErrPermissionDenied
// silently so a non-host connection learns nothing from probing.
func (s *service) checkIfHost(sessionId string) error {
	sess, ok := s.sessions.Get(sessionId)
	if !ok || !sess.IsHost() {
		return ErrPermissionDenied
	}

	return nil
}

// Sweep disconnects sessions whose transport is dead: ones whose previous
// ping went unanswered (a write to a half-open connection can succeed into
// kernel buffers, so silence is the real death signal) and ones the ping
// write fails for outright. Backstop for ungraceful disconnects that never
// deliver a close event.
func (s *service) Sweep(ctx context.Context) {
	for _, sess := range s.sessions.List("") {
		if sess.PingPending() {
			s.logger.InfoContext(ctx, "evicting unresponsive session", "session_id", sess.Id)
			sess.Close()
			s.Disconnect(ctx, sess.Id, "")
			continue
		}

		sess.MarkPinged()
		deadline := time.Now().Add(controlWriteTimeout)
		if err := sess.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			s.logger.InfoContext(ctx, "evicting dead session",
				"session_id", sess.Id,
				"error", err,
			)
			sess.Close()
			s.Disconnect(ctx, sess.Id, "")
		}
	}
}

// RunSweeper runs Sweep on the given period until the context is canceled.
func (s *service) RunSweeper(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
