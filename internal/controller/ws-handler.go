package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syncinema/server/internal/protocol"
	"github.com/syncinema/server/internal/service/playback"
	"github.com/syncinema/server/pkg/ctxlogger"
)

const closeWriteTimeout = 5 * time.Second

// sync is the websocket endpoint. Authentication happens on the upgraded
// connection so a bad room secret can be rejected with a distinguishable
// close code before any session exists.
func (c controller) sync(w http.ResponseWriter, r *http.Request) {
	roomSecret := r.URL.Query().Get("pass")
	hostSecret := r.URL.Query().Get("adminPass")
	remoteAddr := clientIP(r)

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	connectResponse, err := c.playbackService.Connect(r.Context(), &playback.ConnectParams{
		Transport:  conn,
		RoomSecret: roomSecret,
		HostSecret: hostSecret,
		RemoteAddr: remoteAddr,
	})
	if err != nil {
		if errors.Is(err, playback.ErrAuthFailed) {
			c.logger.WarnContext(r.Context(), "invalid room secret", "remote_addr", remoteAddr)
			closeMsg := websocket.FormatCloseMessage(protocol.CloseInvalidRoomSecret, "invalid room secret")
			conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeWriteTimeout))
		} else {
			c.logger.WarnContext(r.Context(), "failed to connect", "error", err)
		}
		conn.Close()
		return
	}

	sess := connectResponse.Session

	// pong replies to the sweep's pings are the session's proof of life
	conn.SetPongHandler(func(string) error {
		sess.MarkAlive()
		return nil
	})

	ctx := context.WithValue(r.Context(), sessionIdCtxKey, sess.Id)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("session_id", sess.Id))

	defer c.playbackService.Disconnect(ctx, sess.Id, "")

	if err := sess.WriteJSON(protocol.RoleAssigned{
		Type:          protocol.TypeRoleAssigned,
		IsAdmin:       sess.IsHost(),
		IsAdminActive: connectResponse.IsHostActive,
		Ip:            remoteAddr,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write role assignment", "error", err)
		return
	}

	if connectResponse.HasSnapshot {
		if err := sess.WriteJSON(protocol.NewStateEvent(protocol.TypeAuthoritativeState, connectResponse.Snapshot)); err != nil {
			c.logger.WarnContext(ctx, "failed to write initial state", "error", err)
			return
		}
	}

	if err := c.getWSRouter().ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}
