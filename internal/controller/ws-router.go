package controller

import (
	"github.com/syncinema/server/internal/protocol"
	"github.com/syncinema/server/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New(c.logger)

	// read-only, any role (host is a no-op)
	mux.Handle(protocol.TypeRequestSync, c.handleRequestSync)
	mux.Handle(protocol.TypeCheckTime, c.handleCheckTime)

	// host-only commands; non-host senders are silently dropped
	mux.Handle(protocol.TypeLoad, c.handleLoad)
	mux.Handle(protocol.TypeSeek, c.handleSeek)
	mux.Handle(protocol.TypePlay, c.handlePlay)
	mux.Handle(protocol.TypePause, c.handlePause)
	mux.Handle(protocol.TypeHeartbeat, c.handleHeartbeat)
	mux.Handle(protocol.TypeForceSync, c.handleForceSync)

	return mux
}
