package wsrouter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Type string `json:"type"`
}

// HandlerFunc receives the complete raw frame so it can unmarshal the typed
// payload itself. A returned error is logged and the connection survives.
type HandlerFunc func(ctx context.Context, frame json.RawMessage) error

// WSRouter dispatches inbound JSON text frames by their "type" field.
// Malformed frames and unknown types are logged and dropped without
// terminating the connection or replying.
type WSRouter struct {
	routes map[string]HandlerFunc
	logger *slog.Logger
}

func New(logger *slog.Logger) *WSRouter {
	return &WSRouter{
		routes: make(map[string]HandlerFunc),
		logger: logger,
	}
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// ServeConn reads frames until the connection fails or the context is
// canceled, running each frame's handler in turn. Frames from one connection
// are handled strictly in order.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			r.logger.WarnContext(ctx, "malformed message", "error", err)
			continue
		}

		handler, exists := r.routes[env.Type]
		if !exists {
			r.logger.DebugContext(ctx, "unknown message type", "type", env.Type)
			continue
		}

		if err := handler(ctx, frame); err != nil {
			r.logger.WarnContext(ctx, "failed to handle message", "type", env.Type, "error", err)
		}
	}
}
