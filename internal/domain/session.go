package domain

import (
	"sync"
	"sync/atomic"
	"time"
)

type Role string

const (
	RoleHost   Role = "host"
	RoleViewer Role = "viewer"
)

// writeTimeout bounds every data write. A saturated recipient fails fast and
// loses that delivery instead of stalling the sender.
const writeTimeout = 5 * time.Second

// Transport is the live communication channel of a session. Satisfied by
// *websocket.Conn. Closing it at any point is safe; writes after close fail.
type Transport interface {
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one live client connection. Id is unique for the lifetime of the
// connection and never reused. Role is fixed at connect time; the only way a
// session stops being host is forced revocation by the registry.
type Session struct {
	Id         string
	Role       Role
	RemoteAddr string

	transport   Transport
	writeMu     sync.Mutex
	pingPending atomic.Bool
}

func NewSession(id string, role Role, transport Transport, remoteAddr string) *Session {
	return &Session{
		Id:         id,
		Role:       role,
		RemoteAddr: remoteAddr,
		transport:  transport,
	}
}

func (s *Session) IsHost() bool {
	return s.Role == RoleHost
}

// WriteJSON serializes writes (gorilla/websocket allows at most one
// concurrent writer per connection) and bounds each with a deadline so one
// stalled recipient cannot park the caller indefinitely.
func (s *Session) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.transport.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return s.transport.WriteJSON(v)
}

// WriteControl is safe to call concurrently with WriteJSON.
func (s *Session) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return s.transport.WriteControl(messageType, data, deadline)
}

func (s *Session) Close() error {
	return s.transport.Close()
}

// MarkPinged records that a liveness ping went out and no pong has come back
// yet.
func (s *Session) MarkPinged() {
	s.pingPending.Store(true)
}

// MarkAlive records proof of life (a pong arrived).
func (s *Session) MarkAlive() {
	s.pingPending.Store(false)
}

// PingPending reports whether the last liveness ping is still unanswered. A
// write to a half-open connection can land in kernel buffers and succeed, so
// the sweep treats a missing pong, not a failed write, as the real death
// signal.
func (s *Session) PingPending() bool {
	return s.pingPending.Load()
}
