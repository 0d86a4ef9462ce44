package registry

import (
	"sync"

	"github.com/syncinema/server/internal/domain"
)

// RevokeFunc tells a superseded host it lost the role and tears its transport
// down. It runs after the handoff, outside the registry lock: the old session
// is already removed, so the notification's network I/O never holds up other
// registry calls. It may use the registry.
type RevokeFunc func(old *domain.Session, reason string)

// Registry tracks live sessions and enforces at-most-one-host. The host
// handoff (remove old, install new) is a single critical section rather than
// an ordering accident, so at no instant are two hosts registered.
type Registry struct {
	revoke RevokeFunc

	mu       sync.RWMutex
	sessions map[string]*domain.Session
	hostId   string
}

func NewRegistry(revoke RevokeFunc) *Registry {
	return &Registry{
		revoke:   revoke,
		sessions: make(map[string]*domain.Session),
	}
}

// Register stores a new session. A host registration while another host is
// live removes the old host and installs the new one atomically, then
// notifies and disconnects the old one with the lock released.
func (r *Registry) Register(sess *domain.Session) {
	var old *domain.Session

	r.mu.Lock()
	if sess.IsHost() && r.hostId != "" {
		if o, ok := r.sessions[r.hostId]; ok {
			delete(r.sessions, o.Id)
			old = o
		}
		r.hostId = ""
	}

	r.sessions[sess.Id] = sess
	if sess.IsHost() {
		r.hostId = sess.Id
	}
	r.mu.Unlock()

	if old != nil {
		r.revoke(old, "replaced by a new host")
	}
}

// Unregister removes the session and reports whether it held the host role.
func (r *Registry) Unregister(sessionId string) (wasHost bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionId]; !ok {
		return false, false
	}

	delete(r.sessions, sessionId)
	if r.hostId == sessionId {
		r.hostId = ""
		return true, true
	}

	return false, true
}

func (r *Registry) Get(sessionId string) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionId]
	return sess, ok
}

func (r *Registry) HostId() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.hostId
}

// List returns a snapshot of all sessions except the excluded id. Pass an
// empty string to list everyone.
func (r *Registry) List(excludeSessionId string) []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*domain.Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if id == excludeSessionId {
			continue
		}
		sessions = append(sessions, sess)
	}

	return sessions
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
