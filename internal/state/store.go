package state

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/syncinema/server/internal/domain"
)

// Store holds the single authoritative playback state: what is playing, where
// it was as of the last mutation, and whether it is advancing. All reads go
// through Project so the projected position is always computed from the
// anchor, never cached.
type Store struct {
	clock clockwork.Clock

	mu             sync.Mutex
	currentFile    string
	baseTime       float64
	lastUpdateTime time.Time
	isPlaying      bool
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		clock:          clock,
		lastUpdateTime: clock.Now(),
	}
}

// Project returns the derived snapshot. The second return is false when no
// file is loaded. The snapshot is taken under the lock so Apply can never
// expose a half-written state.
func (s *Store) Project() (domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentFile == "" {
		return domain.Snapshot{}, false
	}

	t := s.baseTime
	if s.isPlaying {
		t += s.clock.Since(s.lastUpdateTime).Seconds()
	}

	return domain.Snapshot{
		File:    s.currentFile,
		Time:    t,
		Playing: s.isPlaying,
	}, true
}

// Apply atomically replaces the playback anchor and resets the update
// timestamp to now.
func (s *Store) Apply(file string, baseTime float64, isPlaying bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentFile = file
	s.baseTime = baseTime
	s.lastUpdateTime = s.clock.Now()
	s.isPlaying = isPlaying
}

// Clear resets to the empty state. Used when the host leaves.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentFile = ""
	s.baseTime = 0
	s.lastUpdateTime = s.clock.Now()
	s.isPlaying = false
}
