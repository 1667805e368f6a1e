package session

import (
	"sync"

	"github.com/jteo/copra/internal/types"
)

// Session owns at most one ephemeral index, created lazily on first use
// and torn down on Clear. The caller passes the session into the core's
// entry points; the core keeps no per-user state of its own.
type Session struct {
	mu       sync.Mutex
	embedder types.Embedder
	index    *EphemeralIndex
}

func New(embedder types.Embedder) *Session {
	return &Session{embedder: embedder}
}

// Index returns the session's ephemeral index, creating it on first use.
func (s *Session) Index() (*EphemeralIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		ix, err := NewEphemeralIndex(s.embedder)
		if err != nil {
			return nil, err
		}
		s.index = ix
	}
	return s.index, nil
}

// Clear tears down the ephemeral index and its storage. Idempotent:
// clearing a session that never created an index is a no-op.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return
	}
	s.index.Clear()
	s.index = nil
}
