// Package session keeps the bounded per-conversation history the
// pipeline feeds back into its prompts.
package session

import (
	"fmt"
	"sync"
	"time"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	Question  string    `json:"question"`
	SQL       string    `json:"sql,omitempty"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type session struct {
	mu         sync.Mutex
	turns      []Turn
	totalTurns int
}

// Store holds conversation histories in memory. Each session keeps at
// most maxTurns recent turns; older ones are evicted oldest first.
type Store struct {
	maxTurns int
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewStore(maxTurns int) (*Store, error) {
	if maxTurns <= 0 {
		return nil, fmt.Errorf("max turns must be positive")
	}
	return &Store{
		maxTurns: maxTurns,
		now:      time.Now,
		sessions: map[string]*session{},
	}, nil
}

func (s *Store) get(sessionID string, create bool) *session {
	s.mu.RLock()
	item, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok || !create {
		return item
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.sessions[sessionID]; ok {
		return item
	}
	item = &session{}
	s.sessions[sessionID] = item
	return item
}

// Append records a completed turn, evicting the oldest turn once the
// session is at capacity.
func (s *Store) Append(sessionID string, turn Turn) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}

	item := s.get(sessionID, true)
	item.mu.Lock()
	defer item.mu.Unlock()

	item.turns = append(item.turns, turn)
	if len(item.turns) > s.maxTurns {
		item.turns = item.turns[len(item.turns)-s.maxTurns:]
	}
	item.totalTurns++
}

// History returns the retained turns, oldest first. Unknown sessions
// yield an empty history.
func (s *Store) History(sessionID string) []Turn {
	item := s.get(sessionID, false)
	if item == nil {
		return nil
	}
	item.mu.Lock()
	defer item.mu.Unlock()

	turns := make([]Turn, len(item.turns))
	copy(turns, item.turns)
	return turns
}

// Count returns the number of turns ever recorded for the session,
// including turns already evicted from the window.
func (s *Store) Count(sessionID string) int {
	item := s.get(sessionID, false)
	if item == nil {
		return 0
	}
	item.mu.Lock()
	defer item.mu.Unlock()
	return item.totalTurns
}
