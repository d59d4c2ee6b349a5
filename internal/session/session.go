// Package session keeps per-conversation history in memory.
//
// A Store owns many sessions keyed by ID. Each session holds a bounded
// window of turns: once the cap is reached, the oldest turns are dropped so
// memory stays constant per session. The store itself is bounded too, the
// least recently used session is evicted when the session cap is exceeded.
//
// State is process-local. A restart clears all sessions, which is an
// accepted property of the service, not a bug.
package session

import (
	"container/list"
	"sync"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	// RoleUser marks a turn written by the end user.
	RoleUser Role = "user"

	// RoleBot marks a turn written by the assistant.
	RoleBot Role = "bot"
)

// Turn is a single utterance in a conversation.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// DefaultMaxTurns bounds history length when no explicit cap is given.
const DefaultMaxTurns = 20

// DefaultMaxSessions bounds the number of live sessions per store.
const DefaultMaxSessions = 1000

// session is one conversation's state. All access goes through its own
// mutex so two requests for the same session serialize against each other
// without blocking unrelated sessions.
type session struct {
	mu    sync.Mutex
	turns []Turn
}

// append adds turns and trims the window to maxTurns, dropping oldest first.
func (s *session) append(maxTurns int, turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turns...)
	if over := len(s.turns) - maxTurns; over > 0 {
		s.turns = append(s.turns[:0], s.turns[over:]...)
	}
}

// snapshot returns a copy of the turns so callers can read without holding
// the session lock.
func (s *session) snapshot() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Store manages conversation sessions. Safe for concurrent use.
type Store struct {
	maxTurns    int
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*list.Element // id -> element in order
	order    *list.List               // front = most recently used
}

// entry is the LRU list payload.
type entry struct {
	id   string
	sess *session
}

// Option configures a Store.
type Option func(*Store)

// WithMaxTurns caps the number of turns kept per session.
func WithMaxTurns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithMaxSessions caps the number of concurrently tracked sessions.
func WithMaxSessions(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// withClock overrides the timestamp source in tests.
func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		maxTurns:    DefaultMaxTurns,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		sessions:    make(map[string]*list.Element),
		order:       list.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// get returns the session for id, creating it on first use and evicting the
// least recently used session when the cap is exceeded.
func (s *Store) get(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.sessions[id]; ok {
		s.order.MoveToFront(el)
		return el.Value.(*entry).sess
	}

	sess := &session{}
	s.sessions[id] = s.order.PushFront(&entry{id: id, sess: sess})

	for len(s.sessions) > s.maxSessions {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.sessions, oldest.Value.(*entry).id)
	}

	return sess
}

// Append records a user/bot exchange for the session, creating the session
// if needed. Both turns land atomically so a concurrent reader never sees a
// user turn without its reply.
func (s *Store) Append(id, userText, botText string) {
	now := s.now()
	s.get(id).append(s.maxTurns,
		Turn{Role: RoleUser, Text: userText, At: now},
		Turn{Role: RoleBot, Text: botText, At: now},
	)
}

// History returns a copy of the session's turns, oldest first.
// An unknown session yields an empty history without creating state.
func (s *Store) History(id string) []Turn {
	s.mu.Lock()
	el, ok := s.sessions[id]
	if ok {
		s.order.MoveToFront(el)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return el.Value.(*entry).sess.snapshot()
}

// Clear removes the session. Clearing an unknown ID is a no-op.
// Returns whether a session existed.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.sessions[id]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.sessions, id)
	return true
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
