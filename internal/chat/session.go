package chat

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/mltutor/mltutor/internal/ai"
)

// Sessions older than this without activity are dropped on the next
// Open call.
const sessionIdleTTL = 30 * time.Minute

// Session holds server-side multi-turn state for one live chat
// connection, so websocket clients do not have to replay history with
// every question.
type Session struct {
	ID         string
	Turns      []ai.Message
	StartedAt  time.Time
	LastActive time.Time
}

// SessionStore keeps chat sessions in memory. Sessions are scoped to a
// connection's lifetime; there is nothing to persist across restarts.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Open starts a new session and returns its id.
func (s *SessionStore) Open() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActive) > sessionIdleTTL {
			delete(s.sessions, id)
		}
	}

	id := newSessionID()
	s.sessions[id] = &Session{ID: id, StartedAt: now, LastActive: now}
	return id
}

// History returns a copy of the session's turns, oldest first. An
// unknown or expired session yields nil.
func (s *SessionStore) History(id string) []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]ai.Message, len(sess.Turns))
	copy(out, sess.Turns)
	return out
}

// AppendExchange records one completed question/answer pair.
func (s *SessionStore) AppendExchange(id, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	sess.Turns = append(sess.Turns,
		ai.Message{Role: "user", Content: question},
		ai.Message{Role: "assistant", Content: answer},
	)
	sess.LastActive = time.Now()
	return nil
}

// Close discards the session.
func (s *SessionStore) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func newSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
