package session

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	kind       Kind
	lines      []Line
	lastActive time.Time
}

// MemoryStore keeps cart sessions in process memory. Sessions are not swept
// in the background; expiry is detected the next time a session is read.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	timeout  time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-memory session store. A non-positive timeout
// falls back to DefaultTimeout.
func NewMemoryStore(timeout time.Duration) *MemoryStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		timeout:  timeout,
		now:      time.Now,
	}
}

func (s *MemoryStore) Start(_ context.Context, userID string, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = &memorySession{kind: kind, lastActive: s.now()}
	return nil
}

func (s *MemoryStore) AddLine(_ context.Context, userID string, line Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(userID)
	if sess == nil {
		// Tolerate out-of-order calls from the interaction surface.
		sess = &memorySession{kind: KindBuy}
		s.sessions[userID] = sess
	}
	sess.lines = append(sess.lines, line)
	sess.lastActive = s.now()
	return nil
}

func (s *MemoryStore) Lines(_ context.Context, userID string) ([]Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(userID)
	if sess == nil {
		return nil, nil
	}
	out := make([]Line, len(sess.lines))
	copy(out, sess.lines)
	return out, nil
}

func (s *MemoryStore) Kind(_ context.Context, userID string) (Kind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(userID)
	if sess == nil {
		return "", nil
	}
	return sess.kind, nil
}

func (s *MemoryStore) RemoveLast(_ context.Context, userID string) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(userID)
	if sess == nil || len(sess.lines) == 0 {
		return Line{}, ErrEmptyCart
	}
	last := sess.lines[len(sess.lines)-1]
	sess.lines = sess.lines[:len(sess.lines)-1]
	sess.lastActive = s.now()
	return last, nil
}

func (s *MemoryStore) SetLines(_ context.Context, userID string, lines []Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(userID)
	if sess == nil {
		sess = &memorySession{kind: KindBuy}
		s.sessions[userID] = sess
	}
	sess.lines = append([]Line(nil), lines...)
	sess.lastActive = s.now()
	return nil
}

func (s *MemoryStore) End(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *MemoryStore) Active(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(userID) != nil, nil
}

// live returns the user's session if it has not expired, evicting it
// otherwise. Callers must hold the write lock.
func (s *MemoryStore) live(userID string) *memorySession {
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	if s.now().Sub(sess.lastActive) >= s.timeout {
		delete(s.sessions, userID)
		return nil
	}
	return sess
}
