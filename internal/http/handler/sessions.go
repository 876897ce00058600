package handler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/PowerInvite/internal/engine/screen"
)

const defaultSessionTTL = 30 * time.Minute

type session struct {
	screen   *screen.Screen
	viewer   string
	lastUsed time.Time
}

// sessions keeps the open screens of all renderers. Idle screens are closed after ttl.
type sessions struct {
	mu    sync.Mutex
	items map[string]*session
	ttl   time.Duration
	now   func() time.Time
}

func newSessions(ttl time.Duration) *sessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessions{
		items: make(map[string]*session),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *sessions) add(sc *screen.Screen, viewer string) string {
	s.sweep()

	id := uuid.New().String()
	s.mu.Lock()
	s.items[id] = &session{screen: sc, viewer: viewer, lastUsed: s.now()}
	s.mu.Unlock()
	return id
}

// get returns the session if it exists and belongs to viewer.
func (s *sessions) get(id, viewer string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok || sess.viewer != viewer {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess, true
}

func (s *sessions) remove(id, viewer string) bool {
	s.mu.Lock()
	sess, ok := s.items[id]
	if ok && sess.viewer == viewer {
		delete(s.items, id)
	}
	s.mu.Unlock()
	if !ok || sess.viewer != viewer {
		return false
	}
	sess.screen.Close()
	return true
}

// sweep closes and forgets idle sessions and returns how many there were.
func (s *sessions) sweep() int {
	cutoff := s.now().Add(-s.ttl)
	var idle []*session

	s.mu.Lock()
	for id, sess := range s.items {
		if sess.lastUsed.Before(cutoff) {
			idle = append(idle, sess)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.screen.Close()
	}
	return len(idle)
}

func (s *sessions) closeAll() {
	s.mu.Lock()
	items := s.items
	s.items = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range items {
		sess.screen.Close()
	}
}
