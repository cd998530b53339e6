package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/glycerine/idem"

	"github.com/relaytransfer/relay/internal/ratelimit"
)

// Server owns the session registry and the shared relay rate limiter.
// The session map is guarded by a read/write mutex; each session guards
// its own slot mutation (spec.md §5 concurrency contract).
type Server struct {
	sessions     map[string]*Session
	mu           sync.RWMutex
	maxSessions  int
	sessionTTL   time.Duration
	relayLimiter *ratelimit.Limiter
	metrics      *Metrics

	halt *idem.Halter
}

// NewServer creates a Server with the given capacity, TTL, and relay
// rate limit (bytes/second).
func NewServer(maxSessions int, sessionTTL time.Duration, relayRateLimit int64, metrics *Metrics) *Server {
	return &Server{
		sessions:     make(map[string]*Session),
		maxSessions:  maxSessions,
		sessionTTL:   sessionTTL,
		relayLimiter: ratelimit.New(relayRateLimit),
		metrics:      metrics,
		halt:         idem.NewHalterNamed("relay-rendezvous-server"),
	}
}

// GetOrCreateSession returns the session for code, creating one if
// needed. Returns an error if the requested role slot is already
// occupied, or if creating a new session would exceed capacity.
func (s *Server) GetOrCreateSession(code string, role string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[code]
	if exists {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		if role == "sender" && sess.Sender != nil {
			return nil, fmt.Errorf("server: sender already connected for code %s", code)
		}
		if role == "receiver" && sess.Receiver != nil {
			return nil, fmt.Errorf("server: receiver already connected for code %s", code)
		}
		return sess, nil
	}

	if len(s.sessions) >= s.maxSessions {
		return nil, fmt.Errorf("server: max sessions reached (%d)", s.maxSessions)
	}

	sess = newSession(code, s.sessionTTL)
	s.sessions[code] = sess
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(len(s.sessions)))
	}
	return sess, nil
}

// RemoveSession deletes a session by code.
func (s *Server) RemoveSession(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(len(s.sessions)))
	}
}

// SessionCount returns the number of active sessions. It can transiently
// read 0 between both peers leaving and the next cleanup sweep — the
// health endpoint's documented semantics (spec.md §9, Open Question).
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run starts the background cleanup sweep and blocks until Stop is
// called, mirroring the teacher's halt.ReqStop/Done handshake instead of
// a bare unmanaged goroutine.
func (s *Server) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer s.halt.Done.Close()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.halt.ReqStop.Chan:
			return
		}
	}
}

// Stop requests the cleanup loop to exit and waits for it to do so.
func (s *Server) Stop() {
	s.halt.ReqStop.Close()
	<-s.halt.Done.Chan
}

func (s *Server) cleanupExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for code, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			log.Printf("server: cleaning up expired session %s", code)
			sess.Close()
			delete(s.sessions, code)
		}
	}
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(len(s.sessions)))
	}
}
