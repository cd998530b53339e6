package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func TestHealthEndpointReportsZeroSessions(t *testing.T) {
	srv := NewServer(100, 10*time.Minute, 10*1024*1024, newTestMetrics())
	if got := srv.SessionCount(); got != 0 {
		t.Fatalf("expected 0 sessions, got %d", got)
	}
}

func TestSessionCreation(t *testing.T) {
	srv := NewServer(100, 10*time.Minute, 10*1024*1024, newTestMetrics())

	sess, err := srv.GetOrCreateSession("abc123", "sender")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Code != "abc123" {
		t.Errorf("expected code abc123, got %s", sess.Code)
	}
	if srv.SessionCount() != 1 {
		t.Errorf("expected 1 session, got %d", srv.SessionCount())
	}
}

func TestSessionExpiry(t *testing.T) {
	srv := NewServer(100, 1*time.Millisecond, 10*1024*1024, newTestMetrics())

	if _, err := srv.GetOrCreateSession("expire-me", "sender"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	srv.cleanupExpired()

	if srv.SessionCount() != 0 {
		t.Errorf("expected 0 sessions after cleanup, got %d", srv.SessionCount())
	}
}

func TestMaxSessions(t *testing.T) {
	srv := NewServer(2, 10*time.Minute, 10*1024*1024, newTestMetrics())

	if _, err := srv.GetOrCreateSession("s1", "sender"); err != nil {
		t.Fatalf("unexpected error creating session 1: %v", err)
	}
	if _, err := srv.GetOrCreateSession("s2", "sender"); err != nil {
		t.Fatalf("unexpected error creating session 2: %v", err)
	}

	if _, err := srv.GetOrCreateSession("s3", "sender"); err == nil {
		t.Fatalf("expected error creating session beyond capacity")
	}
}

func TestDuplicateRoleRejected(t *testing.T) {
	srv := NewServer(100, 10*time.Minute, 10*1024*1024, newTestMetrics())

	if _, err := srv.GetOrCreateSession("dup", "sender"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := srv.GetOrCreateSession("dup", "sender"); err == nil {
		t.Fatalf("expected error registering duplicate sender role")
	}
	if _, err := srv.GetOrCreateSession("dup", "receiver"); err != nil {
		t.Fatalf("unexpected error registering receiver role: %v", err)
	}
}

func TestRunStopCleansUpLoop(t *testing.T) {
	srv := NewServer(100, 10*time.Minute, 10*1024*1024, newTestMetrics())
	done := make(chan struct{})
	go func() {
		srv.Run(10 * time.Millisecond)
		close(done)
	}()

	srv.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not exit after Stop")
	}
}
