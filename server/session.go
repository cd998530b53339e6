// Package server implements the rendezvous signaling and relay service
// (spec.md §4.5): session admission by short code, JSON signaling
// forwarding, relay negotiation, and a bandwidth-limited bidirectional
// ciphertext relay once both peers request it. Grounded directly on
// original_source/server/{session,server,handler,relay,health,main}.go,
// the Go implementation this section of the spec was distilled from,
// restructured to fit this module's idiom: idem.Halter-driven cleanup
// instead of a bare ticker goroutine, and Prometheus metrics alongside
// the health endpoint.
package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaytransfer/relay/pkg/signaling"
)

// Session is one rendezvous slot pair keyed by transfer code (spec.md
// §3 "Session (server-side)"). Relay flags transition monotonically:
// requested → active, never back.
type Session struct {
	Code      string
	Sender    *Peer
	Receiver  *Peer
	CreatedAt time.Time
	ExpiresAt time.Time

	SenderWantsRelay   bool
	ReceiverWantsRelay bool
	RelayActive        bool

	// relayDone is closed by the sender's handler once the binary relay
	// phase finishes; the receiver's handler waits on it so its HTTP
	// connection stays alive for the duration (spec.md §9 design notes).
	relayDone chan struct{}

	mu sync.Mutex
}

func newSession(code string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		relayDone: make(chan struct{}),
	}
}

// BothConnected reports whether both slots are occupied.
func (s *Session) BothConnected() bool {
	return s.Sender != nil && s.Receiver != nil
}

// OtherPeer returns the peer opposite p, or nil.
func (s *Session) OtherPeer(p *Peer) *Peer {
	if p == s.Sender {
		return s.Receiver
	}
	return s.Sender
}

// Close closes both peer connections. Caller holds no lock on entry;
// Close takes the session lock itself.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Sender != nil {
		s.Sender.Close()
		s.Sender = nil
	}
	if s.Receiver != nil {
		s.Receiver.Close()
		s.Receiver = nil
	}
}

// Peer is one side of a signaling session (spec.md §3 "Peer
// (server-side)"). The write lock serializes frames onto the
// connection; concurrent reads are not permitted, matching the spec's
// concurrency contract (§5).
type Peer struct {
	Conn *websocket.Conn
	Role string
	Info *signaling.PeerInfo
	Done chan struct{}

	writeMu sync.Mutex
}

// WriteJSON sends a signaling message, safe for concurrent callers.
func (p *Peer) WriteJSON(v interface{}) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.Conn.WriteJSON(v)
}

// Close closes the peer's WebSocket connection with a normal close
// frame and marks Done, idempotently.
func (p *Peer) Close() {
	if p.Conn != nil {
		p.writeMu.Lock()
		p.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		p.writeMu.Unlock()
		p.Conn.Close()
	}
	select {
	case <-p.Done:
	default:
		close(p.Done)
	}
}
