// Package relayclient is the imperative command surface a frontend
// drives the transfer core through: start_send, start_receive,
// accept_transfer, cancel_transfer, plus a single events stream keyed
// by session id (spec.md §6 "Client command surface"). Everything a
// desktop shell or CLI needs is reachable from a *Client; no caller
// ever touches pkg/transfer directly.
package relayclient

import (
	cryrand "crypto/rand"
	"sync"

	cristalbase64 "github.com/cristalhq/base64"

	"github.com/relaytransfer/relay/pkg/transfer"
)

// DefaultSignalServerURL is used by StartSend/StartReceive when the
// caller passes an empty signalServerURL.
const DefaultSignalServerURL = "ws://localhost:8080"

// SendHandle is returned by StartSend: the code to share out of band,
// the session id used for all later calls and events, and the local
// port the sender declared to the rendezvous server (informational,
// mirrors spec.md §6's start_send return shape).
type SendHandle struct {
	Code      string
	SessionID string
	Port      int
}

// Client owns every in-flight send/receive session and multiplexes
// their events onto a single channel, matching the teacher's pattern of
// one shared notification channel for many concurrently-running
// operations (e.g. rpc25519.Client's single error/notify channel fed by
// several goroutines) rather than a channel per session.
type Client struct {
	mu       sync.Mutex
	sessions map[string]*session
	events   chan transfer.Event
}

type session struct {
	cancel func()
	accept func(bool) // set only for a receiver session
}

// New creates a Client. eventBuffer sizes the shared events channel;
// callers that don't drain promptly will see events dropped rather than
// stalling a transfer (transfer.ChanEmitter's documented behavior).
func New(eventBuffer int) *Client {
	if eventBuffer <= 0 {
		eventBuffer = 256
	}
	return &Client{
		sessions: make(map[string]*session),
		events:   make(chan transfer.Event, eventBuffer),
	}
}

// Events returns the single stream every session's progress, state, and
// error events are dispatched on, keyed by SessionID.
func (c *Client) Events() <-chan transfer.Event {
	return c.events
}

func newSessionID() (string, error) {
	var b [21]byte
	if _, err := cryrand.Read(b[:]); err != nil {
		return "", err
	}
	return cristalbase64.URLEncoding.EncodeToString(b[:]), nil
}

func (c *Client) register(id string, cancel func(), accept func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[id] = &session{cancel: cancel, accept: accept}
}

func (c *Client) unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}
