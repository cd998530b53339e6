package signaling

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client drives one side of the signaling handshake described in
// spec.md §4.5/§6: register, await peer_joined, forward spake2 and
// cert_fingerprint frames, then negotiate relay_request/relay_active/
// relay_ready. Once relay is active the underlying connection is handed
// off to pkg/transport.NewRelay via Conn/Release.
type Client struct {
	conn *websocket.Conn
}

// Dial opens the rendezvous WebSocket for the given code. serverURL is
// an http(s):// base URL; it is rewritten to ws(s)://.../ws/{code}.
func Dial(ctx context.Context, serverURL, code string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("signaling: parsing server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + code

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("signaling: dial %s: %w", u.String(), err)
	}
	return &Client{conn: conn}, nil
}

// Register sends the first frame the server requires: role and local
// network info.
func (c *Client) Register(role string, info *PeerInfo) error {
	return c.conn.WriteJSON(Register(role, info))
}

// AwaitPeerJoined blocks (bounded by ctx) until the server announces the
// other peer, or returns an error frame / disconnect / timeout.
func (c *Client) AwaitPeerJoined(ctx context.Context) (*PeerInfo, error) {
	m, err := c.readWithContext(ctx)
	if err != nil {
		return nil, err
	}
	if m.Type != TypePeerJoined {
		return nil, fmt.Errorf("signaling: unexpected message %q while awaiting peer_joined", m.Type)
	}
	return m.PeerInfo, nil
}

// SendSpake2 forwards this side's outbound PAKE message.
func (c *Client) SendSpake2(payload []byte) error {
	return c.conn.WriteJSON(Spake2(payload))
}

// RecvSpake2 waits for the peer's forwarded PAKE message.
func (c *Client) RecvSpake2(ctx context.Context) ([]byte, error) {
	m, err := c.readWithContext(ctx)
	if err != nil {
		return nil, err
	}
	if m.Type != TypeSpake2 {
		return nil, fmt.Errorf("signaling: unexpected message %q while awaiting spake2", m.Type)
	}
	return DecodeOpaque(m.Payload)
}

// SendCertFingerprint forwards this side's AEAD-wrapped fingerprint.
func (c *Client) SendCertFingerprint(payload []byte) error {
	return c.conn.WriteJSON(CertFingerprint(payload))
}

// RecvCertFingerprint waits for the peer's forwarded fingerprint.
func (c *Client) RecvCertFingerprint(ctx context.Context) ([]byte, error) {
	m, err := c.readWithContext(ctx)
	if err != nil {
		return nil, err
	}
	if m.Type != TypeCertFingerprint {
		return nil, fmt.Errorf("signaling: unexpected message %q while awaiting cert_fingerprint", m.Type)
	}
	return DecodeOpaque(m.Payload)
}

// RequestRelay asks the server to enter relay mode for this session.
func (c *Client) RequestRelay() error {
	return c.conn.WriteJSON(RelayRequest())
}

// AwaitRelayActive blocks until the server confirms both peers want
// relay (spec.md's relay-ack timeout, 10s, is enforced by ctx).
func (c *Client) AwaitRelayActive(ctx context.Context) error {
	m, err := c.readWithContext(ctx)
	if err != nil {
		return err
	}
	if m.Type != TypeRelayActive {
		return fmt.Errorf("signaling: unexpected message %q while awaiting relay_active", m.Type)
	}
	return nil
}

// SendRelayReady acknowledges relay_active, letting the server's
// forwardLoop for this peer exit and the binary pumps take over.
func (c *Client) SendRelayReady() error {
	return c.conn.WriteJSON(RelayReady())
}

// Disconnect tells the server this peer is leaving voluntarily.
func (c *Client) Disconnect() error {
	return c.conn.WriteJSON(Disconnect())
}

// Conn exposes the underlying WebSocket for handoff to
// pkg/transport.NewRelay once relay_ready has been sent: the spec's
// single-connection relay model re-uses this same socket rather than
// opening a second one (DESIGN.md, Open Question).
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// Close closes the signaling connection without a graceful disconnect
// frame, used on error paths and after the direct transport succeeds.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) readWithContext(ctx context.Context) (Message, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
	}
	var m Message
	if err := c.conn.ReadJSON(&m); err != nil {
		return Message{}, fmt.Errorf("signaling: read: %w", err)
	}
	if m.Type == TypeError {
		return m, fmt.Errorf("signaling: server error %s: %s", m.Code, m.Message)
	}
	return m, nil
}
