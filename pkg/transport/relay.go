package transport

import (
	"bytes"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/relaytransfer/relay/pkg/protocol"
)

// Relay is a thin adapter over an already-negotiated relay WebSocket
// (spec.md §4.4): it encodes/decodes the same length-prefixed frames as
// Direct, one per binary WebSocket message, and does not interpret
// payload contents — the rendezvous server only ever sees ciphertext.
type Relay struct {
	conn *websocket.Conn
}

// NewRelay wraps a WebSocket connection that has already completed the
// relay_active/relay_ready handshake with the rendezvous server.
func NewRelay(conn *websocket.Conn) *Relay {
	return &Relay{conn: conn}
}

// SendMessage encodes m (length prefix retained for codec symmetry with
// Direct, even though one binary WebSocket message is already
// self-delimiting) and writes it as a single binary frame.
func (r *Relay) SendMessage(m protocol.Message) error {
	var buf bytes.Buffer
	if err := protocol.WriteFrame(&buf, m); err != nil {
		return fmt.Errorf("transport: relay encode: %w", err)
	}
	if err := r.conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		return fmt.Errorf("transport: relay write: %w", err)
	}
	return nil
}

// RecvMessage reads one binary WebSocket message and decodes it. A text,
// ping, or pong frame arriving here indicates the server mis-delivered a
// signaling frame after relay_active; that is treated as a protocol
// error rather than silently ignored, since the client side (unlike the
// server's forwarding pumps) has nothing else useful to do with it.
func (r *Relay) RecvMessage() (protocol.Message, error) {
	messageType, data, err := r.conn.ReadMessage()
	if err != nil {
		return protocol.Message{}, fmt.Errorf("transport: relay read: %w", err)
	}
	if messageType != websocket.BinaryMessage {
		return protocol.Message{}, fmt.Errorf("transport: relay: unexpected WebSocket message type %d", messageType)
	}
	return protocol.ReadFrame(bytes.NewReader(data))
}

func (r *Relay) Close() error {
	_ = r.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return r.conn.Close()
}

func (r *Relay) Kind() Kind { return KindRelay }
