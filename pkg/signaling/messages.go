// Package signaling defines the JSON wire protocol spoken over the
// rendezvous WebSocket before a session switches to binary relay
// frames, and a client-side wrapper for driving it. Grounded directly on
// original_source/server/handler.go and session.go — the Go signaling
// server this spec's §4.5/§6 sections were distilled from.
package signaling

import json "github.com/goccy/go-json"

// Message is the envelope for every signaling frame, spec.md §6.
type Message struct {
	Type     string          `json:"type"`
	Role     string          `json:"role,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Message  string          `json:"message,omitempty"`
	Code     string          `json:"code,omitempty"`
	PeerInfo *PeerInfo       `json:"peer_info,omitempty"`
}

// PeerInfo carries network information about a peer, exchanged during
// registration and relayed back in peer_joined.
type PeerInfo struct {
	PublicIP   string `json:"public_ip"`
	PublicPort int    `json:"public_port"`
	LocalIP    string `json:"local_ip,omitempty"`
	LocalPort  int    `json:"local_port,omitempty"`
}

// Role values accepted in a register message.
const (
	RoleSender   = "sender"
	RoleReceiver = "receiver"
)

// Message types, spec.md §6.
const (
	TypeRegister        = "register"
	TypePeerJoined      = "peer_joined"
	TypeSpake2          = "spake2"
	TypeCertFingerprint = "cert_fingerprint"
	TypeRelayRequest    = "relay_request"
	TypeRelayActive     = "relay_active"
	TypeRelayReady      = "relay_ready"
	TypePeerDisconnected = "peer_disconnected"
	TypeError           = "error"
	TypeDisconnect      = "disconnect"
)

// Server error codes, spec.md §4.5.
const (
	ErrCodeInUse       = "CODE_IN_USE"
	ErrInvalidMessage  = "INVALID_MESSAGE"
	ErrUnknownType     = "UNKNOWN_TYPE"
)

func Register(role string, info *PeerInfo) Message {
	return Message{Type: TypeRegister, Role: role, PeerInfo: info}
}

func PeerJoined(info *PeerInfo) Message {
	return Message{Type: TypePeerJoined, PeerInfo: info}
}

func Spake2(payload []byte) Message {
	return Message{Type: TypeSpake2, Payload: json.RawMessage(marshalOpaque(payload))}
}

func CertFingerprint(payload []byte) Message {
	return Message{Type: TypeCertFingerprint, Payload: json.RawMessage(marshalOpaque(payload))}
}

func RelayRequest() Message { return Message{Type: TypeRelayRequest} }

func RelayActive() Message { return Message{Type: TypeRelayActive} }

func RelayReady() Message { return Message{Type: TypeRelayReady} }

func PeerDisconnected(message string) Message {
	return Message{Type: TypePeerDisconnected, Message: message}
}

func Error(code, message string) Message {
	return Message{Type: TypeError, Code: code, Message: message}
}

func Disconnect() Message { return Message{Type: TypeDisconnect} }

// marshalOpaque JSON-encodes an opaque byte payload as a base64 string,
// matching encoding/json's default []byte handling; kept as a named
// helper so Spake2/CertFingerprint read as deliberate choices rather
// than accidental use of json.RawMessage(payload) on raw bytes.
func marshalOpaque(payload []byte) []byte {
	encoded, _ := json.Marshal(payload)
	return encoded
}

// DecodeOpaque reverses marshalOpaque, extracting the raw bytes from a
// spake2 or cert_fingerprint message's Payload field.
func DecodeOpaque(payload json.RawMessage) ([]byte, error) {
	var out []byte
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
