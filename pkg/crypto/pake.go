package crypto

import (
	"fmt"

	"github.com/schollz/pake/v3"
)

// Role distinguishes the two symmetric PAKE participants. The spec fixes
// a group identity string per role rather than per message order, so a
// sender resuming after a relay reconnect still uses the same role.
type Role int

const (
	RoleSender Role = iota
	RoleReceiver
)

// identity strings fixed per role, spec.md §4.1.
const (
	senderIdentity   = "relay-sender"
	receiverIdentity = "relay-receiver"
)

func (r Role) identity() []byte {
	if r == RoleSender {
		return []byte(senderIdentity)
	}
	return []byte(receiverIdentity)
}

func (r Role) pakeRole() int {
	if r == RoleSender {
		return 0
	}
	return 1
}

// KeyExchange drives one side of the symmetric two-message PAKE run. The
// transfer code is the password; the output is a 32-byte secret derived
// identically on both sides only if they used the same code. A mismatch
// is never detected here — it surfaces later as an AEAD authentication
// failure, exactly as spec.md requires.
type KeyExchange struct {
	role Role
	p    *pake.Pake
}

// NewKeyExchange starts a PAKE run for the given role using password as
// the shared secret (the transfer code's canonical text form).
func NewKeyExchange(role Role, password []byte) (*KeyExchange, error) {
	// curve "siec" is schollz/pake's default group; both identity strings
	// are mixed into the password in a fixed order, so sender and receiver
	// feed the same input and derive the same key from the same code.
	pw := append([]byte(senderIdentity+receiverIdentity), password...)
	p, err := pake.InitCurve(pw, role.pakeRole(), "siec")
	if err != nil {
		return nil, fmt.Errorf("crypto: pake init: %w", err)
	}
	return &KeyExchange{role: role, p: p}, nil
}

// OutboundMessage returns the opaque bytes to forward to the peer via
// signaling as a spake2 message.
func (k *KeyExchange) OutboundMessage() []byte {
	return k.p.Bytes()
}

// ReceivePeerMessage consumes the peer's spake2 payload. It must be
// called exactly once, after OutboundMessage has already been sent.
func (k *KeyExchange) ReceivePeerMessage(peerMsg []byte) error {
	if err := k.p.Update(peerMsg); err != nil {
		return fmt.Errorf("crypto: pake update: %w", err)
	}
	return nil
}

// SessionKey derives the 32-byte shared secret. Call only after
// ReceivePeerMessage has succeeded.
func (k *KeyExchange) SessionKey() ([KeySize]byte, error) {
	var out [KeySize]byte
	sk, err := k.p.SessionKey()
	if err != nil {
		return out, fmt.Errorf("crypto: pake session key: %w", err)
	}
	// schollz/pake derives an arbitrary-length secret; reduce it to the
	// fixed AEAD key size with a dedicated hash rather than truncating,
	// so key material doesn't leak PAKE-internal structure.
	digest := sha256Sum(sk)
	copy(out[:], digest[:])
	return out, nil
}
