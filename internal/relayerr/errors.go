// Package relayerr defines the error taxonomy shared by every layer of
// Relay: crypto, transports, the rendezvous server, and the transfer
// orchestrator all report failures as one of these kinds so that the
// orchestrator can map them onto a terminal progress event without
// re-deriving what went wrong from an opaque error string.
package relayerr

import "fmt"

// Kind classifies a failure the way the transfer orchestrator needs to
// react to it: some kinds are worth a local retry, all of them are
// eventually surfaced to the user, none of them are allowed to panic.
type Kind int

const (
	// Crypto covers PAKE failures, AEAD authentication failures, and
	// checksum mismatches. The two sides used different transfer codes,
	// or the ciphertext was tampered with in transit.
	Crypto Kind = iota
	// Network covers dial failures, read/write I/O errors, and timeouts
	// on a transport.
	Network
	// Protocol covers frame decode errors, unknown message tags, and
	// out-of-order chunk delivery.
	Protocol
	// Transfer covers file-open failures, disk-full conditions, checksum
	// mismatches discovered at the file layer, and descriptor rejection
	// during path sanitization.
	Transfer
	// Signaling covers the rendezvous-specific error codes (CODE_IN_USE,
	// INVALID_MESSAGE, UNKNOWN_TYPE) and unexpected peer disconnects.
	Signaling
	// Cancelled marks a session torn down by a local or remote cancel.
	Cancelled
	// PeerRejected marks a FileDecline from the remote peer.
	PeerRejected
)

func (k Kind) String() string {
	switch k {
	case Crypto:
		return "Crypto"
	case Network:
		return "Network"
	case Protocol:
		return "Protocol"
	case Transfer:
		return "Transfer"
	case Signaling:
		return "Signaling"
	case Cancelled:
		return "Cancelled"
	case PeerRejected:
		return "PeerRejected"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with the Kind the orchestrator uses to
// decide what to do next: retry the next dial candidate, fall back to
// relay, or give up and report to the user.
type Error struct {
	Kind Kind
	Err  error
}

func New(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, a...)}
}

func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, relayerr.Of(relayerr.Crypto)) read naturally by comparing
// against a bare Kind value wrapped with Of.
type kindSentinel Kind

func (k kindSentinel) Error() string { return Kind(k).String() }

// Of returns a sentinel error usable with errors.Is to test an error's Kind,
// e.g. errors.Is(err, relayerr.Of(relayerr.Crypto)).
func Of(k Kind) error { return kindSentinel(k) }

func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if ks, ok := target.(kindSentinel); ok {
		return Kind(ks) == e.Kind
	}
	return false
}
