package transfer

import (
	"sync/atomic"

	"github.com/relaytransfer/relay/internal/codewords"
	"github.com/relaytransfer/relay/pkg/crypto"
	"github.com/relaytransfer/relay/pkg/progress"
	"github.com/relaytransfer/relay/pkg/transport"
)

// State names a node in the sender/receiver state graphs, spec.md §4.6.
// Both machines share this type so a single StateChanged event shape
// serves both.
type State string

const (
	StateIdle                 State = "Idle"
	StateSignaling            State = "Signaling"
	StateAwaitPeer            State = "AwaitPeer"
	StateKeyExchange          State = "KeyExchange"
	StateFingerprintExchange  State = "FingerprintExchange"
	StateTransportSelect      State = "TransportSelect"
	StateOffering             State = "Offering"
	StateAccepted             State = "Accepted"
	StateDeclined             State = "Declined"
	StateAwaitOffer           State = "AwaitOffer"
	StateAwaitUserDecision    State = "AwaitUserDecision"
	StateStreaming            State = "Streaming"
	StateCompleted            State = "Completed"
	StateCancelled            State = "Cancelled"
	StateErrored              State = "Errored"
)

// Session is the client-side session record, spec.md §3: identity, the
// derived key material, the active transport, and the file list being
// sent or received. Sender and Receiver each embed one.
type Session struct {
	ID   string
	Role crypto.Role
	Code codewords.Code

	Key [crypto.KeySize]byte

	Transport transport.Transport

	Files            []FileDescriptor
	CurrentFileIndex int

	Tracker *progress.Tracker

	cancelled atomic.Bool
}

// Cancel trips the session's cancellation flag. Checked at every
// suspension point in the state machines (spec.md §5).
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether a local or remote cancel has been recorded.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}
