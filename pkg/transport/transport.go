package transport

import "github.com/relaytransfer/relay/pkg/protocol"

// Transport is the capability set the orchestrator binds to, never to a
// concrete direct or relay variant: "two transports, one peer protocol"
// (spec.md design notes). Implementations are *Direct and *Relay.
type Transport interface {
	SendMessage(m protocol.Message) error
	RecvMessage() (protocol.Message, error)
	Close() error
	// Kind reports which concrete transport this is, so the orchestrator
	// can emit ConnectionTypeChanged without type-asserting.
	Kind() Kind
}

// Kind distinguishes a transport for progress reporting.
type Kind int

const (
	KindDirect Kind = iota
	KindRelay
)

func (k Kind) String() string {
	if k == KindDirect {
		return "direct"
	}
	return "relay"
}
