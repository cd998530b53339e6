package transfer

import "github.com/relaytransfer/relay/pkg/progress"

// EventType names one of the progress-event shapes in spec.md §3. The
// orchestrator is the only producer; the frontend (out of scope here)
// is the only consumer.
type EventType string

const (
	EventStateChanged          EventType = "StateChanged"
	EventTransferProgress      EventType = "TransferProgress"
	EventFileOffer             EventType = "FileOffer"
	EventFileCompleted         EventType = "FileCompleted"
	EventTransferComplete      EventType = "TransferComplete"
	EventError                 EventType = "Error"
	EventConnectionTypeChanged EventType = "ConnectionTypeChanged"
)

// Event is the single envelope dispatched on the events stream, keyed by
// SessionID (spec.md §6 "Events are dispatched on a single stream keyed
// by session id"). Only the fields relevant to Type are populated.
type Event struct {
	Type      EventType
	SessionID string

	State string // StateChanged

	Progress progress.Snapshot // TransferProgress
	File     string            // TransferProgress current file, FileCompleted name

	Files []FileDescriptor // FileOffer

	Message string // Error

	ConnectionType string // ConnectionTypeChanged: "direct" or "relay"
}

// Emitter is the narrow interface the state machines need to publish
// events; satisfied by ChanEmitter, a buffered chan Event, in production
// and in tests.
type Emitter interface {
	Emit(Event)
}

// ChanEmitter adapts a chan Event to Emitter, dropping the event instead
// of blocking forever if the consumer has stopped draining — a stalled
// UI must never wedge the transfer state machine.
type ChanEmitter chan Event

func (c ChanEmitter) Emit(e Event) {
	select {
	case c <- e:
	default:
	}
}
