// Package protocol implements the transport-agnostic framed peer
// protocol: a tagged binary message union, a compact self-describing
// codec, and the 4-byte length-prefixed framing shared by both the
// direct QUIC transport and the relay transport. The framing discipline
// (explicit length prefix, readFull/writeFull-style exact reads) follows
// common.go's receiveMessage/sendMessage; the wire format itself is a
// simpler flat tag+fields encoding rather than greenpack/msgp, since the
// peer protocol has a small, fixed set of message shapes known up front.
package protocol

import "fmt"

// Tag identifies a message variant on the wire. Values are stable across
// versions; new tags are only ever appended.
type Tag byte

const (
	TagFileOffer Tag = iota + 1
	TagFileAccept
	TagFileDecline
	TagFileChunk
	TagFileComplete
	TagFileVerified
	TagTransferComplete
	TagCancel
	TagPing
	TagPong
)

func (t Tag) String() string {
	switch t {
	case TagFileOffer:
		return "FileOffer"
	case TagFileAccept:
		return "FileAccept"
	case TagFileDecline:
		return "FileDecline"
	case TagFileChunk:
		return "FileChunk"
	case TagFileComplete:
		return "FileComplete"
	case TagFileVerified:
		return "FileVerified"
	case TagTransferComplete:
		return "TransferComplete"
	case TagCancel:
		return "Cancel"
	case TagPing:
		return "Ping"
	case TagPong:
		return "Pong"
	default:
		return fmt.Sprintf("Tag(%d)", t)
	}
}

// FileDescriptor names one file (or one entry of a folder transfer)
// offered in a FileOffer.
type FileDescriptor struct {
	Name         string
	Size         uint64
	RelativePath string // empty for single-file transfers
}

// Message is the tagged union of every peer-protocol wire message. Only
// the fields relevant to Tag are populated; the zero value of the rest
// is ignored by Encode.
type Message struct {
	Tag Tag

	// FileOffer
	SessionID string
	Files     []FileDescriptor

	// FileChunk
	FileIndex  uint16
	ChunkIndex uint32
	Nonce      [12]byte
	Ciphertext []byte

	// FileComplete
	SHA256 [32]byte

	// FileVerified reuses FileIndex above.

	// Cancel
	Reason string
}

func FileOffer(sessionID string, files []FileDescriptor) Message {
	return Message{Tag: TagFileOffer, SessionID: sessionID, Files: files}
}

func FileAccept() Message { return Message{Tag: TagFileAccept} }

func FileDecline() Message { return Message{Tag: TagFileDecline} }

func FileChunk(fileIndex uint16, chunkIndex uint32, nonce [12]byte, ciphertext []byte) Message {
	return Message{Tag: TagFileChunk, FileIndex: fileIndex, ChunkIndex: chunkIndex, Nonce: nonce, Ciphertext: ciphertext}
}

func FileComplete(fileIndex uint16, sha256 [32]byte) Message {
	return Message{Tag: TagFileComplete, FileIndex: fileIndex, SHA256: sha256}
}

func FileVerified(fileIndex uint16) Message {
	return Message{Tag: TagFileVerified, FileIndex: fileIndex}
}

func TransferComplete() Message { return Message{Tag: TagTransferComplete} }

func Cancel(reason string) Message {
	return Message{Tag: TagCancel, Reason: reason}
}

func Ping() Message { return Message{Tag: TagPing} }

func Pong() Message { return Message{Tag: TagPong} }
