package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a Message into its compact tagged binary form: one
// tag byte followed by the variant's fields, each string/slice prefixed
// by its own length so Decode never has to guess where a field ends.
func Encode(m Message) []byte {
	switch m.Tag {
	case TagFileOffer:
		buf := []byte{byte(m.Tag)}
		buf = appendString(buf, m.SessionID)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(m.Files)))
		for _, f := range m.Files {
			buf = appendString(buf, f.Name)
			buf = binary.BigEndian.AppendUint64(buf, f.Size)
			buf = appendString(buf, f.RelativePath)
		}
		return buf

	case TagFileAccept, TagFileDecline, TagTransferComplete, TagPing, TagPong:
		return []byte{byte(m.Tag)}

	case TagFileChunk:
		buf := []byte{byte(m.Tag)}
		buf = binary.BigEndian.AppendUint16(buf, m.FileIndex)
		buf = binary.BigEndian.AppendUint32(buf, m.ChunkIndex)
		buf = append(buf, m.Nonce[:]...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(m.Ciphertext)))
		buf = append(buf, m.Ciphertext...)
		return buf

	case TagFileComplete:
		buf := []byte{byte(m.Tag)}
		buf = binary.BigEndian.AppendUint16(buf, m.FileIndex)
		buf = append(buf, m.SHA256[:]...)
		return buf

	case TagFileVerified:
		buf := []byte{byte(m.Tag)}
		buf = binary.BigEndian.AppendUint16(buf, m.FileIndex)
		return buf

	case TagCancel:
		buf := []byte{byte(m.Tag)}
		buf = appendString(buf, m.Reason)
		return buf

	default:
		panic(fmt.Sprintf("protocol: Encode: unknown tag %v", m.Tag))
	}
}

// Decode parses the body of one frame (length prefix already consumed
// by the caller) into a Message. It returns a precise error on
// truncation or an unrecognized tag.
func Decode(body []byte) (Message, error) {
	if len(body) < 1 {
		return Message{}, fmt.Errorf("protocol: empty frame body")
	}
	tag := Tag(body[0])
	rest := body[1:]

	switch tag {
	case TagFileOffer:
		sessionID, rest, err := takeString(rest)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: FileOffer session_id: %w", err)
		}
		count, rest, err := takeUint32(rest)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: FileOffer file count: %w", err)
		}
		files := make([]FileDescriptor, 0, count)
		for i := uint32(0); i < count; i++ {
			var name, relPath string
			var size uint64
			name, rest, err = takeString(rest)
			if err != nil {
				return Message{}, fmt.Errorf("protocol: FileOffer file[%d] name: %w", i, err)
			}
			size, rest, err = takeUint64(rest)
			if err != nil {
				return Message{}, fmt.Errorf("protocol: FileOffer file[%d] size: %w", i, err)
			}
			relPath, rest, err = takeString(rest)
			if err != nil {
				return Message{}, fmt.Errorf("protocol: FileOffer file[%d] relative_path: %w", i, err)
			}
			files = append(files, FileDescriptor{Name: name, Size: size, RelativePath: relPath})
		}
		return Message{Tag: TagFileOffer, SessionID: sessionID, Files: files}, nil

	case TagFileAccept:
		return Message{Tag: TagFileAccept}, nil
	case TagFileDecline:
		return Message{Tag: TagFileDecline}, nil
	case TagTransferComplete:
		return Message{Tag: TagTransferComplete}, nil
	case TagPing:
		return Message{Tag: TagPing}, nil
	case TagPong:
		return Message{Tag: TagPong}, nil

	case TagFileChunk:
		fileIndex, rest, err := takeUint16(rest)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: FileChunk file_index: %w", err)
		}
		chunkIndex, rest, err := takeUint32(rest)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: FileChunk chunk_index: %w", err)
		}
		if len(rest) < 12 {
			return Message{}, fmt.Errorf("protocol: FileChunk nonce truncated")
		}
		var nonce [12]byte
		copy(nonce[:], rest[:12])
		rest = rest[12:]
		ctLen, rest, err := takeUint32(rest)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: FileChunk ciphertext length: %w", err)
		}
		if uint32(len(rest)) < ctLen {
			return Message{}, fmt.Errorf("protocol: FileChunk ciphertext truncated: want %d have %d", ctLen, len(rest))
		}
		ciphertext := append([]byte(nil), rest[:ctLen]...)
		return Message{Tag: TagFileChunk, FileIndex: fileIndex, ChunkIndex: chunkIndex, Nonce: nonce, Ciphertext: ciphertext}, nil

	case TagFileComplete:
		fileIndex, rest, err := takeUint16(rest)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: FileComplete file_index: %w", err)
		}
		if len(rest) < 32 {
			return Message{}, fmt.Errorf("protocol: FileComplete sha256 truncated")
		}
		var sum [32]byte
		copy(sum[:], rest[:32])
		return Message{Tag: TagFileComplete, FileIndex: fileIndex, SHA256: sum}, nil

	case TagFileVerified:
		fileIndex, _, err := takeUint16(rest)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: FileVerified file_index: %w", err)
		}
		return Message{Tag: TagFileVerified, FileIndex: fileIndex}, nil

	case TagCancel:
		reason, _, err := takeString(rest)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: Cancel reason: %w", err)
		}
		return Message{Tag: TagCancel, Reason: reason}, nil

	default:
		return Message{}, fmt.Errorf("protocol: unknown tag %d", tag)
	}
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func takeString(buf []byte) (string, []byte, error) {
	n, rest, err := takeUint32(buf)
	if err != nil {
		return "", nil, err
	}
	if uint32(len(rest)) < n {
		return "", nil, fmt.Errorf("string truncated: want %d have %d", n, len(rest))
	}
	return string(rest[:n]), rest[n:], nil
}

func takeUint16(buf []byte) (uint16, []byte, error) {
	if len(buf) < 2 {
		return 0, nil, fmt.Errorf("uint16 truncated")
	}
	return binary.BigEndian.Uint16(buf), buf[2:], nil
}

func takeUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, fmt.Errorf("uint32 truncated")
	}
	return binary.BigEndian.Uint32(buf), buf[4:], nil
}

func takeUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("uint64 truncated")
	}
	return binary.BigEndian.Uint64(buf), buf[8:], nil
}
