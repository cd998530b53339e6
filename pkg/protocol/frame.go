package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrame caps a single frame's body at 16MiB, well above the largest
// legitimate payload (one 262144-byte chunk plus AEAD overhead and
// framing), as a guard against a corrupt or hostile length prefix
// demanding an unbounded allocation.
const maxFrame = 16 * 1024 * 1024

// WriteFrame serializes m and writes it to w as a 4-byte big-endian
// length prefix followed by the encoded body, mirroring the
// length-then-payload discipline of common.go's sendMessage.
func WriteFrame(w io.Writer, m Message) error {
	body := Encode(m)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if err := writeFull(w, lenBuf[:]); err != nil {
		return fmt.Errorf("protocol: writing frame length: %w", err)
	}
	if err := writeFull(w, body); err != nil {
		return fmt.Errorf("protocol: writing frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r and decodes it.
func ReadFrame(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if err := readFull(r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrame {
		return Message{}, fmt.Errorf("protocol: frame body too large: %d bytes", n)
	}

	body := make([]byte, n)
	if err := readFull(r, body); err != nil {
		return Message{}, fmt.Errorf("protocol: reading frame body: %w", err)
	}
	return Decode(body)
}

// readFull reads exactly len(buf) bytes from r, or returns the
// underlying error (including io.EOF/io.ErrUnexpectedEOF on a short
// read).
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// writeFull writes all of buf to w, retrying partial writes the same
// way common.go's writeFull does.
func writeFull(w io.Writer, buf []byte) error {
	need := len(buf)
	total := 0
	for total < need {
		n, err := w.Write(buf[total:])
		total += n
		if total == need {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}
