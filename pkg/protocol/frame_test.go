package protocol

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msgs := []Message{
		FileOffer("sess", []FileDescriptor{{Name: "x", Size: 5}}),
		FileChunk(0, 0, [12]byte{9}, []byte("data")),
		TransferComplete(),
	}

	for _, m := range msgs {
		if err := WriteFrame(&buf, m); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	for i, want := range msgs {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame[%d]: %v", i, err)
		}
		if got.Tag != want.Tag {
			t.Fatalf("frame[%d] tag mismatch: got %v want %v", i, got.Tag, want.Tag)
		}
	}
}

func TestReadFrameReportsEOFOnEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatalf("expected error on oversized frame length")
	}
}

func TestFrameOrderingPreserved(t *testing.T) {
	var buf bytes.Buffer
	for i := uint32(0); i < 5; i++ {
		if err := WriteFrame(&buf, FileChunk(0, i, [12]byte{}, nil)); err != nil {
			t.Fatalf("WriteFrame[%d]: %v", i, err)
		}
	}
	for i := uint32(0); i < 5; i++ {
		m, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame[%d]: %v", i, err)
		}
		if m.ChunkIndex != i {
			t.Fatalf("out-of-order delivery: got chunk_index %d want %d", m.ChunkIndex, i)
		}
	}
}
