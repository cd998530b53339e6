package protocol

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	encoded := Encode(m)
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode(%v): %v", m.Tag, err)
	}
	return got
}

func TestEncodeDecodeEveryVariant(t *testing.T) {
	nonce := [12]byte{1, 2, 3}
	var sum [32]byte
	copy(sum[:], bytes.Repeat([]byte{0x42}, 32))

	cases := []Message{
		FileOffer("sess-1", []FileDescriptor{
			{Name: "a.txt", Size: 10},
			{Name: "b.bin", Size: 20, RelativePath: "sub/b.bin"},
		}),
		FileOffer("sess-empty", nil),
		FileAccept(),
		FileDecline(),
		FileChunk(3, 7, nonce, []byte("ciphertext-bytes")),
		FileChunk(0, 0, nonce, nil),
		FileComplete(1, sum),
		FileVerified(2),
		TransferComplete(),
		Cancel("user requested"),
		Cancel(""),
		Ping(),
		Pong(),
	}

	for _, want := range cases {
		got := roundTrip(t, want)
		if got.Tag != want.Tag {
			t.Fatalf("tag mismatch: got %v want %v", got.Tag, want.Tag)
		}
		switch want.Tag {
		case TagFileOffer:
			if got.SessionID != want.SessionID || len(got.Files) != len(want.Files) {
				t.Fatalf("FileOffer mismatch: got %+v want %+v", got, want)
			}
			for i := range want.Files {
				if got.Files[i] != want.Files[i] {
					t.Fatalf("FileOffer.Files[%d] mismatch: got %+v want %+v", i, got.Files[i], want.Files[i])
				}
			}
		case TagFileChunk:
			if got.FileIndex != want.FileIndex || got.ChunkIndex != want.ChunkIndex || got.Nonce != want.Nonce || !bytes.Equal(got.Ciphertext, want.Ciphertext) {
				t.Fatalf("FileChunk mismatch: got %+v want %+v", got, want)
			}
		case TagFileComplete:
			if got.FileIndex != want.FileIndex || got.SHA256 != want.SHA256 {
				t.Fatalf("FileComplete mismatch: got %+v want %+v", got, want)
			}
		case TagFileVerified:
			if got.FileIndex != want.FileIndex {
				t.Fatalf("FileVerified mismatch: got %+v want %+v", got, want)
			}
		case TagCancel:
			if got.Reason != want.Reason {
				t.Fatalf("Cancel mismatch: got %+v want %+v", got, want)
			}
		}
	}
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	full := Encode(FileChunk(1, 1, [12]byte{}, []byte("payload")))
	for n := 0; n < len(full); n++ {
		if _, err := Decode(full[:n]); err == nil {
			t.Fatalf("expected error decoding truncated frame of length %d", n)
		}
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	if _, err := Decode([]byte{0xFF}); err == nil {
		t.Fatalf("expected error decoding unknown tag")
	}
}

func TestDecodeRejectsEmptyBody(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatalf("expected error decoding empty body")
	}
}
