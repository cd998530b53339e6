package crypto

import (
	"bytes"
	"testing"
)

func TestChunkCipherRoundTrip(t *testing.T) {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}

	sender, err := NewChunkCipher(key)
	if err != nil {
		t.Fatalf("NewChunkCipher: %v", err)
	}
	receiver, err := NewChunkCipherWithPrefix(key, sender.Prefix())
	if err != nil {
		t.Fatalf("NewChunkCipherWithPrefix: %v", err)
	}

	plaintext := []byte("a chunk of file contents")
	nonce, ciphertext := sender.Seal(plaintext)

	got, err := receiver.Open(nonce, ciphertext)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestChunkCipherCounterIncrements(t *testing.T) {
	var key [KeySize]byte
	sender, err := NewChunkCipher(key)
	if err != nil {
		t.Fatalf("NewChunkCipher: %v", err)
	}

	nonce1, _ := sender.Seal([]byte("first"))
	nonce2, _ := sender.Seal([]byte("second"))

	if bytes.Equal(nonce1[:], nonce2[:]) {
		t.Fatalf("expected distinct nonces across chunks, got %x twice", nonce1)
	}
	if !bytes.Equal(nonce1[:NoncePrefixSize], nonce2[:NoncePrefixSize]) {
		t.Fatalf("expected stable prefix across chunks from one cipher")
	}
}

func TestChunkCipherRejectsTamperedCiphertext(t *testing.T) {
	var key [KeySize]byte
	sender, _ := NewChunkCipher(key)
	receiver, _ := NewChunkCipherWithPrefix(key, sender.Prefix())

	nonce, ciphertext := sender.Seal([]byte("payload"))
	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0xFF

	if _, err := receiver.Open(nonce, tampered); err == nil {
		t.Fatalf("expected authentication failure on tampered ciphertext")
	}
}

func TestChunkCipherRejectsWrongKey(t *testing.T) {
	var key1, key2 [KeySize]byte
	key2[0] = 1

	sender, _ := NewChunkCipher(key1)
	receiver, _ := NewChunkCipherWithPrefix(key2, sender.Prefix())

	nonce, ciphertext := sender.Seal([]byte("payload"))
	if _, err := receiver.Open(nonce, ciphertext); err == nil {
		t.Fatalf("expected authentication failure when keys differ")
	}
}

func TestSealOpenWithNonceRoundTrip(t *testing.T) {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(255 - i)
	}
	digest := bytes.Repeat([]byte{0xAB}, 32)

	nonce, ciphertext, err := SealWithNonceFrom(key, digest)
	if err != nil {
		t.Fatalf("SealWithNonceFrom: %v", err)
	}
	got, err := OpenWithNonce(key, nonce, ciphertext)
	if err != nil {
		t.Fatalf("OpenWithNonce: %v", err)
	}
	if !bytes.Equal(got, digest) {
		t.Fatalf("round trip mismatch")
	}
}
