// Package crypto implements the three cryptographic primitives the spec
// calls for: the PAKE handshake, the per-chunk AEAD cipher, and the
// streaming file hash. The AEAD and hash pieces are stdlib; the nonce
// bookkeeping mirrors the teacher's blabber type in chacha.go (random
// starting nonce, explicit per-side counter, increment only after Seal).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

const (
	// NoncePrefixSize is the length of the per-session random prefix.
	NoncePrefixSize = 4
	// NonceCounterSize is the length of the per-side big-endian counter.
	NonceCounterSize = 8
	// NonceSize is the full AES-GCM nonce: prefix || counter.
	NonceSize = NoncePrefixSize + NonceCounterSize
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// Overhead is the GCM authentication tag length appended to every
	// ciphertext.
	Overhead = 16
)

// ChunkCipher authenticates and encrypts/decrypts file chunks for one
// direction of a session. Each side of a session owns its own
// ChunkCipher for sending (its own nonce prefix, its own counter).
// Opening a chunk uses the nonce carried in that chunk as it arrived;
// its prefix is not checked, and decryption success is the only check.
type ChunkCipher struct {
	aead   cipher.AEAD
	prefix [NoncePrefixSize]byte
	ctr    uint64
}

// NewChunkCipher builds a ChunkCipher from a 32-byte key (the PAKE-derived
// secret) and a fresh random 4-byte nonce prefix, unique per session and
// per direction.
func NewChunkCipher(key [KeySize]byte) (*ChunkCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new GCM: %w", err)
	}
	var prefix [NoncePrefixSize]byte
	if _, err := rand.Read(prefix[:]); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce prefix: %w", err)
	}
	return &ChunkCipher{aead: aead, prefix: prefix}, nil
}

// NewChunkCipherWithPrefix builds a decrypting ChunkCipher using an
// explicit prefix (unused by this side's own counter construction; kept
// for symmetry and tests — decryption validates the nonce embedded in
// each received chunk rather than reconstructing it from a prefix).
func NewChunkCipherWithPrefix(key [KeySize]byte, prefix [NoncePrefixSize]byte) (*ChunkCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new GCM: %w", err)
	}
	return &ChunkCipher{aead: aead, prefix: prefix}, nil
}

// Prefix returns this cipher's 4-byte session-random nonce prefix. The
// transfer code does not send it to the peer; the peer reads each nonce
// from the chunk it arrives in.
func (c *ChunkCipher) Prefix() [NoncePrefixSize]byte {
	return c.prefix
}

// Seal encrypts plaintext, returning ciphertext||tag and the nonce used.
// The counter increments only after a successful Seal, matching the
// teacher's "update the nonce only after using it" discipline.
func (c *ChunkCipher) Seal(plaintext []byte) (nonce [NonceSize]byte, ciphertext []byte) {
	copy(nonce[:NoncePrefixSize], c.prefix[:])
	binary.BigEndian.PutUint64(nonce[NoncePrefixSize:], c.ctr)

	ciphertext = c.aead.Seal(nil, nonce[:], plaintext, nil)
	c.ctr++
	return nonce, ciphertext
}

// Open decrypts a chunk given the nonce it arrived with. Authentication
// failure is reported verbatim; the caller (the receiver state machine)
// treats any error here as fatal to the session (spec.md §4.1).
func (c *ChunkCipher) Open(nonce [NonceSize]byte, ciphertext []byte) ([]byte, error) {
	plaintext, err := c.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: AEAD authentication failed: %w", err)
	}
	return plaintext, nil
}

// SealWithNonceFrom encrypts using an explicit nonce, for the one-off
// fingerprint exchange during signaling (spec.md §4.3 FingerprintExchange)
// where the "chunk" is a 32-byte SHA-256 digest rather than part of a
// counting stream.
func SealWithNonceFrom(key [KeySize]byte, plaintext []byte) (nonce [12]byte, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nonce, nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nonce, nil, fmt.Errorf("crypto: new GCM: %w", err)
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}
	ciphertext = aead.Seal(nil, nonce[:], plaintext, nil)
	return nonce, ciphertext, nil
}

// OpenWithNonce decrypts a one-off AEAD payload sealed by SealWithNonceFrom.
func OpenWithNonce(key [KeySize]byte, nonce [12]byte, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new GCM: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: AEAD authentication failed: %w", err)
	}
	return plaintext, nil
}
