package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// FileHasher incrementally hashes file content as it streams through the
// chunker, so the sender and receiver can each compute a SHA-256 digest
// without buffering the whole file (spec.md's integrity check).
type FileHasher struct {
	h hash.Hash
}

// NewFileHasher returns a ready-to-use streaming hasher.
func NewFileHasher() *FileHasher {
	return &FileHasher{h: sha256.New()}
}

// Write feeds more file bytes into the running digest. It never returns
// an error; hash.Hash.Write is documented to always succeed.
func (f *FileHasher) Write(p []byte) (int, error) {
	return f.h.Write(p)
}

// Sum returns the lowercase hex-encoded digest of everything written so
// far; the form carried on the wire is the raw digest from Sum32.
func (f *FileHasher) Sum() string {
	return hex.EncodeToString(f.h.Sum(nil))
}

// Sum32 returns the raw 32-byte digest, the form carried in a
// protocol.FileComplete message.
func (f *FileHasher) Sum32() [32]byte {
	var out [32]byte
	copy(out[:], f.h.Sum(nil))
	return out
}

// HashReader streams r through a SHA-256 digest and returns its hex
// encoding, for verifying a file already written to disk.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sha256Sum reduces an arbitrary-length secret to a fixed 32-byte digest,
// used by the PAKE key derivation to produce an AEAD-sized key.
func sha256Sum(b []byte) [32]byte {
	return sha256.Sum256(b)
}
