// Package transport provides the two interchangeable carriers for the
// framed peer protocol: a direct QUIC connection pinned to a single
// fingerprinted certificate, and a relay adapter running over a
// WebSocket to the rendezvous server. Both satisfy Transport.
package transport

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

// Fingerprint is the SHA-256 digest of a DER-encoded certificate, used
// to pin exactly one peer certificate with no CA and no name checks.
type Fingerprint [sha256.Size]byte

func (f Fingerprint) String() string {
	return fmt.Sprintf("%x", f[:])
}

// SelfSignedCert is a freshly generated ed25519 certificate and key, one
// per session per endpoint — there is no CA and nothing is persisted
// across sessions.
type SelfSignedCert struct {
	TLSCert     tls.Certificate
	Fingerprint Fingerprint
}

// GenerateSelfSigned creates a new ed25519 self-signed certificate valid
// for this session only, grounded on the teacher's ed25519
// certificate-signing shape in selfcert/step4_makecert.go, minus the CA
// step the spec explicitly drops (§4.3: "No CA, no name checks").
func GenerateSelfSigned() (*SelfSignedCert, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("transport: generating ed25519 key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, fmt.Errorf("transport: generating serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		return nil, fmt.Errorf("transport: creating certificate: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("transport: marshaling private key: %w", err)
	}

	tlsCert, err := tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: building tls.Certificate: %w", err)
	}

	return &SelfSignedCert{
		TLSCert:     tlsCert,
		Fingerprint: sha256.Sum256(der),
	}, nil
}

// VerifyPinnedFingerprint returns a tls.Config.VerifyPeerCertificate
// callback that accepts exactly one certificate: the one whose SHA-256
// equals want. Adapted from selfcert/cacheck.go's VerifyClientCertificate,
// which checks a CA-signature chain; this checks raw-certificate
// equality instead, since the spec pins a single leaf rather than a CA.
func VerifyPinnedFingerprint(want Fingerprint) func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("transport: peer presented no certificate")
		}
		got := sha256.Sum256(rawCerts[0])
		if got != want {
			return fmt.Errorf("transport: peer certificate fingerprint mismatch: got %x want %x", got, want)
		}
		return nil
	}
}
