package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/relaytransfer/relay/internal/codewords"
	"github.com/relaytransfer/relay/internal/relayerr"
	"github.com/relaytransfer/relay/pkg/crypto"
	"github.com/relaytransfer/relay/pkg/progress"
	"github.com/relaytransfer/relay/pkg/protocol"
	"github.com/relaytransfer/relay/pkg/signaling"
	"github.com/relaytransfer/relay/pkg/transport"
)

// Receiver drives the receiver half of spec.md §4.6: Signaling →
// KeyExchange → FingerprintExchange → TransportSelect → AwaitOffer →
// AwaitUserDecision → Streaming → Completed.
type Receiver struct {
	session         *Session
	events          Emitter
	signalServerURL string
	saveDir         string

	sig        *signaling.Client
	cert       *transport.SelfSignedCert
	recvCipher *crypto.ChunkCipher

	decision chan bool // single-shot, resolved by accept_transfer
}

// NewReceiver builds a Receiver waiting to join the session named by code.
func NewReceiver(sessionID string, code codewords.Code, saveDir string, signalServerURL string, events Emitter) *Receiver {
	return &Receiver{
		session: &Session{
			ID:   sessionID,
			Role: crypto.RoleReceiver,
			Code: code,
		},
		events:          events,
		signalServerURL: signalServerURL,
		saveDir:         saveDir,
		decision:        make(chan bool, 1),
	}
}

// Accept resolves the single-shot accept/decline decision the state
// machine is blocked on during AwaitUserDecision (spec.md §4.6). Calling
// it more than once, or before the offer arrives, is a caller error and
// is silently ignored on the second call.
func (r *Receiver) Accept(accept bool) {
	select {
	case r.decision <- accept:
	default:
	}
}

// Cancel requests cooperative cancellation.
func (r *Receiver) Cancel() {
	r.session.Cancel()
}

func (r *Receiver) setState(state State) {
	r.events.Emit(Event{Type: EventStateChanged, SessionID: r.session.ID, State: string(state)})
}

func (r *Receiver) fail(kind relayerr.Kind, err error) error {
	wrapped := relayerr.Wrap(kind, err)
	r.setState(StateErrored)
	r.events.Emit(Event{Type: EventError, SessionID: r.session.ID, Message: wrapped.Error()})
	return wrapped
}

// Run executes the full state machine to completion, cancellation, or
// error, mirroring Sender.Run.
func (r *Receiver) Run(ctx context.Context) (err error) {
	defer func() {
		if r.sig != nil {
			r.sig.Close()
		}
		if r.session.Transport != nil && err != nil {
			r.session.Transport.Close()
		}
	}()

	r.setState(StateSignaling)
	sigCtx, cancel := context.WithTimeout(ctx, signalingTimeout)
	sig, err := signaling.Dial(sigCtx, r.signalServerURL, r.session.Code.String())
	cancel()
	if err != nil {
		return r.fail(relayerr.Signaling, err)
	}
	r.sig = sig

	cert, err := transport.GenerateSelfSigned()
	if err != nil {
		return r.fail(relayerr.Crypto, err)
	}
	r.cert = cert

	if err := sig.Register(signaling.RoleReceiver, &signaling.PeerInfo{
		LocalIP: localIPv4(),
	}); err != nil {
		return r.fail(relayerr.Signaling, err)
	}

	r.setState(StateAwaitPeer)
	awaitCtx, cancel := context.WithTimeout(ctx, signalingTimeout)
	peerInfo, err := sig.AwaitPeerJoined(awaitCtx)
	cancel()
	if err != nil {
		return r.fail(relayerr.Signaling, err)
	}

	r.setState(StateKeyExchange)
	key, err := r.runKeyExchange(ctx)
	if err != nil {
		return r.fail(relayerr.Crypto, err)
	}
	r.session.Key = key
	r.recvCipher, err = crypto.NewChunkCipher(key)
	if err != nil {
		return r.fail(relayerr.Crypto, err)
	}

	r.setState(StateFingerprintExchange)
	peerFingerprint, err := r.exchangeFingerprint(ctx, cert.Fingerprint, key)
	if err != nil {
		return r.fail(relayerr.Crypto, err)
	}

	r.setState(StateTransportSelect)
	if err := r.selectTransport(ctx, peerInfo, peerFingerprint); err != nil {
		return r.fail(relayerr.Network, err)
	}

	r.setState(StateAwaitOffer)
	offer, err := r.awaitOffer()
	if err != nil {
		return r.fail(relayerr.Protocol, err)
	}

	if err := SanitizeOffer(offer.Files); err != nil {
		_ = r.session.Transport.SendMessage(protocol.FileDecline())
		return r.fail(relayerr.Transfer, err)
	}

	r.setState(StateAwaitUserDecision)
	files := make([]FileDescriptor, len(offer.Files))
	for i, f := range offer.Files {
		files[i] = FileDescriptor{Name: f.Name, Size: int64(f.Size), RelativePath: f.RelativePath}
	}
	r.session.Files = files
	r.events.Emit(Event{Type: EventFileOffer, SessionID: r.session.ID, Files: files})

	var accept bool
	select {
	case accept = <-r.decision:
	case <-ctx.Done():
		return r.fail(relayerr.Cancelled, ctx.Err())
	}

	if !accept {
		_ = r.session.Transport.SendMessage(protocol.FileDecline())
		r.setState(StateDeclined)
		return relayerr.New(relayerr.PeerRejected, "local user declined the transfer")
	}
	if err := r.session.Transport.SendMessage(protocol.FileAccept()); err != nil {
		return r.fail(relayerr.Network, err)
	}
	r.setState(StateAccepted)

	r.setState(StateStreaming)
	if err := r.stream(); err != nil {
		if r.session.Cancelled() {
			r.setState(StateCancelled)
			return relayerr.Wrap(relayerr.Cancelled, err)
		}
		return r.fail(relayerr.Transfer, err)
	}

	final, err := r.session.Transport.RecvMessage()
	if err != nil {
		return r.fail(relayerr.Network, err)
	}
	if final.Tag != protocol.TagTransferComplete {
		return r.fail(relayerr.Protocol, fmt.Errorf("transfer: expected TransferComplete, got %s", final.Tag))
	}
	r.events.Emit(Event{Type: EventTransferComplete, SessionID: r.session.ID})
	r.setState(StateCompleted)
	return nil
}

func (r *Receiver) runKeyExchange(ctx context.Context) ([crypto.KeySize]byte, error) {
	var zero [crypto.KeySize]byte
	kx, err := crypto.NewKeyExchange(crypto.RoleReceiver, r.session.Code.AsPassword())
	if err != nil {
		return zero, err
	}
	if err := r.sig.SendSpake2(kx.OutboundMessage()); err != nil {
		return zero, err
	}
	kctx, cancel := context.WithTimeout(ctx, pakeTimeout)
	peerMsg, err := r.sig.RecvSpake2(kctx)
	cancel()
	if err != nil {
		return zero, err
	}
	if err := kx.ReceivePeerMessage(peerMsg); err != nil {
		return zero, err
	}
	return kx.SessionKey()
}

func (r *Receiver) exchangeFingerprint(ctx context.Context, own transport.Fingerprint, key [crypto.KeySize]byte) (transport.Fingerprint, error) {
	var zero transport.Fingerprint
	nonce, ct, err := crypto.SealWithNonceFrom(key, own[:])
	if err != nil {
		return zero, err
	}
	if err := r.sig.SendCertFingerprint(append(nonce[:], ct...)); err != nil {
		return zero, err
	}
	fctx, cancel := context.WithTimeout(ctx, pakeTimeout)
	peerPayload, err := r.sig.RecvCertFingerprint(fctx)
	cancel()
	if err != nil {
		return zero, err
	}
	if len(peerPayload) < 12 {
		return zero, fmt.Errorf("transfer: cert_fingerprint payload too short")
	}
	var peerNonce [12]byte
	copy(peerNonce[:], peerPayload[:12])
	plain, err := crypto.OpenWithNonce(key, peerNonce, peerPayload[12:])
	if err != nil {
		return zero, err
	}
	var fp transport.Fingerprint
	copy(fp[:], plain)
	return fp, nil
}

func (r *Receiver) selectTransport(ctx context.Context, peerInfo *signaling.PeerInfo, peerFingerprint transport.Fingerprint) error {
	if peerInfo != nil {
		publicAddr := ""
		localAddr := ""
		if peerInfo.PublicIP != "" && peerInfo.PublicPort != 0 {
			publicAddr = fmt.Sprintf("%s:%d", peerInfo.PublicIP, peerInfo.PublicPort)
		}
		if peerInfo.LocalIP != "" && peerInfo.LocalPort != 0 {
			localAddr = fmt.Sprintf("%s:%d", peerInfo.LocalIP, peerInfo.LocalPort)
		}
		direct, err := transport.DialPublicThenLocal(ctx, publicAddr, localAddr, r.cert, peerFingerprint)
		if err == nil {
			r.session.Transport = direct
			r.events.Emit(Event{Type: EventConnectionTypeChanged, SessionID: r.session.ID, ConnectionType: transport.KindDirect.String()})
			return nil
		}
	}

	if err := r.sig.RequestRelay(); err != nil {
		return err
	}
	relayCtx, cancel := context.WithTimeout(ctx, relayAckTimeout)
	err := r.sig.AwaitRelayActive(relayCtx)
	cancel()
	if err != nil {
		return err
	}
	if err := r.sig.SendRelayReady(); err != nil {
		return err
	}
	r.session.Transport = transport.NewRelay(r.sig.Conn())
	r.events.Emit(Event{Type: EventConnectionTypeChanged, SessionID: r.session.ID, ConnectionType: transport.KindRelay.String()})
	return nil
}

func (r *Receiver) awaitOffer() (protocol.Message, error) {
	msg, err := r.session.Transport.RecvMessage()
	if err != nil {
		return protocol.Message{}, err
	}
	if msg.Tag != protocol.TagFileOffer {
		return protocol.Message{}, fmt.Errorf("transfer: expected FileOffer, got %s", msg.Tag)
	}
	return msg, nil
}

func (r *Receiver) stream() error {
	var total int64
	for _, f := range r.session.Files {
		total += f.Size
	}
	r.session.Tracker = progress.NewTracker(total)

	var lastEmit time.Time
	for idx, f := range r.session.Files {
		r.session.CurrentFileIndex = idx
		if err := r.receiveFile(idx, f, &lastEmit); err != nil {
			return err
		}
		r.events.Emit(Event{Type: EventFileCompleted, SessionID: r.session.ID, File: f.Name})
	}
	return nil
}

func (r *Receiver) receiveFile(idx int, f FileDescriptor, lastEmit *time.Time) error {
	dest, err := DestinationPath(r.saveDir, protocol.FileDescriptor{Name: f.Name, RelativePath: f.RelativePath})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	hasher := crypto.NewFileHasher()
	var expectedChunk uint32

	for {
		if r.session.Cancelled() {
			out.Close()
			os.Remove(dest)
			return fmt.Errorf("transfer: cancelled locally")
		}
		msg, err := r.session.Transport.RecvMessage()
		if err != nil {
			out.Close()
			os.Remove(dest)
			return err
		}

		switch msg.Tag {
		case protocol.TagCancel:
			r.session.Cancel()
			out.Close()
			os.Remove(dest)
			return fmt.Errorf("transfer: peer cancelled: %s", msg.Reason)

		case protocol.TagFileChunk:
			if msg.FileIndex != uint16(idx) || msg.ChunkIndex != expectedChunk {
				out.Close()
				os.Remove(dest)
				return fmt.Errorf("transfer: out-of-order chunk file=%d/%d chunk=%d/%d",
					msg.FileIndex, idx, msg.ChunkIndex, expectedChunk)
			}
			plaintext, err := r.recvCipher.Open(msg.Nonce, msg.Ciphertext)
			if err != nil {
				out.Close()
				os.Remove(dest)
				return relayerr.Wrap(relayerr.Crypto, err)
			}
			if _, err := out.Write(plaintext); err != nil {
				out.Close()
				os.Remove(dest)
				return err
			}
			hasher.Write(plaintext)
			expectedChunk++

			snap := r.session.Tracker.Add(int64(len(plaintext)))
			if time.Since(*lastEmit) >= progressThrottle {
				*lastEmit = time.Now()
				r.events.Emit(Event{
					Type:      EventTransferProgress,
					SessionID: r.session.ID,
					Progress:  snap,
					File:      f.Name,
				})
			}

		case protocol.TagFileComplete:
			if msg.FileIndex != uint16(idx) {
				out.Close()
				os.Remove(dest)
				return fmt.Errorf("transfer: FileComplete for wrong file index %d, expected %d", msg.FileIndex, idx)
			}
			if hasher.Sum32() != msg.SHA256 {
				out.Close()
				os.Remove(dest)
				return relayerr.New(relayerr.Transfer, "checksum mismatch for %s", f.Name)
			}
			if err := out.Close(); err != nil {
				return err
			}
			return r.session.Transport.SendMessage(protocol.FileVerified(uint16(idx)))

		default:
			out.Close()
			os.Remove(dest)
			return fmt.Errorf("transfer: unexpected message %s while streaming", msg.Tag)
		}
	}
}
