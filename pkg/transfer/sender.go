package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/relaytransfer/relay/internal/codewords"
	"github.com/relaytransfer/relay/internal/relayerr"
	"github.com/relaytransfer/relay/pkg/crypto"
	"github.com/relaytransfer/relay/pkg/progress"
	"github.com/relaytransfer/relay/pkg/protocol"
	"github.com/relaytransfer/relay/pkg/signaling"
	"github.com/relaytransfer/relay/pkg/transport"
)

// Timeouts from spec.md §5.
const (
	signalingTimeout = 30 * time.Second
	pakeTimeout      = 30 * time.Second
	relayAckTimeout  = 10 * time.Second

	progressThrottle = 100 * time.Millisecond
)

// Sender drives the sender half of spec.md §4.6: Idle → Signaling →
// AwaitPeer → KeyExchange → FingerprintExchange → TransportSelect →
// Offering → (Accepted|Declined) → Streaming → Completed|Cancelled|Errored.
type Sender struct {
	session         *Session
	events          Emitter
	signalServerURL string

	sig        *signaling.Client
	listener   *transport.Listener
	cert       *transport.SelfSignedCert
	sendCipher *crypto.ChunkCipher

	port int // pre-reserved by the caller; 0 means Run reserves one itself
}

// NewSender builds a Sender for the given transfer code and file list.
// filePaths is resolved into FileDescriptors here, so a stat failure is
// returned from the constructor as a Transfer error. port lets a caller that already reserved a UDP port (to hand
// it back to a human synchronously, e.g. pkg/relayclient's start_send)
// pass it in; 0 means Run reserves one itself via ReserveLocalPort.
func NewSender(sessionID string, code codewords.Code, filePaths []string, port int, signalServerURL string, events Emitter) (*Sender, error) {
	files, err := BuildFileList(filePaths)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Transfer, err)
	}
	return &Sender{
		session: &Session{
			ID:    sessionID,
			Role:  crypto.RoleSender,
			Code:  code,
			Files: files,
		},
		events:          events,
		signalServerURL: signalServerURL,
		port:            port,
	}, nil
}

// Port returns the UDP port this sender declares to the rendezvous
// server, valid once set via NewSender or reserved during Run.
func (s *Sender) Port() int {
	return s.port
}

// Cancel requests cooperative cancellation; the running Run call notices
// at its next suspension point (spec.md §5).
func (s *Sender) Cancel() {
	s.session.Cancel()
}

func (s *Sender) setState(state State) {
	s.events.Emit(Event{Type: EventStateChanged, SessionID: s.session.ID, State: string(state)})
}

func (s *Sender) fail(kind relayerr.Kind, err error) error {
	wrapped := relayerr.Wrap(kind, err)
	s.setState(StateErrored)
	s.events.Emit(Event{Type: EventError, SessionID: s.session.ID, Message: wrapped.Error()})
	return wrapped
}

// Run executes the full state machine to completion, cancellation, or
// error. It is meant to be called once, from its own goroutine; the
// caller observes progress exclusively through events.
func (s *Sender) Run(ctx context.Context) (err error) {
	defer func() {
		if s.listener != nil {
			s.listener.Close()
		}
		if s.sig != nil {
			s.sig.Close()
		}
		if s.session.Transport != nil && err != nil {
			s.session.Transport.Close()
		}
	}()

	s.setState(StateSignaling)
	sigCtx, cancel := context.WithTimeout(ctx, signalingTimeout)
	sig, err := signaling.Dial(sigCtx, s.signalServerURL, s.session.Code.String())
	cancel()
	if err != nil {
		return s.fail(relayerr.Signaling, err)
	}
	s.sig = sig

	cert, err := transport.GenerateSelfSigned()
	if err != nil {
		return s.fail(relayerr.Crypto, err)
	}
	s.cert = cert

	// Reserve a UDP port now so it can be declared during registration;
	// the actual QUIC listener binds to the same port once the peer's
	// certificate fingerprint is known (TransportSelect), since pinning
	// requires that fingerprint at bind time. A caller may have already
	// reserved one (see NewSender's port parameter).
	if s.port == 0 {
		p, err := ReserveLocalPort()
		if err != nil {
			return s.fail(relayerr.Network, err)
		}
		s.port = p
	}
	port := s.port

	if err := sig.Register(signaling.RoleSender, &signaling.PeerInfo{
		LocalIP:   localIPv4(),
		LocalPort: port,
	}); err != nil {
		return s.fail(relayerr.Signaling, err)
	}

	s.setState(StateAwaitPeer)
	awaitCtx, cancel := context.WithTimeout(ctx, signalingTimeout)
	peerInfo, err := sig.AwaitPeerJoined(awaitCtx)
	cancel()
	if err != nil {
		return s.fail(relayerr.Signaling, err)
	}

	s.setState(StateKeyExchange)
	key, err := s.runKeyExchange(ctx)
	if err != nil {
		return s.fail(relayerr.Crypto, err)
	}
	s.session.Key = key
	s.sendCipher, err = crypto.NewChunkCipher(key)
	if err != nil {
		return s.fail(relayerr.Crypto, err)
	}
	s.setState(StateFingerprintExchange)
	peerFingerprint, err := s.exchangeFingerprint(ctx, cert.Fingerprint, key)
	if err != nil {
		return s.fail(relayerr.Crypto, err)
	}

	s.setState(StateTransportSelect)
	if err := s.selectTransport(ctx, port, peerInfo, peerFingerprint); err != nil {
		return s.fail(relayerr.Network, err)
	}

	s.setState(StateOffering)
	accepted, err := s.offerFiles()
	if err != nil {
		return s.fail(relayerr.Protocol, err)
	}
	if !accepted {
		s.setState(StateDeclined)
		return relayerr.New(relayerr.PeerRejected, "peer declined the transfer")
	}
	s.setState(StateAccepted)

	s.setState(StateStreaming)
	if err := s.stream(ctx); err != nil {
		if s.session.Cancelled() {
			s.setState(StateCancelled)
			return relayerr.Wrap(relayerr.Cancelled, err)
		}
		return s.fail(relayerr.Transfer, err)
	}

	if err := s.session.Transport.SendMessage(protocol.TransferComplete()); err != nil {
		return s.fail(relayerr.Network, err)
	}
	s.events.Emit(Event{Type: EventTransferComplete, SessionID: s.session.ID})
	s.setState(StateCompleted)
	return nil
}

func (s *Sender) runKeyExchange(ctx context.Context) ([crypto.KeySize]byte, error) {
	var zero [crypto.KeySize]byte
	kx, err := crypto.NewKeyExchange(crypto.RoleSender, s.session.Code.AsPassword())
	if err != nil {
		return zero, err
	}
	if err := s.sig.SendSpake2(kx.OutboundMessage()); err != nil {
		return zero, err
	}
	kctx, cancel := context.WithTimeout(ctx, pakeTimeout)
	peerMsg, err := s.sig.RecvSpake2(kctx)
	cancel()
	if err != nil {
		return zero, err
	}
	if err := kx.ReceivePeerMessage(peerMsg); err != nil {
		return zero, err
	}
	return kx.SessionKey()
}

func (s *Sender) exchangeFingerprint(ctx context.Context, own transport.Fingerprint, key [crypto.KeySize]byte) (transport.Fingerprint, error) {
	var zero transport.Fingerprint
	nonce, ct, err := crypto.SealWithNonceFrom(key, own[:])
	if err != nil {
		return zero, err
	}
	if err := s.sig.SendCertFingerprint(append(nonce[:], ct...)); err != nil {
		return zero, err
	}
	fctx, cancel := context.WithTimeout(ctx, pakeTimeout)
	peerPayload, err := s.sig.RecvCertFingerprint(fctx)
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

func (s *Sender) selectTransport(ctx context.Context, port int, peerInfo *signaling.PeerInfo, peerFingerprint transport.Fingerprint) error {
	listener, err := transport.Listen(fmt.Sprintf(":%d", port), s.cert, peerFingerprint)
	if err == nil {
		s.listener = listener
		acceptCtx, cancel := context.WithTimeout(ctx, transport.DialTimeoutPublic+transport.DialTimeoutLocal)
		direct, acceptErr := listener.Accept(acceptCtx)
		cancel()
		if acceptErr == nil {
			s.session.Transport = direct
			s.events.Emit(Event{Type: EventConnectionTypeChanged, SessionID: s.session.ID, ConnectionType: transport.KindDirect.String()})
			return nil
		}
	}
	// peerInfo (the receiver's dial candidates) is unused on this side:
	// the sender only listens and accepts, per spec.md §4.3's base policy
	// (sender in listen mode); the receiver is the one that dials it.

	if err := s.sig.RequestRelay(); err != nil {
		return err
	}
	relayCtx, cancel := context.WithTimeout(ctx, relayAckTimeout)
	err = s.sig.AwaitRelayActive(relayCtx)
	cancel()
	if err != nil {
		return err
	}
	if err := s.sig.SendRelayReady(); err != nil {
		return err
	}
	s.session.Transport = transport.NewRelay(s.sig.Conn())
	s.events.Emit(Event{Type: EventConnectionTypeChanged, SessionID: s.session.ID, ConnectionType: transport.KindRelay.String()})
	return nil
}

func (s *Sender) offerFiles() (bool, error) {
	wire := make([]protocol.FileDescriptor, len(s.session.Files))
	for i, f := range s.session.Files {
		wire[i] = f.ToWire()
	}
	s.events.Emit(Event{Type: EventFileOffer, SessionID: s.session.ID, Files: s.session.Files})

	if err := s.session.Transport.SendMessage(protocol.FileOffer(s.session.ID, wire)); err != nil {
		return false, err
	}
	msg, err := s.session.Transport.RecvMessage()
	if err != nil {
		return false, err
	}
	switch msg.Tag {
	case protocol.TagFileAccept:
		return true, nil
	case protocol.TagFileDecline:
		return false, nil
	default:
		return false, fmt.Errorf("transfer: unexpected message %s while awaiting offer response", msg.Tag)
	}
}

func (s *Sender) stream(ctx context.Context) error {
	var total int64
	for _, f := range s.session.Files {
		total += f.Size
	}
	s.session.Tracker = progress.NewTracker(total)

	var lastEmit time.Time
	for idx, f := range s.session.Files {
		s.session.CurrentFileIndex = idx
		if err := s.streamFile(ctx, idx, f, &lastEmit); err != nil {
			return err
		}
		s.events.Emit(Event{Type: EventFileCompleted, SessionID: s.session.ID, File: f.Name})
	}
	return nil
}

func (s *Sender) streamFile(ctx context.Context, idx int, f FileDescriptor, lastEmit *time.Time) error {
	hasher := crypto.NewFileHasher()
	chunks := make(chan []byte, chunkBacklog)
	errc := make(chan error, 1)
	ctx, stopReader := context.WithCancel(ctx)
	defer func() {
		stopReader()
		for range chunks {
		}
	}()
	go readChunks(ctx, f.LocalPath, chunks, errc, s.session.Cancelled)

	var chunkIndex uint32
	for data := range chunks {
		if s.session.Cancelled() {
			return s.emitCancel("local cancel")
		}
		hasher.Write(data)
		nonce, ciphertext := s.sendCipher.Seal(data)
		msg := protocol.FileChunk(uint16(idx), chunkIndex, nonce, ciphertext)
		if err := s.session.Transport.SendMessage(msg); err != nil {
			return err
		}
		chunkIndex++

		snap := s.session.Tracker.Add(int64(len(data)))
		if time.Since(*lastEmit) >= progressThrottle {
			*lastEmit = time.Now()
			s.events.Emit(Event{
				Type:      EventTransferProgress,
				SessionID: s.session.ID,
				Progress:  snap,
				File:      f.Name,
			})
		}
	}
	if err := <-errc; err != nil {
		return err
	}

	sum := hasher.Sum32()
	if err := s.session.Transport.SendMessage(protocol.FileComplete(uint16(idx), sum)); err != nil {
		return err
	}
	reply, err := s.session.Transport.RecvMessage()
	if err != nil {
		return err
	}
	if reply.Tag == protocol.TagCancel {
		s.session.Cancel()
		return fmt.Errorf("transfer: peer cancelled: %s", reply.Reason)
	}
	if reply.Tag != protocol.TagFileVerified || reply.FileIndex != uint16(idx) {
		return fmt.Errorf("transfer: expected FileVerified(%d), got %s", idx, reply.Tag)
	}
	return nil
}

func (s *Sender) emitCancel(reason string) error {
	if s.session.Transport != nil {
		_ = s.session.Transport.SendMessage(protocol.Cancel(reason))
	}
	return fmt.Errorf("transfer: cancelled: %s", reason)
}

