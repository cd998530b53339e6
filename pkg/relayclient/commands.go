package relayclient

import (
	"context"
	"fmt"

	"github.com/relaytransfer/relay/internal/codewords"
	"github.com/relaytransfer/relay/internal/relayerr"
	"github.com/relaytransfer/relay/pkg/transfer"
)

// StartSend begins sending filePaths under a freshly generated transfer
// code. signalServerURL defaults to DefaultSignalServerURL when empty.
// The returned handle is available immediately; the transfer itself
// runs in the background and is observed through Events.
func (c *Client) StartSend(filePaths []string, signalServerURL string) (*SendHandle, error) {
	if signalServerURL == "" {
		signalServerURL = DefaultSignalServerURL
	}
	code, err := codewords.Generate()
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Crypto, err)
	}
	sessionID, err := newSessionID()
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Crypto, err)
	}
	port, err := transfer.ReserveLocalPort()
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Network, err)
	}

	sender, err := transfer.NewSender(sessionID, code, filePaths, port, signalServerURL, transfer.ChanEmitter(c.events))
	if err != nil {
		return nil, err
	}

	c.register(sessionID, sender.Cancel, nil)

	go func() {
		defer c.unregister(sessionID)
		sender.Run(context.Background())
	}()

	return &SendHandle{Code: code.String(), SessionID: sessionID, Port: port}, nil
}

// StartReceive begins receiving under an already-shared transfer code,
// saving files under saveDir. Returns the session id used to drive
// AcceptTransfer/CancelTransfer and to filter Events.
func (c *Client) StartReceive(code string, saveDir string, signalServerURL string) (string, error) {
	if signalServerURL == "" {
		signalServerURL = DefaultSignalServerURL
	}
	parsed, err := codewords.Parse(code)
	if err != nil {
		return "", relayerr.Wrap(relayerr.Transfer, fmt.Errorf("relayclient: %w", err))
	}
	sessionID, err := newSessionID()
	if err != nil {
		return "", relayerr.Wrap(relayerr.Crypto, err)
	}

	receiver := transfer.NewReceiver(sessionID, parsed, saveDir, signalServerURL, transfer.ChanEmitter(c.events))

	c.register(sessionID, receiver.Cancel, receiver.Accept)

	go func() {
		defer c.unregister(sessionID)
		receiver.Run(context.Background())
	}()

	return sessionID, nil
}

// AcceptTransfer resolves the AwaitUserDecision suspension point for a
// receiver session. It is a no-op error (not a panic) to call it for a
// sender session or an unknown session id, since a slow or duplicate UI
// click should never be able to crash the process.
func (c *Client) AcceptTransfer(sessionID string, accept bool) error {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		return relayerr.New(relayerr.Transfer, "relayclient: unknown session %q", sessionID)
	}
	if sess.accept == nil {
		return relayerr.New(relayerr.Transfer, "relayclient: session %q is not awaiting a transfer decision", sessionID)
	}
	sess.accept(accept)
	return nil
}

// CancelTransfer trips the named session's cancellation flag. Safe to
// call more than once or after the session has already finished.
func (c *Client) CancelTransfer(sessionID string) error {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		return relayerr.New(relayerr.Transfer, "relayclient: unknown session %q", sessionID)
	}
	sess.cancel()
	return nil
}
