package transport

import (
	"context"
	"testing"
	"time"

	"github.com/relaytransfer/relay/pkg/protocol"
)

// TestDirectLoopback exercises the full listen/dial/accept path over a
// real UDP loopback socket, mirroring the "LAN direct" scenario from
// spec.md §8: one side listens, the other dials its address, and the
// peer protocol frame round-trips over the resulting stream.
func TestDirectLoopback(t *testing.T) {
	serverCert, err := GenerateSelfSigned()
	if err != nil {
		t.Fatalf("GenerateSelfSigned (server): %v", err)
	}
	clientCert, err := GenerateSelfSigned()
	if err != nil {
		t.Fatalf("GenerateSelfSigned (client): %v", err)
	}

	listener, err := Listen("127.0.0.1:0", serverCert, clientCert.Fingerprint)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	type acceptResult struct {
		d   *Direct
		err error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d, err := listener.Accept(ctx)
		acceptCh <- acceptResult{d, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := DialAddr(ctx, listener.Addr(), clientCert, serverCert.Fingerprint, DialTimeoutPublic)
	if err != nil {
		t.Fatalf("DialAddr: %v", err)
	}
	defer client.Close()

	res := <-acceptCh
	if res.err != nil {
		t.Fatalf("Accept: %v", res.err)
	}
	server := res.d
	defer server.Close()

	want := protocol.FileOffer("sess-loopback", []protocol.FileDescriptor{{Name: "loop.txt", Size: 4}})
	if err := client.SendMessage(want); err != nil {
		t.Fatalf("client.SendMessage: %v", err)
	}
	got, err := server.RecvMessage()
	if err != nil {
		t.Fatalf("server.RecvMessage: %v", err)
	}
	if got.SessionID != want.SessionID {
		t.Fatalf("session id mismatch: got %q want %q", got.SessionID, want.SessionID)
	}

	if client.Kind() != KindDirect || server.Kind() != KindDirect {
		t.Fatalf("expected KindDirect on both ends")
	}
}

func TestDialPublicThenLocalFallsBackOnPublicFailure(t *testing.T) {
	serverCert, _ := GenerateSelfSigned()
	clientCert, _ := GenerateSelfSigned()

	listener, err := Listen("127.0.0.1:0", serverCert, clientCert.Fingerprint)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	acceptCh := make(chan *Direct, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d, err := listener.Accept(ctx)
		if err == nil {
			acceptCh <- d
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// unreachable "public" address on a TEST-NET-1 address that will not
	// respond, forcing the fallback to the real local address.
	d, err := DialPublicThenLocal(ctx, "192.0.2.1:1", listener.Addr(), clientCert, serverCert.Fingerprint)
	if err != nil {
		t.Fatalf("DialPublicThenLocal: %v", err)
	}
	defer d.Close()

	server := <-acceptCh
	defer server.Close()
}
