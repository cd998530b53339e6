package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaytransfer/relay/pkg/signaling"
)

func newTestServer(t *testing.T, maxSessions int, ttl time.Duration) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(maxSessions, ttl, 10*1024*1024, newTestMetrics())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{code}", srv.WebSocketHandler)
	mux.HandleFunc("GET /health", srv.HealthHandler)
	ts := httptest.NewServer(mux)
	return srv, ts
}

func dialWS(t *testing.T, ts *httptest.Server, code string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + code
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func register(conn *websocket.Conn, role string) error {
	return conn.WriteJSON(signaling.Message{Type: signaling.TypeRegister, Role: role})
}

func readMsg(t *testing.T, conn *websocket.Conn) signaling.Message {
	t.Helper()
	var msg signaling.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("readMsg failed: %v", err)
	}
	return msg
}

func TestWebSocketHandshake(t *testing.T) {
	_, ts := newTestServer(t, 100, 10*time.Minute)
	defer ts.Close()

	sender := dialWS(t, ts, "handshake-test")
	defer sender.Close()
	receiver := dialWS(t, ts, "handshake-test")
	defer receiver.Close()

	if err := register(sender, signaling.RoleSender); err != nil {
		t.Fatalf("sender register failed: %v", err)
	}
	if err := register(receiver, signaling.RoleReceiver); err != nil {
		t.Fatalf("receiver register failed: %v", err)
	}

	senderMsg := readMsg(t, sender)
	if senderMsg.Type != signaling.TypePeerJoined {
		t.Errorf("sender expected peer_joined, got %s", senderMsg.Type)
	}
	if senderMsg.PeerInfo == nil {
		t.Error("sender peer_joined missing peer_info")
	}

	receiverMsg := readMsg(t, receiver)
	if receiverMsg.Type != signaling.TypePeerJoined {
		t.Errorf("receiver expected peer_joined, got %s", receiverMsg.Type)
	}
	if receiverMsg.PeerInfo == nil {
		t.Error("receiver peer_joined missing peer_info")
	}
}

func TestSpake2Forwarding(t *testing.T) {
	_, ts := newTestServer(t, 100, 10*time.Minute)
	defer ts.Close()

	sender := dialWS(t, ts, "forward-test")
	defer sender.Close()
	receiver := dialWS(t, ts, "forward-test")
	defer receiver.Close()

	register(sender, signaling.RoleSender)
	register(receiver, signaling.RoleReceiver)
	readMsg(t, sender)
	readMsg(t, receiver)

	payload := json.RawMessage(`"opaque-pake-bytes"`)
	if err := sender.WriteJSON(signaling.Message{Type: signaling.TypeSpake2, Payload: payload}); err != nil {
		t.Fatalf("send spake2 failed: %v", err)
	}

	msg := readMsg(t, receiver)
	if msg.Type != signaling.TypeSpake2 {
		t.Errorf("expected spake2, got %s", msg.Type)
	}
}

func TestDuplicateCodeRejected(t *testing.T) {
	_, ts := newTestServer(t, 100, 10*time.Minute)
	defer ts.Close()

	c1 := dialWS(t, ts, "dup-test")
	defer c1.Close()
	c2 := dialWS(t, ts, "dup-test")
	defer c2.Close()

	register(c1, signaling.RoleSender)
	register(c2, signaling.RoleReceiver)
	readMsg(t, c1)
	readMsg(t, c2)

	c3 := dialWS(t, ts, "dup-test")
	defer c3.Close()
	register(c3, signaling.RoleSender)

	msg := readMsg(t, c3)
	if msg.Type != signaling.TypeError {
		t.Errorf("expected error, got %s", msg.Type)
	}
	if msg.Code != signaling.ErrCodeInUse {
		t.Errorf("expected CODE_IN_USE, got %s", msg.Code)
	}
}

func TestDisconnectPropagatesAndCleansUp(t *testing.T) {
	srv, ts := newTestServer(t, 100, 10*time.Minute)
	defer ts.Close()

	sender := dialWS(t, ts, "disconnect-test")
	defer sender.Close()
	receiver := dialWS(t, ts, "disconnect-test")
	defer receiver.Close()

	register(sender, signaling.RoleSender)
	register(receiver, signaling.RoleReceiver)
	readMsg(t, sender)
	readMsg(t, receiver)

	if err := sender.WriteJSON(signaling.Message{Type: signaling.TypeDisconnect}); err != nil {
		t.Fatalf("send disconnect failed: %v", err)
	}

	msg := readMsg(t, receiver)
	if msg.Type != signaling.TypePeerDisconnected {
		t.Errorf("expected peer_disconnected, got %s", msg.Type)
	}

	time.Sleep(50 * time.Millisecond)
	receiver.Close()
	time.Sleep(50 * time.Millisecond)

	if srv.SessionCount() != 0 {
		t.Errorf("expected 0 sessions after disconnect, got %d", srv.SessionCount())
	}
}

func TestInvalidFirstFrameRejected(t *testing.T) {
	_, ts := newTestServer(t, 100, 10*time.Minute)
	defer ts.Close()

	conn := dialWS(t, ts, "invalid-test")
	defer conn.Close()

	if err := conn.WriteJSON(signaling.Message{Type: "not-a-register"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg := readMsg(t, conn)
	if msg.Type != signaling.TypeError || msg.Code != signaling.ErrInvalidMessage {
		t.Errorf("expected INVALID_MESSAGE error, got %+v", msg)
	}
}

func TestUnknownMessageTypeRejected(t *testing.T) {
	_, ts := newTestServer(t, 100, 10*time.Minute)
	defer ts.Close()

	conn := dialWS(t, ts, "unknown-type-test")
	defer conn.Close()

	register(conn, signaling.RoleSender)

	if err := conn.WriteJSON(signaling.Message{Type: "not-a-real-type"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg := readMsg(t, conn)
	if msg.Type != signaling.TypeError || msg.Code != signaling.ErrUnknownType {
		t.Errorf("expected UNKNOWN_TYPE error, got %+v", msg)
	}
}
