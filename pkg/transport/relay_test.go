package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/relaytransfer/relay/pkg/protocol"
)

func TestRelaySendRecvRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	echoDone := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade: %v", err)
			close(echoDone)
			return
		}
		defer conn.Close()

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			close(echoDone)
			return
		}
		if err := conn.WriteMessage(messageType, data); err != nil {
			t.Errorf("server write: %v", err)
		}
		close(echoDone)
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("client dial: %v", err)
	}
	defer conn.Close()

	relay := NewRelay(conn)
	if relay.Kind() != KindRelay {
		t.Fatalf("expected KindRelay")
	}

	want := protocol.FileChunk(1, 2, [12]byte{7}, []byte("chunk-bytes"))
	if err := relay.SendMessage(want); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	got, err := relay.RecvMessage()
	if err != nil {
		t.Fatalf("RecvMessage: %v", err)
	}
	if got.FileIndex != want.FileIndex || got.ChunkIndex != want.ChunkIndex {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	<-echoDone
}
