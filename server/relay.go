package server

import (
	"io"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relaytransfer/relay/internal/ratelimit"
)

// relayReadLimit is applied to both peer connections before entering
// binary-forwarding mode, since chunk frames run well past gorilla's
// default 4KiB read limit.
const relayReadLimit = 16 * 1024 * 1024

// relayLoop runs bidirectional WebSocket forwarding between sender and
// receiver, sharing one rate limiter so aggregate throughput (not each
// direction independently) is bounded (spec.md §4.5).
func relayLoop(sender, receiver *Peer, limiter *ratelimit.Limiter, metrics *Metrics) {
	log.Printf("server: starting relay for session")

	sender.Conn.SetReadLimit(relayReadLimit)
	receiver.Conn.SetReadLimit(relayReadLimit)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		forwardBinary("sender->receiver", sender.Conn, receiver, limiter, metrics)
	}()
	go func() {
		defer wg.Done()
		forwardBinary("receiver->sender", receiver.Conn, sender, limiter, metrics)
	}()

	wg.Wait()
	log.Printf("server: relay finished")
}

// forwardBinary reads binary WebSocket messages from src and writes
// them unchanged to dst, after passing their length through limiter.
// Text, ping, and pong frames are dropped; a close terminates both
// directions. The relay never parses or mutates payloads (spec.md
// §4.5 "Binary forwarding").
func forwardBinary(label string, src *websocket.Conn, dst *Peer, limiter *ratelimit.Limiter, metrics *Metrics) {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("server: relay %s: read error: %v", label, err)
			}
			dst.writeMu.Lock()
			dst.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			dst.writeMu.Unlock()
			return
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		limiter.Wait(len(data))

		dst.writeMu.Lock()
		err = dst.Conn.WriteMessage(websocket.BinaryMessage, data)
		dst.writeMu.Unlock()

		if err != nil {
			if err != io.EOF {
				log.Printf("server: relay %s: write error: %v", label, err)
			}
			return
		}

		if metrics != nil {
			metrics.BytesForwardedTotal.Add(float64(len(data)))
		}
	}
}
