package server

import (
	"log"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/relaytransfer/relay/pkg/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  256 * 1024,
	WriteBufferSize: 256 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketHandler implements GET /ws/{code} (spec.md §4.5).
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		http.Error(w, "missing session code", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: upgrade error: %v", err)
		return
	}

	var reg signaling.Message
	if err := conn.ReadJSON(&reg); err != nil {
		log.Printf("server: read register error: %v", err)
		conn.Close()
		return
	}

	if reg.Type != signaling.TypeRegister || (reg.Role != signaling.RoleSender && reg.Role != signaling.RoleReceiver) {
		sendErrorConn(conn, signaling.ErrInvalidMessage, "first message must be register with role sender or receiver")
		conn.Close()
		return
	}

	sess, err := s.GetOrCreateSession(code, reg.Role)
	if err != nil {
		sendErrorConn(conn, signaling.ErrCodeInUse, err.Error())
		conn.Close()
		return
	}

	peer := &Peer{
		Conn: conn,
		Role: reg.Role,
		Info: reg.PeerInfo,
		Done: make(chan struct{}),
	}

	sess.mu.Lock()
	if reg.Role == signaling.RoleSender {
		sess.Sender = peer
	} else {
		sess.Receiver = peer
	}
	bothConnected := sess.BothConnected()
	sess.mu.Unlock()

	if bothConnected {
		s.notifyPeersJoined(sess)
	}

	s.forwardLoop(sess, peer, code)

	sess.mu.Lock()
	shouldRelay := sess.RelayActive && peer.Role == signaling.RoleSender
	shouldWait := sess.RelayActive && peer.Role == signaling.RoleReceiver
	sess.mu.Unlock()

	switch {
	case shouldRelay:
		sess.mu.Lock()
		receiver := sess.Receiver
		sess.mu.Unlock()
		if receiver != nil {
			<-receiver.Done
		}

		sess.mu.Lock()
		sender := sess.Sender
		receiver = sess.Receiver
		sess.mu.Unlock()

		if sender != nil && receiver != nil {
			relayLoop(sender, receiver, s.relayLimiter, s.metrics)
			sender.Close()
			receiver.Close()
		}

		sess.mu.Lock()
		sess.Sender = nil
		sess.Receiver = nil
		sess.mu.Unlock()
		s.RemoveSession(code)

		close(sess.relayDone)

	case shouldWait:
		// The receiver's handler must stay alive while the relay runs,
		// otherwise the HTTP server closes the underlying TCP connection
		// out from under the sender's relay pumps (spec.md §9).
		<-sess.relayDone
	}
}

func (s *Server) notifyPeersJoined(sess *Session) {
	sess.mu.Lock()
	sender := sess.Sender
	receiver := sess.Receiver
	sess.mu.Unlock()

	if sender == nil || receiver == nil {
		return
	}

	senderInfo := buildPeerInfo(sender)
	receiverInfo := buildPeerInfo(receiver)

	_ = sender.WriteJSON(signaling.PeerJoined(receiverInfo))
	_ = receiver.WriteJSON(signaling.PeerJoined(senderInfo))
}

// buildPeerInfo merges the peer's registered local info with the public
// IP observed on its own WebSocket connection, and rewrites the public
// port to the peer's declared QUIC port rather than its ephemeral
// WebSocket port (spec.md §4.5 "Peer announcement").
func buildPeerInfo(p *Peer) *signaling.PeerInfo {
	detected := peerInfoFromConn(p.Conn)

	if p.Info == nil {
		return detected
	}

	return &signaling.PeerInfo{
		PublicIP:   detected.PublicIP,
		PublicPort: p.Info.LocalPort,
		LocalIP:    p.Info.LocalIP,
		LocalPort:  p.Info.LocalPort,
	}
}

func peerInfoFromConn(conn *websocket.Conn) *signaling.PeerInfo {
	addr := conn.RemoteAddr().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return &signaling.PeerInfo{PublicIP: addr}
	}
	portNum := 0
	if p, err := net.LookupPort("tcp", port); err == nil {
		portNum = p
	}
	return &signaling.PeerInfo{PublicIP: host, PublicPort: portNum}
}

// forwardLoop reads signaling frames from peer until it disconnects,
// the peer requests relay_ready, or both sides agree to enter relay
// mode. spake2 and cert_fingerprint are forwarded verbatim; anything
// else unrecognized gets an UNKNOWN_TYPE error back to the sender only.
func (s *Server) forwardLoop(sess *Session, peer *Peer, code string) {
	defer func() {
		select {
		case <-peer.Done:
		default:
			close(peer.Done)
		}

		sess.mu.Lock()
		relayActive := sess.RelayActive
		other := sess.OtherPeer(peer)
		sess.mu.Unlock()

		if relayActive {
			return
		}

		sess.mu.Lock()
		if peer.Role == signaling.RoleSender {
			sess.Sender = nil
		} else {
			sess.Receiver = nil
		}
		empty := sess.Sender == nil && sess.Receiver == nil
		sess.mu.Unlock()

		peer.Close()

		if other != nil {
			_ = other.WriteJSON(signaling.PeerDisconnected(peer.Role + " disconnected"))
		}

		if empty {
			s.RemoveSession(code)
		}
	}()

	for {
		var msg signaling.Message
		if err := peer.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("server: read error on session %s: %v", code, err)
			}
			return
		}

		switch msg.Type {
		case signaling.TypeDisconnect:
			return

		case signaling.TypeRelayReady:
			return

		case signaling.TypeSpake2, signaling.TypeCertFingerprint:
			sess.mu.Lock()
			other := sess.OtherPeer(peer)
			sess.mu.Unlock()
			if other != nil {
				if err := other.WriteJSON(msg); err != nil {
					log.Printf("server: forward error on session %s: %v", code, err)
					return
				}
			}

		case signaling.TypeRelayRequest:
			sess.mu.Lock()
			if peer.Role == signaling.RoleSender {
				sess.SenderWantsRelay = true
			} else {
				sess.ReceiverWantsRelay = true
			}
			bothWant := sess.SenderWantsRelay && sess.ReceiverWantsRelay
			other := sess.OtherPeer(peer)
			sess.mu.Unlock()

			if bothWant {
				sess.mu.Lock()
				sess.RelayActive = true
				sender := sess.Sender
				receiver := sess.Receiver
				sess.mu.Unlock()

				log.Printf("server: both peers requested relay for session %s", code)

				if sender != nil {
					_ = sender.WriteJSON(signaling.RelayActive())
				}
				if receiver != nil {
					_ = receiver.WriteJSON(signaling.RelayActive())
				}
				return
			}

			if other != nil {
				_ = other.WriteJSON(msg)
			}

		default:
			sendError(peer, signaling.ErrUnknownType, "unsupported message type: "+msg.Type)
		}
	}
}

func sendErrorConn(conn *websocket.Conn, code, message string) {
	_ = conn.WriteJSON(signaling.Error(code, message))
}

func sendError(p *Peer, code, message string) {
	_ = p.WriteJSON(signaling.Error(code, message))
}
