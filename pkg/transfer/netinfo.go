package transfer

import (
	"fmt"
	"net"

	"github.com/glycerine/ipaddr"
)

// localIPv4 returns the first non-loopback IPv4 address bound to this
// host, used to fill in the local_ip field of a register message
// (spec.md §6). ipaddr.GetExternalIP() already does this scan and
// additionally prefers a routable address when several are bound, but
// it panics on a net.InterfaceAddrs failure (fine for the one-shot CLI
// tools it was written for); a long-lived signaling session has no
// business dying over that, so a failure here just falls back to
// loopback like any other unreachable-candidate case.
func localIPv4() (ip string) {
	defer func() {
		if recover() != nil {
			ip = "127.0.0.1"
		}
	}()
	return ipaddr.GetExternalIP()
}

// ReserveLocalPort reserves an ephemeral UDP port and releases it
// immediately, so a sender can declare a port to the rendezvous server
// before the QUIC listener (which needs the peer's certificate
// fingerprint first) exists. There is a small window in which another
// process could steal the port; acceptable here since a failed bind
// falls through to relay like any other direct-transport failure.
func ReserveLocalPort() (int, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return 0, fmt.Errorf("transfer: reserving a UDP port: %w", err)
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return 0, fmt.Errorf("transfer: unexpected local address type %T", conn.LocalAddr())
	}
	return addr.Port, nil
}
