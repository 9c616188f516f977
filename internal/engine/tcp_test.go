package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/netlab/internal/model"
)

// TestTCPThreeWayHandshake is spec.md §8 scenario 6: an active open
// from one host against a listener on another completes SYN,
// SYN|ACK, ACK and leaves both ends ESTABLISHED.
func TestTCPThreeWayHandshake(t *testing.T) {
	e := newTestEngine()

	client, clientIf := addHost(t, e, "client", model.KindPC, "10.0.0.10", "255.255.255.0", "")
	server, serverIf := addHost(t, e, "server", model.KindServer, "10.0.0.20", "255.255.255.0", "")
	linkUp(t, e, clientIf, serverIf)

	require.NoError(t, e.TCPListen(server.ID, serverIf.IP, 80))
	require.NoError(t, e.TCPConnect(client.ID, clientIf.IP, serverIf.IP, 80))

	established := runUntil(e, 800, func() bool {
		key := model.TCPConnKey{LocalIP: clientIf.IP, RemoteIP: serverIf.IP, RemotePort: 80}
		for _, c := range client.TCP.All() {
			if c.Key.LocalIP == key.LocalIP && c.Key.RemoteIP == key.RemoteIP && c.Key.RemotePort == key.RemotePort {
				if c.State == model.TCPEstablished {
					return true
				}
			}
		}
		return false
	})
	require.True(t, established, "client connection should reach ESTABLISHED")

	var serverSide *model.TCPConn
	for _, c := range server.TCP.All() {
		if c.Key.RemoteIP == clientIf.IP {
			serverSide = c
		}
	}
	require.NotNil(t, serverSide, "server should have a per-connection row, not just the listener")
	require.Equal(t, model.TCPEstablished, serverSide.State)
}

// TestTCPActiveClose exercises spec.md §4.8's active-close operation:
// a FIN from an ESTABLISHED connection drives the initiator to
// FIN_WAIT_2 and the peer to CLOSE_WAIT once its ACK lands.
func TestTCPActiveClose(t *testing.T) {
	e := newTestEngine()

	client, clientIf := addHost(t, e, "client", model.KindPC, "10.0.0.10", "255.255.255.0", "")
	server, serverIf := addHost(t, e, "server", model.KindServer, "10.0.0.20", "255.255.255.0", "")
	linkUp(t, e, clientIf, serverIf)

	require.NoError(t, e.TCPListen(server.ID, serverIf.IP, 80))
	require.NoError(t, e.TCPConnect(client.ID, clientIf.IP, serverIf.IP, 80))

	key := model.TCPConnKey{LocalIP: clientIf.IP, RemoteIP: serverIf.IP, RemotePort: 80}
	established := runUntil(e, 800, func() bool {
		for _, c := range client.TCP.All() {
			if c.Key.RemoteIP == key.RemoteIP && c.Key.RemotePort == key.RemotePort && c.State == model.TCPEstablished {
				key.LocalPort = c.Key.LocalPort
				return true
			}
		}
		return false
	})
	require.True(t, established)

	require.NoError(t, e.TCPClose(client.ID, key))

	reachedFinWait2 := runUntil(e, 800, func() bool {
		c, ok := client.TCP.Get(key)
		return ok && c.State == model.TCPFinWait2
	})
	require.True(t, reachedFinWait2, "client should reach FIN_WAIT_2 once its FIN is ACKed")

	var serverSide *model.TCPConn
	for _, c := range server.TCP.All() {
		if c.Key.RemoteIP == clientIf.IP {
			serverSide = c
		}
	}
	require.NotNil(t, serverSide)
	require.Equal(t, model.TCPCloseWait, serverSide.State, "the passive side should land in CLOSE_WAIT after receiving the FIN")
}
