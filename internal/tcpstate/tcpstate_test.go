package tcpstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/netlab/internal/model"
)

// TestHandshakeScenario6 mirrors spec.md §8 scenario 6.
func TestHandshakeScenario6(t *testing.T) {
	// Server: tcpListen(80) -> no connection row yet, listening true.
	synOutcome := Transition(nil, Segment{SYN: true, Seq: 500}, true)
	require.True(t, synOutcome.CreateConn)
	require.Equal(t, model.TCPSynReceived, synOutcome.NewState)
	require.True(t, synOutcome.Reply.SYN && synOutcome.Reply.ACK)
	require.EqualValues(t, 1000, synOutcome.Reply.Seq)
	require.EqualValues(t, 501, synOutcome.Reply.Ack)

	// Client: SYN_SENT sees SYN|ACK -> ESTABLISHED, emits ACK.
	client := &model.TCPConn{State: model.TCPSynSent}
	ackOutcome := Transition(client, Segment{SYN: true, ACK: true, Seq: 1000, Ack: 1}, false)
	require.Equal(t, model.TCPEstablished, ackOutcome.NewState)
	require.True(t, ackOutcome.Reply.ACK)

	// Server: SYN_RECEIVED sees bare ACK -> ESTABLISHED.
	server := &model.TCPConn{State: model.TCPSynReceived}
	finalOutcome := Transition(server, Segment{ACK: true}, false)
	require.Equal(t, model.TCPEstablished, finalOutcome.NewState)
	require.False(t, finalOutcome.EmitReply)
}

func TestSynToNonListeningPortRST(t *testing.T) {
	out := Transition(nil, Segment{SYN: true, Seq: 10}, false)
	require.True(t, out.EmitReply)
	require.True(t, out.Reply.RST && out.Reply.ACK)
	require.EqualValues(t, 11, out.Reply.Ack)
}

func TestTeardownChain(t *testing.T) {
	estab := &model.TCPConn{State: model.TCPEstablished}
	closeState, finSeg := Close(100, 200)
	require.Equal(t, model.TCPFinWait1, closeState)
	require.True(t, finSeg.FIN && finSeg.ACK)

	finWait1 := &model.TCPConn{State: model.TCPFinWait1}
	out := Transition(finWait1, Segment{FIN: true, Seq: 300}, false)
	require.Equal(t, model.TCPClosing, out.NewState)

	finWait2 := &model.TCPConn{State: model.TCPFinWait2}
	out2 := Transition(finWait2, Segment{FIN: true, Seq: 400}, false)
	require.Equal(t, model.TCPTimeWait, out2.NewState)

	_ = estab
}

func TestRSTRemovesConnection(t *testing.T) {
	conn := &model.TCPConn{State: model.TCPEstablished}
	out := Transition(conn, Segment{RST: true}, false)
	require.True(t, out.Remove)
}

func TestEphemeralPortRange(t *testing.T) {
	require.True(t, EphemeralPort(49152))
	require.True(t, EphemeralPort(65535))
	require.False(t, EphemeralPort(49151))
	require.False(t, EphemeralPort(1024))
}
