// Package tcpstate implements the per-connection handshake/teardown
// state machine of spec.md §4.6, grounded directly on
// internal/kernel/provider_sim.go's tcpStateTransition (a 3-state
// NEW/ESTABLISHED/CLOSED FSM keyed on layers.TCP flags) and
// internal/kernel/flow.go's FlowState/Flow shape, extended to the
// spec's full ten-state machine.
package tcpstate

import "github.com/kestrelnet/netlab/internal/model"

// Segment is the subset of a TCP packet's flags/numbers the state
// machine needs.
type Segment struct {
	SYN, ACK, FIN, RST, PSH bool
	Seq, Ack                uint32
	Size                    int
}

// Outcome is what Transition produces: the connection's new state (or
// removal) and the reply segment to emit, if any.
type Outcome struct {
	NewState    model.TCPState
	Remove      bool
	EmitReply   bool
	Reply       Segment
	NewSeq      uint32
	NewAck      uint32
	CreateConn  bool
}

// Transition applies spec.md §4.6's table for a segment arriving at a
// connection in the given state. listening reports whether some
// socket on this device is LISTENing on the segment's local port when
// conn is nil (no existing connection row).
func Transition(conn *model.TCPConn, seg Segment, listening bool) Outcome {
	if conn == nil {
		if seg.SYN && !listening {
			return Outcome{EmitReply: true, Reply: Segment{RST: true, ACK: true, Ack: seg.Seq + 1}}
		}
		if seg.SYN && listening {
			return Outcome{
				NewState:   model.TCPSynReceived,
				CreateConn: true,
				EmitReply:  true,
				Reply:      Segment{SYN: true, ACK: true, Seq: 1000, Ack: seg.Seq + 1},
				NewSeq:     1000,
				NewAck:     seg.Seq + 1,
			}
		}
		return Outcome{}
	}

	if seg.RST {
		return Outcome{Remove: true}
	}

	switch conn.State {
	case model.TCPSynSent:
		if seg.SYN && seg.ACK {
			return Outcome{
				NewState:  model.TCPEstablished,
				EmitReply: true,
				Reply:     Segment{ACK: true, Seq: seg.Ack, Ack: seg.Seq + 1},
				NewSeq:    seg.Ack,
				NewAck:    seg.Seq + 1,
			}
		}
	case model.TCPSynReceived:
		if seg.ACK && !seg.SYN && !seg.FIN {
			return Outcome{NewState: model.TCPEstablished}
		}
	case model.TCPEstablished:
		switch {
		case seg.FIN:
			return Outcome{
				NewState:  model.TCPCloseWait,
				EmitReply: true,
				Reply:     Segment{ACK: true, Ack: seg.Seq + 1},
				NewAck:    seg.Seq + 1,
			}
		case seg.PSH:
			return Outcome{
				NewState:  model.TCPEstablished,
				EmitReply: true,
				Reply:     Segment{ACK: true, Ack: conn.NextAck + uint32(seg.Size)},
				NewAck:    conn.NextAck + uint32(seg.Size),
			}
		}
	case model.TCPFinWait1:
		if seg.FIN {
			return Outcome{
				NewState:  model.TCPClosing,
				EmitReply: true,
				Reply:     Segment{ACK: true, Ack: seg.Seq + 1},
				NewAck:    seg.Seq + 1,
			}
		}
		if seg.ACK {
			return Outcome{NewState: model.TCPFinWait2}
		}
	case model.TCPFinWait2:
		if seg.FIN {
			return Outcome{
				NewState:  model.TCPTimeWait,
				EmitReply: true,
				Reply:     Segment{ACK: true, Ack: seg.Seq + 1},
				NewAck:    seg.Seq + 1,
			}
		}
	case model.TCPLastAck:
		if seg.ACK {
			return Outcome{Remove: true}
		}
	case model.TCPClosing:
		if seg.ACK {
			return Outcome{NewState: model.TCPTimeWait}
		}
	}
	return Outcome{NewState: conn.State}
}

// Connect builds the client-side outbound state for an active open
// (spec.md §4.6 tcpConnect): SYN_SENT, emitting a SYN with the given
// initial sequence number.
func Connect(isn uint32) (model.TCPState, Segment) {
	return model.TCPSynSent, Segment{SYN: true, Seq: isn}
}

// Close builds the active-close transition out of ESTABLISHED
// (spec.md §4.6 tcpClose): FIN_WAIT_1, emitting FIN|ACK.
func Close(seq, ack uint32) (model.TCPState, Segment) {
	return model.TCPFinWait1, Segment{FIN: true, ACK: true, Seq: seq, Ack: ack}
}

// EphemeralPort returns whether p is in the ephemeral range spec.md
// §4.6 allocates active-open local ports from.
func EphemeralPort(p int) bool {
	return p >= 49152 && p <= 65535
}
