package model

// TCPState is a position in the handshake/teardown state machine
// (spec.md §4.8's full ten-state table, extended from the teacher's
// three-state NEW/ESTABLISHED/CLOSED).
type TCPState int

const (
	TCPListen TCPState = iota
	TCPSynSent
	TCPSynReceived
	TCPEstablished
	TCPFinWait1
	TCPFinWait2
	TCPCloseWait
	TCPClosing
	TCPLastAck
	TCPTimeWait
	TCPClosed
)

func (s TCPState) String() string {
	switch s {
	case TCPListen:
		return "LISTEN"
	case TCPSynSent:
		return "SYN_SENT"
	case TCPSynReceived:
		return "SYN_RECEIVED"
	case TCPEstablished:
		return "ESTABLISHED"
	case TCPFinWait1:
		return "FIN_WAIT_1"
	case TCPFinWait2:
		return "FIN_WAIT_2"
	case TCPCloseWait:
		return "CLOSE_WAIT"
	case TCPClosing:
		return "CLOSING"
	case TCPLastAck:
		return "LAST_ACK"
	case TCPTimeWait:
		return "TIME_WAIT"
	case TCPClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// TCPConnKey identifies a connection by its four-tuple plus the
// device-local perspective (spec.md §4.8: client and server each track
// their own side of the same logical connection, so the two rows are
// not required to agree on every tick).
type TCPConnKey struct {
	LocalIP    string
	LocalPort  int
	RemoteIP   string
	RemotePort int
}

// TCPConn is one device's view of a single TCP connection.
type TCPConn struct {
	Key   TCPConnKey
	State TCPState
	// IsListener marks a server-side socket in TCPListen that spawned
	// this row from an incoming SYN, as opposed to the client's
	// originating connection.
	IsListener bool
	NextSeq    uint32
	NextAck    uint32
}

// TCPTable holds a device's TCP connections, keyed by four-tuple.
type TCPTable struct {
	conns map[TCPConnKey]*TCPConn
}

func NewTCPTable() *TCPTable {
	return &TCPTable{conns: make(map[TCPConnKey]*TCPConn)}
}

func (t *TCPTable) Get(k TCPConnKey) (*TCPConn, bool) {
	c, ok := t.conns[k]
	return c, ok
}

func (t *TCPTable) Put(c *TCPConn) {
	t.conns[c.Key] = c
}

func (t *TCPTable) Remove(k TCPConnKey) {
	delete(t.conns, k)
}

func (t *TCPTable) All() []*TCPConn {
	out := make([]*TCPConn, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, c)
	}
	return out
}
