// Package engine (tcp.go) implements the stateful TCP handshake/
// teardown engine (spec.md §4.8): delivery into internal/tcpstate's
// transition table, plus the top-level listen/connect/close operations
// that inject locally generated segments into the pipeline.
package engine

import (
	"net"

	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/tcpstate"
)

// handleTCP implements spec.md §4.8's per-segment delivery: look up (or
// discover, for a SYN against a LISTENing socket) the connection row,
// run it through internal/tcpstate, persist the outcome, and emit a
// reply segment re-entering the pipeline from this device.
func (e *Engine) handleTCP(d *model.Device, p *model.Packet) []*model.Packet {
	if p.TCP == nil || d.TCP == nil {
		e.drop(p, "tcp packet missing fields or unsupported device")
		return nil
	}

	key := model.TCPConnKey{
		LocalIP:    ipString(p.DstIP),
		LocalPort:  p.TCP.DstPort,
		RemoteIP:   ipString(p.SrcIP),
		RemotePort: p.TCP.SrcPort,
	}
	conn, found := d.TCP.Get(key)

	listening := false
	if !found {
		listenKey := model.TCPConnKey{LocalIP: key.LocalIP, LocalPort: key.LocalPort}
		if l, ok := d.TCP.Get(listenKey); ok && l.State == model.TCPListen {
			listening = true
		}
	}

	seg := tcpstate.Segment{
		SYN: p.TCP.SYN, ACK: p.TCP.ACK, FIN: p.TCP.FIN, RST: p.TCP.RST, PSH: p.TCP.PSH,
		Seq: p.TCP.Seq, Ack: p.TCP.Ack, Size: p.Size,
	}

	outcome := tcpstate.Transition(conn, seg, listening)

	switch {
	case outcome.CreateConn:
		row := &model.TCPConn{Key: key, State: outcome.NewState, NextSeq: outcome.NewSeq, NextAck: outcome.NewAck}
		d.TCP.Put(row)
	case outcome.Remove && found:
		d.TCP.Remove(key)
	case found:
		conn.State = outcome.NewState
		if outcome.NewSeq != 0 {
			conn.NextSeq = outcome.NewSeq
		}
		if outcome.NewAck != 0 {
			conn.NextAck = outcome.NewAck
		}
	}

	if found || outcome.CreateConn {
		e.publish(events.Event{Type: events.TCPStateChanged, DeviceID: d.ID, PacketID: p.ID, Attributes: map[string]any{
			"state": outcome.NewState.String(),
		}})
	}

	if !outcome.EmitReply {
		return nil
	}
	reply := p.Clone()
	reply.SrcIP, reply.DstIP = p.DstIP, p.SrcIP
	reply.SrcMAC, reply.DstMAC = p.DstMAC, p.SrcMAC
	reply.TTL = 64
	reply.TCP = &model.TCPFields{
		SrcPort: p.TCP.DstPort, DstPort: p.TCP.SrcPort,
		SYN: outcome.Reply.SYN, ACK: outcome.Reply.ACK, FIN: outcome.Reply.FIN, RST: outcome.Reply.RST,
		Seq: outcome.Reply.Seq, Ack: outcome.Reply.Ack,
	}
	reply.Stage = model.StageAtDevice
	reply.CurrentDeviceID = d.ID
	reply.LastDeviceID = ""
	reply.IngressInterface = ""
	reply.EgressInterface = ""
	reply.IsLocallyGenerated = true
	return []*model.Packet{reply}
}

// TCPListen opens a listening socket on deviceID (spec.md §4.8's
// passive-open operation): a TCPListen row with no remote peer.
func (e *Engine) TCPListen(deviceID, localIP string, port int) error {
	d, ok := e.World.Device(deviceID)
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	if d.TCP == nil {
		return errors.New(errors.KindValidation, "device kind does not support TCP")
	}
	key := model.TCPConnKey{LocalIP: localIP, LocalPort: port}
	d.TCP.Put(&model.TCPConn{Key: key, State: model.TCPListen, IsListener: true})
	return nil
}

// TCPConnect implements spec.md §4.8's active-open operation: allocate
// an ephemeral local port, pick an initial sequence number, create the
// SYN_SENT row, and inject the opening SYN as a locally generated
// packet for the pipeline to route.
func (e *Engine) TCPConnect(deviceID, localIP, remoteIP string, remotePort int) error {
	d, ok := e.World.Device(deviceID)
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	if d.TCP == nil {
		return errors.New(errors.KindValidation, "device kind does not support TCP")
	}
	iface := e.ifaceWithIP(d, localIP)
	if iface == nil {
		return errors.New(errors.KindValidation, "device has no interface with that IP")
	}

	localPort := e.ephemeralPort(d)
	isn := e.Clock.Uint32()
	key := model.TCPConnKey{LocalIP: localIP, LocalPort: localPort, RemoteIP: remoteIP, RemotePort: remotePort}
	state, seg := tcpstate.Connect(isn)
	d.TCP.Put(&model.TCPConn{Key: key, State: state, NextSeq: isn, NextAck: 0})

	pkt := &model.Packet{
		Kind:   model.PacketTCP,
		SrcMAC: iface.MAC,
		DstMAC: addr.PlaceholderMAC,
		SrcIP:  net.ParseIP(localIP),
		DstIP:  net.ParseIP(remoteIP),
		TTL:    64,
		TCP: &model.TCPFields{
			SrcPort: localPort, DstPort: remotePort,
			SYN: seg.SYN, Seq: seg.Seq,
		},
		CurrentDeviceID:    d.ID,
		Stage:              model.StageAtDevice,
		IsLocallyGenerated: true,
	}
	e.World.AddPacket(pkt)
	return nil
}

// TCPClose implements spec.md §4.8's active-close operation out of
// ESTABLISHED: FIN_WAIT_1, injecting a FIN|ACK.
func (e *Engine) TCPClose(deviceID string, key model.TCPConnKey) error {
	d, ok := e.World.Device(deviceID)
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	if d.TCP == nil {
		return errors.New(errors.KindValidation, "device kind does not support TCP")
	}
	conn, ok := d.TCP.Get(key)
	if !ok {
		return errors.New(errors.KindNotFound, "connection not found")
	}
	if conn.State != model.TCPEstablished {
		return errors.New(errors.KindValidation, "connection is not established")
	}
	iface := e.ifaceWithIP(d, key.LocalIP)
	if iface == nil {
		return errors.New(errors.KindValidation, "device has no interface with that IP")
	}

	state, seg := tcpstate.Close(conn.NextSeq, conn.NextAck)
	conn.State = state

	pkt := &model.Packet{
		Kind:   model.PacketTCP,
		SrcMAC: iface.MAC,
		DstMAC: addr.PlaceholderMAC,
		SrcIP:  net.ParseIP(key.LocalIP),
		DstIP:  net.ParseIP(key.RemoteIP),
		TTL:    64,
		TCP: &model.TCPFields{
			SrcPort: key.LocalPort, DstPort: key.RemotePort,
			FIN: seg.FIN, ACK: seg.ACK, Seq: seg.Seq, Ack: seg.Ack,
		},
		CurrentDeviceID:    d.ID,
		Stage:              model.StageAtDevice,
		IsLocallyGenerated: true,
	}
	e.World.AddPacket(pkt)
	return nil
}

// ephemeralPort picks the next unused port in spec.md §4.8's ephemeral
// range for an active open from d.
func (e *Engine) ephemeralPort(d *model.Device) int {
	used := make(map[int]bool)
	for _, c := range d.TCP.All() {
		if tcpstate.EphemeralPort(c.Key.LocalPort) {
			used[c.Key.LocalPort] = true
		}
	}
	for p := 49152; p <= 65535; p++ {
		if !used[p] {
			return p
		}
	}
	return 49152
}
