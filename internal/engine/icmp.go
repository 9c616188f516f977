package engine

import (
	"net"

	"github.com/kestrelnet/netlab/internal/model"
)

// icmpError synthesizes an ICMP error (Destination-Unreachable or
// Time-Exceeded, spec.md §4.2 steps 7.4/8) addressed back to p's
// source, sent out egress using srcIP/srcMAC as the replying identity
// (the router interface's own address, or an SVI's, spec.md §4.6).
// egress must be the physical interface the error should leave on; the
// original packet is dropped.
func (e *Engine) icmpError(d *model.Device, p *model.Packet, egress *model.Interface, srcIP, srcMAC string, icmpType int) []*model.Packet {
	if egress == nil || p.SrcIP == nil {
		e.drop(p, "cannot generate icmp error: no ingress interface")
		return nil
	}
	destMAC := p.SrcMAC
	if d.ARP != nil {
		if entry, ok := d.ARP.Lookup(p.SrcIP.String()); ok {
			destMAC = entry.MAC
		}
	}
	errPkt := &model.Packet{
		Kind:   model.PacketICMP,
		SrcMAC: srcMAC,
		DstMAC: destMAC,
		SrcIP:  net.ParseIP(srcIP),
		DstIP:  p.SrcIP,
		TTL:    64,
		Size:   p.Size,
		ICMP:   &model.ICMPFields{Type: icmpType, Code: model.ICMPCodeNetworkUnreachable},
		Payload: model.ICMPErrorPayload{
			OriginalDestIP:   ipString(p.DstIP),
			OriginalSourceIP: ipString(p.SrcIP),
			OriginalType:     p.Kind,
		},
		CurrentDeviceID: d.ID,
	}
	reason := "icmp destination unreachable generated"
	if icmpType == model.ICMPTypeTimeExceeded {
		reason = "icmp time exceeded generated"
	}
	e.drop(p, reason)
	return e.emitOnLink(d, egress, errPkt)
}

// icmpEchoReply synthesizes an Echo Reply for a locally-delivered Echo
// Request (spec.md §4.2 step 6): swapped MACs/IPs, same sequence,
// staged at-device so it re-enters the L3 engine for routing back out.
// Clearing LastDeviceID makes step 1's local-origin detection fire
// naturally on the next dispatch, without an explicit flag.
func icmpEchoReply(d *model.Device, p *model.Packet) *model.Packet {
	reply := p.Clone()
	reply.ICMP = &model.ICMPFields{Type: model.ICMPTypeEchoReply, Code: 0, Seq: p.ICMP.Seq}
	reply.SrcIP, reply.DstIP = p.DstIP, p.SrcIP
	reply.SrcMAC, reply.DstMAC = p.DstMAC, p.SrcMAC
	reply.TTL = 64
	reply.Stage = model.StageAtDevice
	reply.CurrentDeviceID = d.ID
	reply.LastDeviceID = ""
	reply.IngressInterface = ""
	reply.EgressInterface = ""
	reply.IsLocallyGenerated = false
	return reply
}
