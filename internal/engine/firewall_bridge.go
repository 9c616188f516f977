package engine

import (
	"github.com/kestrelnet/netlab/internal/firewall"
	"github.com/kestrelnet/netlab/internal/model"
)

// firewallCandidate adapts a model.Packet to internal/firewall's
// evaluation input (spec.md §4.2 step 5).
func firewallCandidate(p *model.Packet) firewall.Candidate {
	c := firewall.Candidate{
		SrcIP: ipString(p.SrcIP),
		DstIP: ipString(p.DstIP),
	}
	switch p.Kind {
	case model.PacketICMP:
		c.Protocol = model.ProtoICMP
	case model.PacketTCP:
		c.Protocol = model.ProtoTCP
		if p.TCP != nil {
			c.SrcPort, c.DstPort = p.TCP.SrcPort, p.TCP.DstPort
			c.HasPorts = true
		}
	case model.PacketUDP, model.PacketDHCP, model.PacketDNS:
		c.Protocol = model.ProtoUDP
	default:
		c.Protocol = model.ProtoAny
	}
	return c
}
