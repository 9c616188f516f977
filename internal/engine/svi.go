// Package engine (svi.go) implements C6: inter-VLAN routing on a
// switch's SVIs (spec.md §4.6).
package engine

import (
	"strconv"
	"strings"

	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
)

// sviTarget reports whether p should be handled by the SVI engine
// rather than the plain L2 forwarder: its destination MAC is an SVI's
// MAC, or it's an ARP REQUEST targeting an SVI's IP (spec.md §4.3 step
// 4, §4.6).
func (e *Engine) sviTarget(d *model.Device, p *model.Packet) (*model.SVI, bool) {
	if d.Kind != model.KindSwitch || len(d.SVIs) == 0 {
		return nil, false
	}

	if p.Kind == model.PacketARP {
		if payload, ok := p.Payload.(model.ARPPayload); ok && payload.Op == model.ARPRequest {
			for i := range d.SVIs {
				if d.SVIs[i].IP == payload.TargetIP {
					return &d.SVIs[i], true
				}
			}
		}
	}

	for i := range d.SVIs {
		if d.SVIs[i].MAC == p.DstMAC {
			return &d.SVIs[i], true
		}
	}
	return nil, false
}

// processSVI implements spec.md §4.6: ARP replies for the SVI's own
// IP, and inter-VLAN routing for everything else destined to it.
func (e *Engine) processSVI(d *model.Device, p *model.Packet, svi *model.SVI) []*model.Packet {
	if p.Kind == model.PacketARP {
		return e.sviHandleARP(d, p, svi)
	}
	if p.Kind == model.PacketICMP && p.DstIP != nil && p.DstIP.String() == svi.IP {
		if p.ICMP != nil && p.ICMP.Type == model.ICMPTypeEchoRequest {
			reply := icmpEchoReply(d, p)
			return []*model.Packet{reply}
		}
		return nil
	}
	return e.routeFromSVI(d, p, svi)
}

// sviHandleARP implements spec.md §4.4's "ARP REQUEST for SVI IP" case:
// reply with the SVI's MAC/IP, delivered back on the ingress path, and
// learn the sender under the synthetic Vlan<id> interface.
func (e *Engine) sviHandleARP(d *model.Device, p *model.Packet, svi *model.SVI) []*model.Packet {
	payload, ok := p.Payload.(model.ARPPayload)
	if !ok {
		return nil
	}
	if d.ARP != nil {
		d.ARP.Upsert(payload.SenderIP, payload.SenderMAC, svi.InterfaceKey(), model.EntryDynamic)
	}
	if payload.Op != model.ARPRequest || payload.TargetIP != svi.IP {
		return nil
	}
	ingress, ok := e.World.InterfaceByName(d.ID, p.IngressInterface)
	if !ok {
		return nil
	}
	reply := arpReplyPacket(d.ID, svi.MAC, svi.IP, payload.SenderMAC, payload.SenderIP)
	return e.emitOnLink(d, ingress, reply)
}

// routeFromSVI implements spec.md §4.4's "inter-VLAN route" case: TTL
// check, route lookup to an egress SVI, ARP resolve-or-buffer, egress
// tagging per spec.md §4.3 step 6, forwarded within the target VLAN.
func (e *Engine) routeFromSVI(d *model.Device, p *model.Packet, svi *model.SVI) []*model.Packet {
	if p.DstIP == nil {
		e.drop(p, "svi route: no destination ip")
		return nil
	}
	ingress, _ := e.World.InterfaceByName(d.ID, p.IngressInterface)

	if p.TTL <= 1 && !p.IsLocallyGenerated {
		return e.icmpError(d, p, ingress, svi.IP, svi.MAC, model.ICMPTypeTimeExceeded)
	}

	egressSVI, nextHop, ok := e.sviRouteLookup(d, p)
	if !ok {
		return e.icmpError(d, p, ingress, svi.IP, svi.MAC, model.ICMPTypeDestUnreachable)
	}

	fwd := p.Clone()
	if !p.IsLocallyGenerated {
		fwd.TTL = p.TTL - 1
	}
	fwd.IsLocallyGenerated = false
	fwd.SrcMAC = egressSVI.MAC

	if entry, ok := d.ARP.Lookup(nextHop); ok {
		fwd.DstMAC = entry.MAC
		return e.forwardWithinVLAN(d, fwd, egressSVI.VLANID)
	}
	return e.sviArpMissBuffer(d, fwd, egressSVI, nextHop)
}

// sviRouteLookup resolves destIP to an egress SVI and next hop via the
// switch's routing table (connected routes for every SVI are always
// present, spec.md §4.4).
func (e *Engine) sviRouteLookup(d *model.Device, p *model.Packet) (*model.SVI, string, bool) {
	route, ok := e.lpmRoute(d, p.DstIP)
	if !ok {
		return nil, "", false
	}
	vlanID, ok := parseVlanInterfaceKey(route.Interface)
	if !ok {
		return nil, "", false
	}
	svi, ok := d.SVIFor(vlanID)
	if !ok {
		return nil, "", false
	}
	nextHop := route.Gateway
	if route.Gateway == "0.0.0.0" {
		nextHop = p.DstIP.String()
	}
	return svi, nextHop, true
}

func parseVlanInterfaceKey(key string) (int, bool) {
	if !strings.HasPrefix(key, "vlan") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(key, "vlan"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// forwardWithinVLAN sends p to its destination MAC within vlan, using
// the switch's MAC table (egress VLAN) or flooding within that VLAN on
// a miss (spec.md §4.4).
func (e *Engine) forwardWithinVLAN(d *model.Device, p *model.Packet, vlan int) []*model.Packet {
	var eligible []*model.Interface
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := e.World.Interface(ifaceID)
		if !ok || !iface.Up {
			continue
		}
		conn := e.World.ConnectionOn(iface.ID)
		if conn == nil || !conn.Up {
			continue
		}
		if !iface.AllowsVLAN(vlan) {
			continue
		}
		eligible = append(eligible, iface)
	}

	var targets []*model.Interface
	if d.MAC != nil {
		if entry, ok := d.MAC.Lookup(p.DstMAC, vlan); ok {
			for _, iface := range eligible {
				if iface.Name == entry.Port {
					targets = []*model.Interface{iface}
					break
				}
			}
		} else {
			targets = eligible
		}
	} else {
		targets = eligible
	}

	var out []*model.Packet
	for _, iface := range targets {
		cp := p.Clone()
		tagEgress(cp, iface, vlan)
		out = append(out, e.emitOnLink(d, iface, cp)...)
	}
	return out
}

// sviArpMissBuffer implements spec.md §4.4's "issue ARP on a port that
// permits the egress VLAN and buffer the original" case.
func (e *Engine) sviArpMissBuffer(d *model.Device, p *model.Packet, svi *model.SVI, nextHop string) []*model.Packet {
	var reqOut []*model.Packet
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := e.World.Interface(ifaceID)
		if !ok || !iface.Up {
			continue
		}
		conn := e.World.ConnectionOn(iface.ID)
		if conn == nil || !conn.Up || !iface.AllowsVLAN(svi.VLANID) {
			continue
		}
		req := arpRequestPacket(d.ID, svi.MAC, svi.IP, nextHop)
		tagEgress(req, iface, svi.VLANID)
		reqOut = e.emitOnLink(d, iface, req)
		break
	}

	p.Stage = model.StageBuffered
	p.WaitingForARP = nextHop
	p.CurrentDeviceID = d.ID

	if e.Metrics != nil {
		e.Metrics.ARPMisses.Inc()
	}
	e.publish(events.Event{Type: events.PacketBuffered, DeviceID: d.ID, Attributes: map[string]any{
		"waitingForArp": nextHop, "svi": svi.VLANID,
	}})

	return append(reqOut, p)
}
