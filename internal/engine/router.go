// Package engine (router.go) implements C5: the router/host L3 engine.
// Invoked for any at-device packet on a router, host, firewall, cloud,
// or a switch acting on management/SVI traffic, following the step
// order spec.md §4.2 specifies exactly: local-origin detection,
// acceptance, ARP, passive learning, firewall, for-me delivery, route
// lookup, TTL, ARP resolve/buffer.
package engine

import (
	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/firewall"
	"github.com/kestrelnet/netlab/internal/model"
)

// processRouterHost runs spec.md §4.2's full step sequence for p at d.
func (e *Engine) processRouterHost(d *model.Device, p *model.Packet) []*model.Packet {
	// Step 3 (ARP is handled ahead of acceptance: spec.md §4.2 groups it
	// with the rest of the pipeline, but an ARP packet never carries an
	// IP payload for the not-for-me check in step 2 to apply to).
	if p.Kind == model.PacketARP {
		return e.handleARP(d, p)
	}

	// DHCP broadcasts carry no resolvable DstIP, so they bypass route
	// lookup entirely and are handled by the exchange in dhcp.go.
	if p.Kind == model.PacketDHCP {
		return e.handleDHCP(d, p)
	}

	locallyGenerated := e.isLocallyGenerated(d, p)

	// Step 2 — acceptance.
	myIface := e.ifaceByMAC(d, p.DstMAC)
	if !locallyGenerated && myIface == nil &&
		!addr.IsBroadcastMAC(p.DstMAC) && !addr.IsPlaceholderMAC(p.DstMAC) {
		e.drop(p, "not addressed to this device")
		return nil
	}

	// Step 4 — passive learning.
	e.passiveLearnARP(d, p)

	// Step 5 — firewall (firewalls only, skipped for local origin).
	if d.Kind == model.KindFirewall && !locallyGenerated {
		verdict := firewall.Evaluate(d.Firewall, firewallCandidate(p))
		if verdict == model.ActionDeny {
			if e.Metrics != nil {
				e.Metrics.FirewallDenies.Inc()
			}
			e.drop(p, "firewall denied")
			return nil
		}
	}

	// Step 6 — for-me check.
	if e.destinedToMe(d, p) {
		return e.deliverLocally(d, p)
	}

	// Step 7 — route lookup.
	ingress, _ := e.World.InterfaceByName(d.ID, p.IngressInterface)
	egress, nextHop, ok := e.routeLookup(d, p)
	if !ok {
		return e.icmpError(d, p, ingress, ingressAddrOrEmpty(ingress), ingressMACOrEmpty(ingress), model.ICMPTypeDestUnreachable)
	}

	// Step 8 — TTL.
	if !locallyGenerated && p.TTL <= 1 {
		return e.icmpError(d, p, ingress, ingressAddrOrEmpty(ingress), ingressMACOrEmpty(ingress), model.ICMPTypeTimeExceeded)
	}

	fwd := p.Clone()
	if !locallyGenerated {
		fwd.TTL = p.TTL - 1
	}
	fwd.IsLocallyGenerated = false

	// Step 9/10 — ARP resolve or buffer.
	if entry, ok := d.ARP.Lookup(nextHop); ok {
		fwd.SrcMAC = egress.MAC
		fwd.DstMAC = entry.MAC
		return e.emitOnLink(d, egress, fwd)
	}
	return e.arpMissBuffer(d, fwd, egress, nextHop)
}

// isLocallyGenerated implements spec.md §4.2 step 1.
func (e *Engine) isLocallyGenerated(d *model.Device, p *model.Packet) bool {
	if p.IsLocallyGenerated {
		return true
	}
	return p.LastDeviceID == "" && e.srcMACIsMine(d, p.SrcMAC)
}

// passiveLearnARP implements spec.md §4.2 step 4: learn a non-ARP IP
// sender that shares the ingress interface's subnet.
func (e *Engine) passiveLearnARP(d *model.Device, p *model.Packet) {
	if d.ARP == nil || p.SrcIP == nil || p.IngressInterface == "" {
		return
	}
	ingress, ok := e.World.InterfaceByName(d.ID, p.IngressInterface)
	if !ok || !sameSubnet(ingress, p.SrcIP) {
		return
	}
	d.ARP.Upsert(p.SrcIP.String(), p.SrcMAC, p.IngressInterface, model.EntryDynamic)
}

// deliverLocally implements spec.md §4.2 step 6.
func (e *Engine) deliverLocally(d *model.Device, p *model.Packet) []*model.Packet {
	switch p.Kind {
	case model.PacketTCP:
		return e.handleTCP(d, p)
	case model.PacketICMP:
		if p.ICMP == nil {
			return nil
		}
		switch p.ICMP.Type {
		case model.ICMPTypeEchoRequest:
			return []*model.Packet{icmpEchoReply(d, p)}
		case model.ICMPTypeEchoReply, model.ICMPTypeDestUnreachable, model.ICMPTypeTimeExceeded:
			p.Stage = model.StageArrived
			return []*model.Packet{p}
		}
		return nil
	case model.PacketDNS:
		return e.handleDNS(d, p)
	default:
		return nil
	}
}

// routeLookup implements spec.md §4.2 step 7: connected subnet first,
// then longest-prefix-match, then a configured default gateway.
func (e *Engine) routeLookup(d *model.Device, p *model.Packet) (egress *model.Interface, nextHop string, ok bool) {
	if p.DstIP == nil {
		return nil, "", false
	}
	for _, ifaceID := range d.InterfaceIDs {
		iface, found := e.World.Interface(ifaceID)
		if !found || !iface.HasIP() {
			continue
		}
		if sameSubnet(iface, p.DstIP) {
			return iface, p.DstIP.String(), true
		}
	}
	if route, found := e.lpmRoute(d, p.DstIP); found {
		iface, ifOK := e.World.Interface(route.Interface)
		if !ifOK {
			return nil, "", false
		}
		if route.Gateway == "0.0.0.0" {
			return iface, p.DstIP.String(), true
		}
		return iface, route.Gateway, true
	}
	for _, ifaceID := range d.InterfaceIDs {
		iface, found := e.World.Interface(ifaceID)
		if found && iface.Gateway != "" {
			return iface, iface.Gateway, true
		}
	}
	return nil, "", false
}

// lpmRoute implements the longest-prefix-match lookup shared by the
// router path (step 7.2) and the SVI inter-VLAN path (spec.md §4.6).
func (e *Engine) lpmRoute(d *model.Device, destIP interface{ String() string }) (*model.RouteEntry, bool) {
	if d.Routes == nil {
		return nil, false
	}
	ip, err := addr.ParseIPv4(destIP.String())
	if err != nil {
		return nil, false
	}
	var best *model.RouteEntry
	bestLen := -1
	for _, r := range d.Routes.All() {
		network, err := addr.ParseIPv4(r.Network)
		if err != nil {
			continue
		}
		mask, err := addr.ParseIPv4(r.Mask)
		if err != nil {
			continue
		}
		if !addr.SameSubnet(ip, network, mask) {
			continue
		}
		l := addr.MaskToPrefixLen(mask)
		if l > bestLen {
			bestLen = l
			best = r
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// arpMissBuffer implements spec.md §4.2 step 10: emit an ARP REQUEST
// for nextHop and buffer the original packet awaiting resolution.
func (e *Engine) arpMissBuffer(d *model.Device, p *model.Packet, egress *model.Interface, nextHop string) []*model.Packet {
	req := arpRequestPacket(d.ID, egress.MAC, egress.IP, nextHop)
	reqOut := e.emitOnLink(d, egress, req)

	p.Stage = model.StageBuffered
	p.WaitingForARP = nextHop
	p.CurrentDeviceID = d.ID

	if e.Metrics != nil {
		e.Metrics.ARPMisses.Inc()
	}
	e.publishBuffered(d.ID, p.ID, nextHop)

	return append(reqOut, p)
}

func ingressAddrOrEmpty(iface *model.Interface) string {
	if iface == nil {
		return ""
	}
	return iface.IP
}

func ingressMACOrEmpty(iface *model.Interface) string {
	if iface == nil {
		return ""
	}
	return iface.MAC
}
