// Package engine (switch.go) implements C4: the switch L2 engine
// (spec.md §4.3) — VLAN classification, STP gating, MAC learning, and
// flood/forward with egress tagging — plus hub flooding, which skips
// VLAN/STP/learning entirely.
package engine

import (
	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/model"
)

// processSwitchL2 runs spec.md §4.3's full step sequence for p at
// switch d.
func (e *Engine) processSwitchL2(d *model.Device, p *model.Packet) []*model.Packet {
	ingress, ok := e.World.InterfaceByName(d.ID, p.IngressInterface)
	if !ok {
		e.drop(p, "unknown ingress interface")
		return nil
	}

	isBPDU := p.DstMAC == addr.STPMulticastMAC || p.Kind == model.PacketSTP

	// Step 1 — ingress VLAN classification.
	vlan, ok := e.classifyVLAN(ingress, p)
	if !ok {
		e.drop(p, "vlan classification rejected frame")
		return nil
	}

	// Step 2 — STP gate.
	stpEnabled := d.STP.Enabled
	port := d.Ports[ingress.ID]
	forwarding := !stpEnabled || (port != nil && port.Forwarding)
	if stpEnabled && !isBPDU && !forwarding {
		e.drop(p, "stp-blocked port")
		return nil
	}

	// Step 3 — MAC learning. A switch with STP disabled, or whose port
	// has converged to forwarding, learns; our immediate-convergence
	// model (internal/stp) collapses listening/learning into the same
	// Forwarding flag rather than timed sub-states.
	if forwarding && d.MAC != nil {
		d.MAC.Upsert(p.SrcMAC, ingress.Name, vlan, model.EntryDynamic)
	}

	// Step 5/6 — forwarding decision and egress tagging.
	return e.floodOrForward(d, p, ingress, vlan, isBPDU, stpEnabled)
}

// classifyVLAN implements spec.md §4.3 step 1.
func (e *Engine) classifyVLAN(iface *model.Interface, p *model.Packet) (vlan int, ok bool) {
	if iface.VLANMode == model.VLANModeAccess {
		if p.VLANTag != nil {
			return 0, false
		}
		return iface.AccessVLAN, true
	}
	if p.VLANTag != nil {
		tag := *p.VLANTag
		for _, v := range iface.AllowedVLANs {
			if v == tag {
				return tag, true
			}
		}
		return 0, false
	}
	return iface.NativeVLAN, true
}

// floodOrForward implements spec.md §4.3 steps 5-6: pick eligible
// egress ports, decide flood vs. filter vs. forward, and tag each
// outgoing copy for its port's trunk/access mode.
func (e *Engine) floodOrForward(d *model.Device, p *model.Packet, ingress *model.Interface, vlan int, isBPDU, stpEnabled bool) []*model.Packet {
	eligible := e.eligibleEgressPorts(d, ingress, vlan, isBPDU, stpEnabled)

	broadcast := addr.IsBroadcastMAC(p.DstMAC) || addr.IsMulticastMAC(p.DstMAC)
	var targets []*model.Interface
	switch {
	case broadcast:
		targets = eligible
	case d.MAC != nil:
		if entry, ok := d.MAC.Lookup(p.DstMAC, vlan); ok {
			if entry.Port == ingress.Name {
				return nil // filter: destination already lives on the ingress port
			}
			for _, iface := range eligible {
				if iface.Name == entry.Port {
					targets = []*model.Interface{iface}
					break
				}
			}
		} else {
			targets = eligible
		}
	default:
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

// eligibleEgressPorts implements spec.md §4.3 step 5's port filter:
// different from ingress, up and connected, permitting the VLAN, and
// (unless this is a BPDU) in a forwarding STP state.
func (e *Engine) eligibleEgressPorts(d *model.Device, ingress *model.Interface, vlan int, isBPDU, stpEnabled bool) []*model.Interface {
	var out []*model.Interface
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := e.World.Interface(ifaceID)
		if !ok || iface.ID == ingress.ID || !iface.Up {
			continue
		}
		conn := e.World.ConnectionOn(iface.ID)
		if conn == nil || !conn.Up {
			continue
		}
		if !iface.AllowsVLAN(vlan) {
			continue
		}
		if stpEnabled && !isBPDU {
			port := d.Ports[iface.ID]
			if port == nil || !port.Forwarding {
				continue
			}
		}
		out = append(out, iface)
	}
	return out
}

// tagEgress implements spec.md §4.3 step 6: strip on access, tag
// unless native on trunk.
func tagEgress(p *model.Packet, iface *model.Interface, vlan int) {
	if iface.VLANMode == model.VLANModeAccess {
		p.VLANTag = nil
		return
	}
	if vlan == iface.NativeVLAN {
		p.VLANTag = nil
		return
	}
	v := vlan
	p.VLANTag = &v
}

// floodHub implements the hub variant of forwarding (spec.md §4.3's
// closing paragraph): flood to every other up/connected port, with no
// MAC learning and no VLAN awareness.
func (e *Engine) floodHub(d *model.Device, p *model.Packet) []*model.Packet {
	ingress, ok := e.World.InterfaceByName(d.ID, p.IngressInterface)
	if !ok {
		e.drop(p, "unknown ingress interface")
		return nil
	}
	var out []*model.Packet
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := e.World.Interface(ifaceID)
		if !ok || iface.ID == ingress.ID || !iface.Up {
			continue
		}
		conn := e.World.ConnectionOn(iface.ID)
		if conn == nil || !conn.Up {
			continue
		}
		cp := p.Clone()
		out = append(out, e.emitOnLink(d, iface, cp)...)
	}
	return out
}
