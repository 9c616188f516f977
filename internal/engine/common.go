package engine

import (
	"net"

	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
)

// publishBuffered announces an ARP-miss buffering event (SPEC_FULL.md
// §5's supplemented-feature note: the events hub, not a retry budget,
// is how this open question is left for an external watchdog).
func (e *Engine) publishBuffered(deviceID, packetID, waitingForARP string) {
	e.publish(events.Event{
		Type:     events.PacketBuffered,
		DeviceID: deviceID,
		PacketID: packetID,
		Attributes: map[string]any{
			"waitingForArp": waitingForARP,
		},
	})
}

// drop marks p dropped and publishes the observability event (spec.md
// §7: silent drops never escape the tick as errors, only as dropped
// packets an external observer may inspect).
func (e *Engine) drop(p *model.Packet, reason string) {
	p.Stage = model.StageDropped
	if e.Metrics != nil {
		e.Metrics.PacketsDropped.Inc()
	}
	e.publish(events.Event{
		Type:     events.PacketDropped,
		PacketID: p.ID,
		DeviceID: p.CurrentDeviceID,
		Attributes: map[string]any{
			"reason": reason,
		},
	})
}

// ifaceByMAC returns the interface on d whose MAC matches mac.
func (e *Engine) ifaceByMAC(d *model.Device, mac string) *model.Interface {
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := e.World.Interface(ifaceID)
		if ok && iface.MAC == mac {
			return iface
		}
	}
	return nil
}

// ifaceWithIP returns the interface on d configured with ip.
func (e *Engine) ifaceWithIP(d *model.Device, ip string) *model.Interface {
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := e.World.Interface(ifaceID)
		if ok && iface.IP == ip {
			return iface
		}
	}
	return nil
}

// srcMACIsMine reports whether mac belongs to one of d's interfaces
// (spec.md §4.2 step 1's local-origin detection).
func (e *Engine) srcMACIsMine(d *model.Device, mac string) bool {
	return e.ifaceByMAC(d, mac) != nil
}

// destinedToMe reports whether p.DstIP equals one of d's interface
// addresses (spec.md §4.2 step 6).
func (e *Engine) destinedToMe(d *model.Device, p *model.Packet) bool {
	if p.DstIP == nil {
		return false
	}
	dst := p.DstIP.String()
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := e.World.Interface(ifaceID)
		if ok && iface.IP == dst {
			return true
		}
	}
	return false
}

// emitOnLink sends p out iface as an on-link packet toward its peer,
// per spec.md §4.1's on-link addressing contract. It returns p wrapped
// in a single-element slice (for uniform use as a dispatch output), or
// nil if iface has no active connection.
func (e *Engine) emitOnLink(d *model.Device, iface *model.Interface, p *model.Packet) []*model.Packet {
	conn := e.World.ConnectionOn(iface.ID)
	if conn == nil || !conn.Up || !iface.Up {
		e.drop(p, "egress interface down or unconnected")
		return nil
	}
	peerIfaceID := conn.Other(iface.ID)
	peerIface, ok := e.World.Interface(peerIfaceID)
	if !ok {
		e.drop(p, "egress interface has no peer")
		return nil
	}
	p.CurrentDeviceID = d.ID
	p.LastDeviceID = d.ID
	p.TargetDeviceID = peerIface.DeviceID
	p.EgressInterface = iface.Name
	p.Stage = model.StageOnLink
	p.Progress = 0
	p.Path = append(p.Path, d.ID)
	return []*model.Packet{p}
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func parseIP(s string) net.IP {
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

// sameSubnet reports whether candidateIP shares iface's configured
// subnet, used by passive ARP learning (spec.md §4.2 step 4) and by
// connected-route matching in route lookup (step 7.1).
func sameSubnet(iface *model.Interface, candidateIP net.IP) bool {
	if !iface.HasIP() || candidateIP == nil {
		return false
	}
	ifaceIP, err := addr.ParseIPv4(iface.IP)
	if err != nil {
		return false
	}
	mask, err := addr.ParseIPv4(iface.Mask)
	if err != nil {
		return false
	}
	return addr.SameSubnet(candidateIP, ifaceIP, mask)
}
