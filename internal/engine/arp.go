package engine

import (
	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
)

// handleARP implements spec.md §4.2 step 3 for a router, host, firewall,
// or cloud device: learn the sender, reply if the request targets one
// of this device's own interface IPs, and always consume the packet.
func (e *Engine) handleARP(d *model.Device, p *model.Packet) []*model.Packet {
	payload, ok := p.Payload.(model.ARPPayload)
	if !ok || d.ARP == nil {
		e.drop(p, "malformed arp packet")
		return nil
	}

	d.ARP.Upsert(payload.SenderIP, payload.SenderMAC, p.IngressInterface, model.EntryDynamic)
	e.publish(events.Event{Type: events.ARPResolved, DeviceID: d.ID, Attributes: map[string]any{
		"ip": payload.SenderIP, "mac": payload.SenderMAC,
	}})

	if payload.Op == model.ARPRequest {
		if target := e.ifaceWithIP(d, payload.TargetIP); target != nil {
			reply := arpReplyPacket(d.ID, target.MAC, target.IP, payload.SenderMAC, payload.SenderIP)
			ingress, ok := e.World.InterfaceByName(d.ID, p.IngressInterface)
			if !ok {
				return nil
			}
			return e.emitOnLink(d, ingress, reply)
		}
	}
	return nil
}

// arpReplyPacket builds a REPLY addressed back to the original sender
// (spec.md §4.2 step 3 / §4.6's SVI equivalent).
func arpReplyPacket(deviceID, senderMAC, senderIP, targetMAC, targetIP string) *model.Packet {
	return &model.Packet{
		Kind:   model.PacketARP,
		SrcMAC: senderMAC,
		DstMAC: targetMAC,
		Payload: model.ARPPayload{
			Op:        model.ARPReply,
			SenderIP:  senderIP,
			SenderMAC: senderMAC,
			TargetIP:  targetIP,
			TargetMAC: targetMAC,
		},
		CurrentDeviceID: deviceID,
	}
}

// arpRequestPacket builds a broadcast REQUEST for nextHop (spec.md §4.2
// step 10 / §4.6's inter-VLAN equivalent).
func arpRequestPacket(deviceID, senderMAC, senderIP, targetIP string) *model.Packet {
	return &model.Packet{
		Kind:   model.PacketARP,
		SrcMAC: senderMAC,
		DstMAC: addr.BroadcastMAC,
		Payload: model.ARPPayload{
			Op:        model.ARPRequest,
			SenderIP:  senderIP,
			SenderMAC: senderMAC,
			TargetIP:  targetIP,
		},
		CurrentDeviceID: deviceID,
	}
}
