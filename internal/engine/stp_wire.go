// Package engine (stp_wire.go) wires internal/stp's pure convergence
// function into the World: building its Bridge/Port inputs from live
// topology state, writing results back into Device.Ports, and emitting
// the BPDUs forwarding ports advertise each tick (spec.md §4.5).
package engine

import (
	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/stp"
)

// RunSTPConvergence recomputes port roles for every STP-enabled switch
// in the world and writes the results back onto each switch's Ports
// map (spec.md §4.5: a global recompute, triggered on topology change
// rather than timer-driven).
func (e *Engine) RunSTPConvergence() {
	var bridges []*stp.Bridge
	byDevice := make(map[string]*model.Device)

	for _, d := range e.World.Devices() {
		if d.Kind != model.KindSwitch || !d.STP.Enabled {
			continue
		}
		byDevice[d.ID] = d
		b := &stp.Bridge{
			ID:       d.ID,
			BridgeID: model.BridgeID{Priority: d.STP.Priority, MAC: d.BridgeMAC},
		}
		for _, ifaceID := range d.InterfaceIDs {
			iface, ok := e.World.Interface(ifaceID)
			if !ok {
				continue
			}
			port := stp.Port{
				InterfaceID: iface.ID,
				Up:          iface.Up,
				PathCost:    stp.PathCostForSpeed(iface.SpeedMbps),
			}
			if conn := e.World.ConnectionOn(iface.ID); conn != nil && conn.Up {
				peerID := conn.Other(iface.ID)
				if peerIface, ok := e.World.Interface(peerID); ok {
					if peerDev, ok := e.World.Device(peerIface.DeviceID); ok && peerDev.Kind == model.KindSwitch && peerDev.STP.Enabled {
						port.PeerBridge = stp.BridgeIDString(peerDev.STP.Priority, peerDev.BridgeMAC)
						port.PeerPortID = peerIface.ID
					}
				}
			}
			b.Ports = append(b.Ports, port)
		}
		bridges = append(bridges, b)
	}

	for _, res := range stp.Converge(bridges) {
		d := byDevice[res.DeviceID]
		if d == nil {
			continue
		}
		d.Ports = make(map[string]*model.STPPortState, len(res.Ports))
		for ifaceID, state := range res.Ports {
			s := state
			d.Ports[ifaceID] = &s
		}
		e.publish(events.Event{Type: events.STPConverged, DeviceID: d.ID, Attributes: map[string]any{
			"rootBridge": res.RootBridge,
			"rootCost":   res.RootCost,
		}})
	}
}

// SetSTPEnabled toggles spanning tree on a switch and reconverges.
func (e *Engine) SetSTPEnabled(deviceID string, enabled bool) {
	d, ok := e.World.Device(deviceID)
	if !ok || d.Kind != model.KindSwitch {
		return
	}
	d.STP.Enabled = enabled
	if !enabled {
		for ifaceID := range d.Ports {
			d.Ports[ifaceID] = &model.STPPortState{InterfaceID: ifaceID, Role: model.PortRoleDesignated, Forwarding: true}
		}
	}
	e.RunSTPConvergence()
}

// SetSTPPriority sets d's bridge priority, snapped to the nearest lower
// multiple of 4096 (spec.md §4.5), and reconverges.
func (e *Engine) SetSTPPriority(deviceID string, priority int) {
	d, ok := e.World.Device(deviceID)
	if !ok || d.Kind != model.KindSwitch {
		return
	}
	d.STP.Priority = stp.SnapPriority(priority)
	e.RunSTPConvergence()
}

// GenerateBPDUs emits a BPDU out every up, forwarding port of every
// STP-enabled switch, whatever kind of device is on the far end (spec.md §4.5's hello-interval traffic,
// modeled here as one injectable batch rather than a timer).
func (e *Engine) GenerateBPDUs() []*model.Packet {
	var out []*model.Packet
	for _, d := range e.World.Devices() {
		if d.Kind != model.KindSwitch || !d.STP.Enabled {
			continue
		}
		rootID := stp.BridgeIDString(d.STP.Priority, d.BridgeMAC)
		rootCost := 0
		for _, ifaceID := range d.InterfaceIDs {
			iface, ok := e.World.Interface(ifaceID)
			if !ok || !iface.Up {
				continue
			}
			port := d.Ports[iface.ID]
			if port == nil || !port.Forwarding {
				continue
			}
			bpdu := &model.Packet{
				Kind:   model.PacketSTP,
				SrcMAC: iface.MAC,
				DstMAC: addr.STPMulticastMAC,
				Payload: model.BPDUPayload{
					RootBridgeID:   rootID,
					RootPathCost:   rootCost,
					SenderBridgeID: rootID,
					SenderPortID:   iface.ID,
					MaxAge:         d.STP.MaxAge,
					HelloTime:      d.STP.HelloTime,
					ForwardDelay:   d.STP.ForwardDelay,
				},
				CurrentDeviceID: d.ID,
			}
			out = append(out, e.emitOnLink(d, iface, bpdu)...)
		}
	}
	return out
}
