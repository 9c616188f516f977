// Package engine (dhcp.go) implements C9's engine side: the DISCOVER/
// OFFER/REQUEST/ACK packet exchange (spec.md §4.7), plus the
// configuration and L2-reachability operations that sit above it.
package engine

import (
	"fmt"
	"net"
	"time"

	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/dhcp"
	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
)

// handleDHCP dispatches a DHCP packet to the server or client side of
// the exchange depending on message type and the receiving device's
// role (spec.md §4.7). Broadcast copies arriving at an uninvolved
// device are silently consumed, the same way handleARP consumes a
// REQUEST that isn't for one of its own addresses.
func (e *Engine) handleDHCP(d *model.Device, p *model.Packet) []*model.Packet {
	payload, ok := p.Payload.(model.DHCPPayload)
	if !ok {
		e.drop(p, "malformed dhcp packet")
		return nil
	}
	switch payload.MessageType {
	case model.DHCPDiscover:
		if !d.RunsDHCPServer() {
			return nil
		}
		return e.dhcpOffer(d, p, payload)
	case model.DHCPOffer:
		if d.RunsDHCPServer() {
			return nil
		}
		return e.dhcpRequest(d, p, payload)
	case model.DHCPRequest:
		if !d.RunsDHCPServer() {
			return nil
		}
		return e.dhcpAck(d, p, payload)
	case model.DHCPAck:
		if d.RunsDHCPServer() {
			return nil
		}
		return e.dhcpApplyLease(d, p, payload)
	case model.DHCPRelease:
		if d.RunsDHCPServer() && d.Leases != nil {
			d.Leases.Release(payload.ClientMAC)
			e.publish(events.Event{Type: events.DHCPLeaseReleased, DeviceID: d.ID, Attributes: map[string]any{
				"mac": payload.ClientMAC,
			}})
		}
		return nil
	}
	return nil
}

// dhcpOffer implements the server side of spec.md §4.7 step 1: allocate
// from the pool and reply with an OFFER, unicast at L2 to the client's
// chaddr the way a real DHCP server does.
func (e *Engine) dhcpOffer(d *model.Device, p *model.Packet, req model.DHCPPayload) []*model.Packet {
	ip, err := dhcp.Allocate(d.DHCPServer, d.Leases, req.ClientMAC, e.Clock.Now())
	if err != nil {
		e.drop(p, "dhcp pool exhausted")
		return nil
	}
	serverIface, ok := e.World.InterfaceByName(d.ID, d.DHCPServer.Interface)
	if !ok {
		e.drop(p, "dhcp server interface not found")
		return nil
	}
	ingress, ok := e.World.InterfaceByName(d.ID, p.IngressInterface)
	if !ok {
		e.drop(p, "unknown ingress interface")
		return nil
	}

	e.traceDHCPWire(req.ClientMAC, ip, serverIface.IP, d.DHCPServer)

	reply := &model.Packet{
		Kind:   model.PacketDHCP,
		SrcMAC: serverIface.MAC,
		DstMAC: req.ClientMAC,
		Payload: model.DHCPPayload{
			MessageType:  model.DHCPOffer,
			ClientMAC:    req.ClientMAC,
			OfferedIP:    ip,
			ServerID:     serverIface.IP,
			Mask:         d.DHCPServer.Mask,
			Gateway:      d.DHCPServer.Gateway,
			DNS:          d.DHCPServer.DNS,
			LeaseSeconds: d.DHCPServer.LeaseTimeS,
		},
		CurrentDeviceID: d.ID,
	}
	e.drop(p, "dhcp discover consumed")
	return e.emitOnLink(d, ingress, reply)
}

// dhcpRequest implements the client side of spec.md §4.7 step 2: echo
// the offer back as a broadcast REQUEST so any other offering server
// sees it was declined.
func (e *Engine) dhcpRequest(d *model.Device, p *model.Packet, offer model.DHCPPayload) []*model.Packet {
	ingress, ok := e.World.InterfaceByName(d.ID, p.IngressInterface)
	if !ok {
		e.drop(p, "unknown ingress interface")
		return nil
	}
	reply := &model.Packet{
		Kind:   model.PacketDHCP,
		SrcMAC: ingress.MAC,
		DstMAC: addr.BroadcastMAC,
		Payload: model.DHCPPayload{
			MessageType: model.DHCPRequest,
			ClientMAC:   ingress.MAC,
			OfferedIP:   offer.OfferedIP,
			ServerID:    offer.ServerID,
		},
		CurrentDeviceID: d.ID,
	}
	e.drop(p, "dhcp offer consumed")
	return e.emitOnLink(d, ingress, reply)
}

// dhcpAck implements the server side of spec.md §4.7 step 2: finalize
// the lease and reply ACK.
func (e *Engine) dhcpAck(d *model.Device, p *model.Packet, req model.DHCPPayload) []*model.Packet {
	ip, err := dhcp.Allocate(d.DHCPServer, d.Leases, req.ClientMAC, e.Clock.Now())
	if err != nil || ip != req.OfferedIP {
		e.drop(p, "dhcp request does not match offered lease")
		return nil
	}
	serverIface, ok := e.World.InterfaceByName(d.ID, d.DHCPServer.Interface)
	if !ok {
		e.drop(p, "dhcp server interface not found")
		return nil
	}
	ingress, ok := e.World.InterfaceByName(d.ID, p.IngressInterface)
	if !ok {
		e.drop(p, "unknown ingress interface")
		return nil
	}

	e.traceDHCPWire(req.ClientMAC, ip, serverIface.IP, d.DHCPServer)
	e.publish(events.Event{Type: events.DHCPLeaseGranted, DeviceID: d.ID, Attributes: map[string]any{
		"mac":          req.ClientMAC,
		"ip":           ip,
		"mask":         d.DHCPServer.Mask,
		"gateway":      d.DHCPServer.Gateway,
		"dns":          d.DHCPServer.DNS,
		"leaseSeconds": d.DHCPServer.LeaseTimeS,
		"serverId":     serverIface.IP,
	}})

	reply := &model.Packet{
		Kind:   model.PacketDHCP,
		SrcMAC: serverIface.MAC,
		DstMAC: req.ClientMAC,
		Payload: model.DHCPPayload{
			MessageType:  model.DHCPAck,
			ClientMAC:    req.ClientMAC,
			OfferedIP:    ip,
			ServerID:     serverIface.IP,
			Mask:         d.DHCPServer.Mask,
			Gateway:      d.DHCPServer.Gateway,
			DNS:          d.DHCPServer.DNS,
			LeaseSeconds: d.DHCPServer.LeaseTimeS,
		},
		CurrentDeviceID: d.ID,
	}
	e.drop(p, "dhcp request consumed")
	return e.emitOnLink(d, ingress, reply)
}

// dhcpApplyLease implements the client side of spec.md §4.7's closing
// step: configure the receiving interface with the granted lease.
func (e *Engine) dhcpApplyLease(d *model.Device, p *model.Packet, ack model.DHCPPayload) []*model.Packet {
	ingress, ok := e.World.InterfaceByName(d.ID, p.IngressInterface)
	if !ok {
		e.drop(p, "unknown ingress interface")
		return nil
	}
	ingress.IP = ack.OfferedIP
	ingress.Mask = ack.Mask
	ingress.Gateway = ack.Gateway
	ingress.DHCPClient = true
	expiry := e.Clock.Now().Add(time.Duration(ack.LeaseSeconds) * time.Second)
	ingress.LeaseExpiry = &expiry
	e.World.SyncConnectedRoutes(d.ID)
	e.drop(p, "dhcp ack consumed")
	return nil
}

// traceDHCPWire builds the real DHCPv4 OFFER/ACK message a wire capture
// of this exchange would show, purely for observability — the engine
// itself never serializes or parses these bytes. Failures (a malformed
// MAC) are non-fatal; the simulated lease already succeeded.
func (e *Engine) traceDHCPWire(clientMAC, offeredIP, serverIP string, cfg *model.DHCPServerConfig) {
	hw, err := net.ParseMAC(clientMAC)
	if err != nil {
		return
	}
	discover, err := dhcp.BuildDiscover(hw)
	if err != nil {
		return
	}
	mask := net.IPMask(net.ParseIP(cfg.Mask).To4())
	gw := net.ParseIP(cfg.Gateway)
	var dns []net.IP
	if cfg.DNS != "" {
		dns = []net.IP{net.ParseIP(cfg.DNS)}
	}
	leaseTime := time.Duration(cfg.LeaseTimeS) * time.Second
	offer, err := dhcp.BuildOffer(discover, net.ParseIP(offeredIP), net.ParseIP(serverIP), gw, dns, mask, leaseTime)
	if err != nil {
		return
	}
	e.publish(events.Event{Type: events.DHCPLeaseGranted, Attributes: map[string]any{
		"wireBytes": len(offer.ToBytes()),
	}})
}

// ConfigureDHCPServer enables a pool on deviceID (spec.md §4.7: any
// device may run one).
func (e *Engine) ConfigureDHCPServer(deviceID string, cfg model.DHCPServerConfig) error {
	d, ok := e.World.Device(deviceID)
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	cfg.Enabled = true
	d.DHCPServer = &cfg
	if d.Leases == nil {
		d.Leases = model.NewDHCPLeaseTable()
	}
	return nil
}

// DHCPSummary is the spec.md §7 "IP, mask, gateway, DNS list, lease
// time, server identity" text report delivered once requestDhcp
// resolves, or the pool-exhaustion/timeout failure string spec.md §8
// calls for when it doesn't ("DHCP pool exhaustion returns a failure
// string and no lease").
type DHCPSummary struct {
	Success      bool
	IP           string
	Mask         string
	Gateway      string
	DNS          string
	LeaseSeconds int
	ServerID     string
	Text         string
}

// DHCPSession tracks one in-flight requestDhcp invocation. Done is
// closed once the exchange resolves, the same cooperative-task shape
// ping.go's PingSession uses (spec.md §9 REDESIGN FLAGS: async,
// resumed by events the scheduler produces rather than blocking it).
type DHCPSession struct {
	Done chan DHCPSummary
}

func dhcpSuccess(attrs map[string]any) DHCPSummary {
	ip, _ := attrs["ip"].(string)
	mask, _ := attrs["mask"].(string)
	gateway, _ := attrs["gateway"].(string)
	dns, _ := attrs["dns"].(string)
	serverID, _ := attrs["serverId"].(string)
	leaseSeconds, _ := attrs["leaseSeconds"].(int)
	s := DHCPSummary{
		Success:      true,
		IP:           ip,
		Mask:         mask,
		Gateway:      gateway,
		DNS:          dns,
		LeaseSeconds: leaseSeconds,
		ServerID:     serverID,
	}
	s.Text = fmt.Sprintf("lease granted\nip: %s\nmask: %s\ngateway: %s\ndns: %s\nlease time: %ds\nserver: %s",
		s.IP, s.Mask, s.Gateway, s.DNS, s.LeaseSeconds, s.ServerID)
	return s
}

func dhcpFailure(reason string) DHCPSummary {
	return DHCPSummary{Success: false, Text: "dhcp request failed: " + reason}
}

// RequestDHCPLease implements the client-invoked operation that starts
// the exchange: build and send the opening DISCOVER broadcast, then
// return a session that resolves once a lease is granted, the pool is
// exhausted, or timeout elapses without a reply.
func (e *Engine) RequestDHCPLease(deviceID, ifaceName string, timeout time.Duration) (*DHCPSession, error) {
	d, ok := e.World.Device(deviceID)
	if !ok {
		return nil, errors.New(errors.KindNotFound, "device not found")
	}
	iface, ok := e.World.InterfaceByName(d.ID, ifaceName)
	if !ok {
		return nil, errors.New(errors.KindNotFound, "interface not found")
	}
	pkt := &model.Packet{
		Kind:   model.PacketDHCP,
		SrcMAC: iface.MAC,
		DstMAC: addr.BroadcastMAC,
		Payload: model.DHCPPayload{
			MessageType: model.DHCPDiscover,
			ClientMAC:   iface.MAC,
		},
		CurrentDeviceID:    d.ID,
		IsLocallyGenerated: true,
	}
	out := e.emitOnLink(d, iface, pkt)
	if len(out) == 0 {
		return nil, errors.New(errors.KindUnavailable, "interface is down or unconnected")
	}
	for _, o := range out {
		e.World.AddPacket(o)
	}

	sess := &DHCPSession{Done: make(chan DHCPSummary, 1)}
	sub := e.Events.Subscribe()
	go e.runDHCPSession(sess, sub, pkt.ID, iface.MAC, timeout)
	return sess, nil
}

// runDHCPSession watches the events hub for this DISCOVER's resolution
// — a DHCPLeaseGranted event carrying a matching client MAC, or the
// DISCOVER packet itself being dropped for any reason other than
// normal consumption by a server that offered a lease — and times out
// if neither happens, mirroring runPingSession's external-observer
// shape.
func (e *Engine) runDHCPSession(sess *DHCPSession, sub <-chan events.Event, discoverPacketID, clientMAC string, timeout time.Duration) {
	defer close(sess.Done)
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				sess.Done <- dhcpFailure("event stream closed before a lease was granted")
				return
			}
			switch ev.Type {
			case events.DHCPLeaseGranted:
				mac, _ := ev.Attributes["mac"].(string)
				if mac != clientMAC {
					continue
				}
				sess.Done <- dhcpSuccess(ev.Attributes)
				return
			case events.PacketDropped:
				if ev.PacketID != discoverPacketID {
					continue
				}
				reason, _ := ev.Attributes["reason"].(string)
				if reason == "dhcp discover consumed" {
					continue
				}
				sess.Done <- dhcpFailure(reason)
				return
			}
		case <-deadline:
			sess.Done <- dhcpFailure("no server responded within timeout")
			return
		}
	}
}

// ReleaseDHCPLease implements the client-invoked release operation,
// clearing both the local interface state and telling the server.
func (e *Engine) ReleaseDHCPLease(deviceID, ifaceName string) error {
	d, ok := e.World.Device(deviceID)
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	iface, ok := e.World.InterfaceByName(d.ID, ifaceName)
	if !ok {
		return errors.New(errors.KindNotFound, "interface not found")
	}
	if !iface.DHCPClient || iface.Gateway == "" {
		iface.IP, iface.Mask, iface.Gateway = "", "", ""
		iface.DHCPClient = false
		iface.LeaseExpiry = nil
		e.World.SyncConnectedRoutes(d.ID)
		return nil
	}
	pkt := &model.Packet{
		Kind:   model.PacketDHCP,
		SrcMAC: iface.MAC,
		DstMAC: addr.BroadcastMAC,
		Payload: model.DHCPPayload{
			MessageType: model.DHCPRelease,
			ClientMAC:   iface.MAC,
			OfferedIP:   iface.IP,
		},
		CurrentDeviceID:    d.ID,
		IsLocallyGenerated: true,
	}
	out := e.emitOnLink(d, iface, pkt)
	for _, o := range out {
		e.World.AddPacket(o)
	}
	iface.IP, iface.Mask, iface.Gateway = "", "", ""
	iface.DHCPClient = false
	iface.LeaseExpiry = nil
	e.World.SyncConnectedRoutes(d.ID)
	return nil
}

// ReachableDHCPServers implements spec.md §4.7's L2 BFS reachability
// scoping: every device running an enabled DHCP server pool that a
// broadcast from deviceID's interface ifaceName could actually reach,
// traversing only switches and hubs (L2-forwarding kinds).
func (e *Engine) ReachableDHCPServers(deviceID, ifaceName string) []string {
	iface, ok := e.World.InterfaceByName(deviceID, ifaceName)
	if !ok {
		return nil
	}
	conn := e.World.ConnectionOn(iface.ID)
	if conn == nil || !conn.Up {
		return nil
	}

	visitedDevices := map[string]bool{deviceID: true}
	var servers []string
	queue := []string{conn.Other(iface.ID)}

	for len(queue) > 0 {
		ifaceID := queue[0]
		queue = queue[1:]
		peerIface, ok := e.World.Interface(ifaceID)
		if !ok {
			continue
		}
		peerDev, ok := e.World.Device(peerIface.DeviceID)
		if !ok || visitedDevices[peerDev.ID] {
			continue
		}
		visitedDevices[peerDev.ID] = true

		if peerDev.RunsDHCPServer() {
			servers = append(servers, peerDev.ID)
		}
		if !peerDev.Kind.IsL2Forwarding() {
			continue
		}
		for _, nextIfaceID := range peerDev.InterfaceIDs {
			nextIface, ok := e.World.Interface(nextIfaceID)
			if !ok || nextIface.ID == ifaceID {
				continue
			}
			nextConn := e.World.ConnectionOn(nextIface.ID)
			if nextConn == nil || !nextConn.Up {
				continue
			}
			queue = append(queue, nextConn.Other(nextIface.ID))
		}
	}
	return servers
}
