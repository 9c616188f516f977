// Package topo implements the World arena: the topology's devices,
// interfaces, connections, and in-flight packets, indexed by ID rather
// than linked by pointer (spec.md §9's arena/index design note, and
// the parent-reference hierarchy pattern in aldrin-isaac-newtron's
// pkg/network.Network/Device). internal/engine operates entirely
// through World's accessors; it never reaches into another package's
// struct fields directly.
package topo

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/model"
)

// World holds every entity in one topology plus the packets currently
// in flight through it.
type World struct {
	mu sync.RWMutex

	devices     map[string]*model.Device
	interfaces  map[string]*model.Interface
	connections map[string]*model.Connection
	packets     map[string]*model.Packet

	// deviceOrder/connOrder/packetOrder preserve insertion order for
	// deterministic iteration (scheduler dispatch order matters for
	// reproducibility, spec.md §9; the scheduler also relies on packet
	// insertion order per spec.md §5's ordering guarantees).
	deviceOrder []string
	connOrder   []string
	packetOrder []string

	macCounter uint64
}

func New() *World {
	return &World{
		devices:     make(map[string]*model.Device),
		interfaces:  make(map[string]*model.Interface),
		connections: make(map[string]*model.Connection),
		packets:     make(map[string]*model.Packet),
	}
}

func newID() string {
	return uuid.NewString()
}

// AddDevice creates and stores a new device of the given kind.
func (w *World) AddDevice(name string, kind model.DeviceKind) *model.Device {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := model.NewDevice(newID(), name, kind)
	w.devices[d.ID] = d
	w.deviceOrder = append(w.deviceOrder, d.ID)
	return d
}

// RemoveDevice deletes a device and every interface/connection
// attached to it.
func (w *World) RemoveDevice(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.devices[id]
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	for _, ifaceID := range append([]string(nil), d.InterfaceIDs...) {
		w.removeInterfaceLocked(ifaceID)
	}
	delete(w.devices, id)
	w.deviceOrder = removeString(w.deviceOrder, id)
	return nil
}

func (w *World) Device(id string) (*model.Device, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.devices[id]
	return d, ok
}

func (w *World) Devices() []*model.Device {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*model.Device, 0, len(w.deviceOrder))
	for _, id := range w.deviceOrder {
		out = append(out, w.devices[id])
	}
	return out
}

// AddInterface creates an interface on device deviceID.
func (w *World) AddInterface(deviceID, name, mac string) (*model.Interface, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.devices[deviceID]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "device not found")
	}
	iface := model.NewInterface(newID(), deviceID, name, mac)
	w.interfaces[iface.ID] = iface
	d.InterfaceIDs = append(d.InterfaceIDs, iface.ID)
	return iface, nil
}

func (w *World) Interface(id string) (*model.Interface, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i, ok := w.interfaces[id]
	return i, ok
}

// InterfaceByName returns the interface named name on deviceID. Interface
// names are unique per device (not globally), which is all the engine's
// link-tick processor needs when resolving a packet's IngressInterface/
// EgressInterface fields back to a concrete *model.Interface.
func (w *World) InterfaceByName(deviceID, name string) (*model.Interface, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.devices[deviceID]
	if !ok {
		return nil, false
	}
	for _, id := range d.InterfaceIDs {
		if iface, ok := w.interfaces[id]; ok && iface.Name == name {
			return iface, true
		}
	}
	return nil, false
}

// GenerateMAC returns the next locally-administered MAC in this world's
// sequence, used for SVI MACs (spec.md §3) and other engine-synthesized
// interfaces that have no operator-assigned address.
func (w *World) GenerateMAC() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.macCounter++
	return addr.GenerateMAC(w.macCounter)
}

// InterfacesOf returns every interface belonging to deviceID, in
// creation order.
func (w *World) InterfacesOf(deviceID string) []*model.Interface {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.devices[deviceID]
	if !ok {
		return nil
	}
	out := make([]*model.Interface, 0, len(d.InterfaceIDs))
	for _, id := range d.InterfaceIDs {
		if iface, ok := w.interfaces[id]; ok {
			out = append(out, iface)
		}
	}
	return out
}

func (w *World) RemoveInterface(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.interfaces[id]; !ok {
		return errors.New(errors.KindNotFound, "interface not found")
	}
	w.removeInterfaceLocked(id)
	return nil
}

func (w *World) removeInterfaceLocked(id string) {
	iface, ok := w.interfaces[id]
	if !ok {
		return
	}
	if conn := w.connectionOnLocked(id); conn != nil {
		w.removeConnectionLocked(conn.ID)
	}
	if d, ok := w.devices[iface.DeviceID]; ok {
		d.InterfaceIDs = removeString(d.InterfaceIDs, id)
	}
	delete(w.interfaces, id)
}

// Connect creates a bidirectional link between two interfaces.
func (w *World) Connect(aIfaceID, bIfaceID string, bandwidthMbps, latencyMS int, lossProb float64) (*model.Connection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.interfaces[aIfaceID]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "interface A not found")
	}
	b, ok := w.interfaces[bIfaceID]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "interface B not found")
	}
	if a.PeerInterfaceID != "" || b.PeerInterfaceID != "" {
		return nil, errors.New(errors.KindConflict, "interface already connected")
	}
	conn := &model.Connection{
		ID:            newID(),
		AInterfaceID:  aIfaceID,
		BInterfaceID:  bIfaceID,
		BandwidthMbps: bandwidthMbps,
		LatencyMS:     latencyMS,
		LossProb:      lossProb,
		Up:            true,
	}
	w.connections[conn.ID] = conn
	w.connOrder = append(w.connOrder, conn.ID)
	a.PeerInterfaceID = bIfaceID
	b.PeerInterfaceID = aIfaceID
	return conn, nil
}

func (w *World) Connection(id string) (*model.Connection, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.connections[id]
	return c, ok
}

func (w *World) Connections() []*model.Connection {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*model.Connection, 0, len(w.connOrder))
	for _, id := range w.connOrder {
		out = append(out, w.connections[id])
	}
	return out
}

// ConnectionOn returns the connection attached to ifaceID, if any.
func (w *World) ConnectionOn(ifaceID string) *model.Connection {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connectionOnLocked(ifaceID)
}

func (w *World) connectionOnLocked(ifaceID string) *model.Connection {
	iface, ok := w.interfaces[ifaceID]
	if !ok || iface.PeerInterfaceID == "" {
		return nil
	}
	for _, c := range w.connections {
		if c.Has(ifaceID) {
			return c
		}
	}
	return nil
}

func (w *World) RemoveConnection(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.connections[id]; !ok {
		return errors.New(errors.KindNotFound, "connection not found")
	}
	w.removeConnectionLocked(id)
	return nil
}

func (w *World) removeConnectionLocked(id string) {
	conn, ok := w.connections[id]
	if !ok {
		return
	}
	if a, ok := w.interfaces[conn.AInterfaceID]; ok {
		a.PeerInterfaceID = ""
	}
	if b, ok := w.interfaces[conn.BInterfaceID]; ok {
		b.PeerInterfaceID = ""
	}
	delete(w.connections, id)
	w.connOrder = removeString(w.connOrder, id)
}

// AddPacket inserts a new in-flight packet, assigning it an ID if it
// doesn't already have one. Packets are appended to packetOrder so
// Packets() reflects insertion order (spec.md §5: processing order is
// the insertion order of the packet list).
func (w *World) AddPacket(p *model.Packet) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	w.packets[p.ID] = p
	w.packetOrder = append(w.packetOrder, p.ID)
}

func (w *World) Packet(id string) (*model.Packet, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.packets[id]
	return p, ok
}

func (w *World) RemovePacket(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.packets, id)
	w.packetOrder = removeString(w.packetOrder, id)
}

// Packets returns every packet currently in flight, in insertion order.
func (w *World) Packets() []*model.Packet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*model.Packet, 0, len(w.packetOrder))
	for _, id := range w.packetOrder {
		if p, ok := w.packets[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func removeString(s []string, v string) []string {
	for i, e := range s {
		if e == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
