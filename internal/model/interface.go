package model

import "time"

// Interface belongs to exactly one Device (spec.md §3). Cyclic
// references are avoided per spec.md §9: a peer is referenced by its
// opaque ID, not by pointer, so interfaces never need to know about
// each other's memory.
type Interface struct {
	ID       string
	DeviceID string
	Name     string
	MAC      string

	IP      string // empty if unset
	Mask    string // empty if unset
	Gateway string // empty if unset

	Up        bool
	SpeedMbps int

	// PeerInterfaceID is the interface on the other end of this
	// interface's Connection, if any.
	PeerInterfaceID string

	// Switch-only VLAN attributes (spec.md §3).
	VLANMode     VLANMode
	AccessVLAN   int
	AllowedVLANs []int
	NativeVLAN   int

	// DHCP client state.
	DHCPClient   bool
	LeaseExpiry  *time.Time
}

// NewInterface returns an Interface with spec.md §3's documented
// defaults: access mode, access/native VLAN 1.
func NewInterface(id, deviceID, name, mac string) *Interface {
	return &Interface{
		ID:         id,
		DeviceID:   deviceID,
		Name:       name,
		MAC:        mac,
		Up:         true,
		SpeedMbps:  1000,
		VLANMode:   VLANModeAccess,
		AccessVLAN: 1,
		NativeVLAN: 1,
	}
}

// HasIP reports whether this interface has a configured IPv4 address.
func (i *Interface) HasIP() bool {
	return i.IP != ""
}

// AllowsVLAN reports whether a trunk port permits the given VLAN,
// or whether an access port's access VLAN matches it.
func (i *Interface) AllowsVLAN(vlan int) bool {
	if i.VLANMode == VLANModeAccess {
		return i.AccessVLAN == vlan
	}
	for _, v := range i.AllowedVLANs {
		if v == vlan {
			return true
		}
	}
	return false
}
