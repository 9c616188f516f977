package model

import "strconv"

// VLAN is a catalog entry on a switch (spec.md §3): the set of VLAN
// IDs a switch knows about, independent of which ports currently use
// them.
type VLAN struct {
	ID   int
	Name string
}

// SVI is a switch virtual interface: an L3 gateway address bound to a
// VLAN on a multilayer switch (spec.md §3, §4.6).
type SVI struct {
	VLANID int
	IP     string
	Mask   string
	MAC    string
	Up     bool
}

// InterfaceKey returns the synthetic interface identifier used to
// reference this SVI from a RouteEntry's Interface field, since an SVI
// has no backing model.Interface of its own.
func (s SVI) InterfaceKey() string {
	return "vlan" + strconv.Itoa(s.VLANID)
}
