// Package model implements C2 from spec.md: the devices, interfaces,
// connections, packets, and per-device tables (ARP, MAC, route,
// firewall, VLAN/SVI, STP, DHCP, TCP) that the engine operates on.
package model

// DeviceKind is the variant a Device is dispatched on (spec.md §9
// "Polymorphism over device kinds": an exhaustive match, not inheritance).
type DeviceKind int

const (
	KindPC DeviceKind = iota
	KindLaptop
	KindServer
	KindRouter
	KindSwitch
	KindHub
	KindFirewall
	KindCloud
)

func (k DeviceKind) String() string {
	switch k {
	case KindPC:
		return "pc"
	case KindLaptop:
		return "laptop"
	case KindServer:
		return "server"
	case KindRouter:
		return "router"
	case KindSwitch:
		return "switch"
	case KindHub:
		return "hub"
	case KindFirewall:
		return "firewall"
	case KindCloud:
		return "cloud"
	default:
		return "unknown"
	}
}

// ParseDeviceKind parses the lowercase names String returns, the
// inverse used by scenario loading to turn an HCL/YAML device kind
// string back into a DeviceKind.
func ParseDeviceKind(s string) (DeviceKind, bool) {
	switch s {
	case "pc":
		return KindPC, true
	case "laptop":
		return KindLaptop, true
	case "server":
		return KindServer, true
	case "router":
		return KindRouter, true
	case "switch":
		return KindSwitch, true
	case "hub":
		return KindHub, true
	case "firewall":
		return KindFirewall, true
	case "cloud":
		return KindCloud, true
	default:
		return 0, false
	}
}

// IsL3Capable reports whether this device kind runs the router/host L3
// engine (C5) rather than (or in addition to, for switches with SVIs)
// the switch L2 engine (C4).
func (k DeviceKind) IsL3Capable() bool {
	switch k {
	case KindRouter, KindFirewall, KindPC, KindLaptop, KindServer, KindCloud:
		return true
	default:
		return false
	}
}

// IsL2Forwarding reports whether this device kind forwards frames at
// L2 (used by the DHCP engine's BFS reachability scan, spec.md §4.7).
func (k DeviceKind) IsL2Forwarding() bool {
	return k == KindSwitch || k == KindHub
}

// PacketKind is the protocol tag on a Packet (spec.md §3).
type PacketKind int

const (
	PacketICMP PacketKind = iota
	PacketTCP
	PacketUDP
	PacketARP
	PacketDHCP
	PacketDNS
	PacketHTTP
	PacketHTTPS
	PacketSTP
	PacketCDP
)

func (k PacketKind) String() string {
	switch k {
	case PacketICMP:
		return "ICMP"
	case PacketTCP:
		return "TCP"
	case PacketUDP:
		return "UDP"
	case PacketARP:
		return "ARP"
	case PacketDHCP:
		return "DHCP"
	case PacketDNS:
		return "DNS"
	case PacketHTTP:
		return "HTTP"
	case PacketHTTPS:
		return "HTTPS"
	case PacketSTP:
		return "STP"
	case PacketCDP:
		return "CDP"
	default:
		return "unknown"
	}
}

// Stage is where a packet sits in the four-stage lifecycle of spec.md §2.
type Stage int

const (
	StageAtDevice Stage = iota
	StageOnLink
	StageBuffered
	StageArrived
	StageDropped
)

func (s Stage) String() string {
	switch s {
	case StageAtDevice:
		return "at-device"
	case StageOnLink:
		return "on-link"
	case StageBuffered:
		return "buffered"
	case StageArrived:
		return "arrived"
	case StageDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// VLANMode is a switch port's trunking mode.
type VLANMode int

const (
	VLANModeAccess VLANMode = iota
	VLANModeTrunk
)

// TableEntryKind distinguishes operator-configured entries from
// engine-learned ones, shared by ARP and MAC table entries.
type TableEntryKind int

const (
	EntryDynamic TableEntryKind = iota
	EntryStatic
)

// RouteKind distinguishes auto-maintained connected routes from
// operator-configured static routes.
type RouteKind int

const (
	RouteConnected RouteKind = iota
	RouteStatic
)
