// Package stp computes Spanning Tree port roles across a topology
// (spec.md §4.5): global, on-demand convergence rather than a
// timer-driven protocol. New relative to the teacher — flywall is a
// single appliance, not a switched fabric — but built the way the
// teacher builds other state-y engines: small enums plus a pure
// function iterated to a fixed point, structurally grounded on
// internal/kernel/flow.go's FlowState enum style and the config
// pipeline's "run stages until done" idiom.
package stp

import (
	"sort"
	"strings"

	"github.com/kestrelnet/netlab/internal/model"
)

// Port is one switch port's static input to convergence: its
// interface ID, administrative state, path cost, and the neighbor
// switch (if any) on the far end of its connection.
type Port struct {
	InterfaceID string
	Up          bool
	PathCost    int
	PeerBridge  string // neighbor switch's BridgeID string, "" if not switch-to-switch
	PeerPortID  string
}

// Bridge is one STP-enabled switch's convergence state.
type Bridge struct {
	ID       string // device ID
	BridgeID model.BridgeID
	Ports    []Port

	rootBridge string
	rootCost   int
	rootPort   string
}

// PathCostForSpeed returns spec.md §4.5's default path cost table.
func PathCostForSpeed(speedMbps int) int {
	switch {
	case speedMbps >= 10000:
		return 2
	case speedMbps >= 1000:
		return 4
	case speedMbps >= 100:
		return 19
	case speedMbps >= 10:
		return 100
	default:
		return 200
	}
}

// SnapPriority rounds to the nearest lower multiple of 4096 and clamps
// to [0, 61440] (spec.md §3/§6).
func SnapPriority(p int) int {
	if p < 0 {
		p = 0
	}
	if p > 61440 {
		p = 61440
	}
	return (p / 4096) * 4096
}

// BridgeIDString renders priority as four hex digits, a dot, and the
// lowercased MAC (spec.md §4.5).
func BridgeIDString(priority int, mac string) string {
	return hex4(priority) + "." + strings.ToLower(mac)
}

func hex4(n int) string {
	const digits = "0123456789abcdef"
	b := [4]byte{}
	for i := 3; i >= 0; i-- {
		b[i] = digits[n&0xF]
		n >>= 4
	}
	return string(b[:])
}

// Result is one bridge's converged outcome.
type Result struct {
	DeviceID   string
	RootBridge string
	RootCost   int
	RootPort   string
	Ports      map[string]model.STPPortState // by interface ID
}

// Converge runs spec.md §4.5's global fixed-point algorithm over every
// bridge and returns each one's resulting port roles.
func Converge(bridges []*Bridge) []Result {
	for _, b := range bridges {
		b.rootBridge = bridgeIDString(b.BridgeID)
		b.rootCost = 0
		b.rootPort = ""
	}
	byBridgeID := make(map[string]*Bridge, len(bridges))
	for _, b := range bridges {
		byBridgeID[bridgeIDString(b.BridgeID)] = b
	}

	n := len(bridges)
	for iter := 0; iter < n*3; iter++ {
		changed := false
		for _, s := range bridges {
			for _, port := range s.Ports {
				if !port.Up || port.PeerBridge == "" {
					continue
				}
				neighbor, ok := byBridgeID[port.PeerBridge]
				if !ok {
					continue
				}
				potentialCost := neighbor.rootCost + port.PathCost
				if less(neighbor.rootBridge, potentialCost, s.rootBridge, s.rootCost) {
					s.rootBridge = neighbor.rootBridge
					s.rootCost = potentialCost
					s.rootPort = port.InterfaceID
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}

	results := make([]Result, 0, len(bridges))
	for _, s := range bridges {
		results = append(results, assignRoles(s, byBridgeID))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].DeviceID < results[j].DeviceID })
	return results
}

// less reports whether (bridgeA, costA) orders before (bridgeB, costB)
// using spec.md §4.5's ordering: bridge-ID ascending, then cost ascending.
func less(bridgeA string, costA int, bridgeB string, costB int) bool {
	if bridgeA != bridgeB {
		return bridgeA < bridgeB
	}
	return costA < costB
}

func bridgeIDString(id model.BridgeID) string {
	return BridgeIDString(id.Priority, id.MAC)
}

func assignRoles(s *Bridge, byBridgeID map[string]*Bridge) Result {
	ports := make(map[string]model.STPPortState, len(s.Ports))
	isRootBridge := s.rootBridge == bridgeIDString(s.BridgeID)

	for _, port := range s.Ports {
		state := model.STPPortState{InterfaceID: port.InterfaceID, PathCost: port.PathCost}
		switch {
		case !port.Up:
			state.Role = model.PortRoleDisabled
			state.Forwarding = false
		case port.PeerBridge == "":
			state.Role = model.PortRoleDesignated
			state.Forwarding = true
		case port.InterfaceID == s.rootPort:
			state.Role = model.PortRoleRoot
			state.Forwarding = true
		case isRootBridge:
			state.Role = model.PortRoleDesignated
			state.Forwarding = true
		default:
			neighbor, ok := byBridgeID[port.PeerBridge]
			designated := true
			if ok {
				if neighborIsRootFacing(neighbor, port.PeerPortID) {
					designated = false
				} else {
					sID := bridgeIDString(s.BridgeID)
					nID := bridgeIDString(neighbor.BridgeID)
					designated = segmentLess(s.rootCost, sID, neighbor.rootCost, nID)
				}
			}
			if designated {
				state.Role = model.PortRoleDesignated
				state.Forwarding = true
			} else {
				state.Role = model.PortRoleAlternate
				state.Forwarding = false
			}
		}
		ports[port.InterfaceID] = state
	}

	return Result{
		DeviceID:   s.ID,
		RootBridge: s.rootBridge,
		RootCost:   s.rootCost,
		RootPort:   s.rootPort,
		Ports:      ports,
	}
}

func neighborIsRootFacing(neighbor *Bridge, peerPortID string) bool {
	return neighbor.rootPort == peerPortID
}

// segmentLess implements spec.md §4.5's per-segment designated-port
// ordering: (rootPathCost, bridgeId) ascending, cost first.
func segmentLess(costA int, bridgeA string, costB int, bridgeB string) bool {
	if costA != costB {
		return costA < costB
	}
	return bridgeA < bridgeB
}
