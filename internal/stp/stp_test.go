package stp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/netlab/internal/model"
)

func TestPathCostForSpeed(t *testing.T) {
	require.Equal(t, 2, PathCostForSpeed(10000))
	require.Equal(t, 4, PathCostForSpeed(1000))
	require.Equal(t, 19, PathCostForSpeed(100))
	require.Equal(t, 100, PathCostForSpeed(10))
	require.Equal(t, 200, PathCostForSpeed(1))
}

func TestSnapPriority(t *testing.T) {
	require.Equal(t, 32768, SnapPriority(33000))
	require.Equal(t, 61440, SnapPriority(62000))
	require.Equal(t, 0, SnapPriority(-5))
}

func TestBridgeIDStringOrdering(t *testing.T) {
	lower := BridgeIDString(4096, "02:00:00:00:00:01")
	higher := BridgeIDString(32768, "02:00:00:00:00:01")
	require.True(t, lower < higher, "lower priority must sort before higher priority")
}

// TestRingConvergence mirrors spec.md §8 scenario 5: a 3-switch ring
// with priorities 4096/32768/32768. The 4096 switch must become root
// with every port designated/forwarding, and exactly one port among
// the two equal-priority switches must land on alternate/blocking so
// the forwarding set is loop-free.
func TestRingConvergence(t *testing.T) {
	root := &Bridge{
		ID:       "sw1",
		BridgeID: model.BridgeID{Priority: 4096, MAC: "02:00:00:00:00:01"},
		Ports: []Port{
			{InterfaceID: "sw1-p1", Up: true, PathCost: 4, PeerBridge: BridgeIDString(32768, "02:00:00:00:00:02"), PeerPortID: "sw2-p1"},
			{InterfaceID: "sw1-p2", Up: true, PathCost: 4, PeerBridge: BridgeIDString(32768, "02:00:00:00:00:03"), PeerPortID: "sw3-p2"},
		},
	}
	sw2 := &Bridge{
		ID:       "sw2",
		BridgeID: model.BridgeID{Priority: 32768, MAC: "02:00:00:00:00:02"},
		Ports: []Port{
			{InterfaceID: "sw2-p1", Up: true, PathCost: 4, PeerBridge: BridgeIDString(4096, "02:00:00:00:00:01"), PeerPortID: "sw1-p1"},
			{InterfaceID: "sw2-p2", Up: true, PathCost: 4, PeerBridge: BridgeIDString(32768, "02:00:00:00:00:03"), PeerPortID: "sw3-p1"},
		},
	}
	sw3 := &Bridge{
		ID:       "sw3",
		BridgeID: model.BridgeID{Priority: 32768, MAC: "02:00:00:00:00:03"},
		Ports: []Port{
			{InterfaceID: "sw3-p1", Up: true, PathCost: 4, PeerBridge: BridgeIDString(32768, "02:00:00:00:00:02"), PeerPortID: "sw2-p2"},
			{InterfaceID: "sw3-p2", Up: true, PathCost: 4, PeerBridge: BridgeIDString(4096, "02:00:00:00:00:01"), PeerPortID: "sw1-p2"},
		},
	}

	results := Converge([]*Bridge{root, sw2, sw3})
	byID := map[string]Result{}
	for _, r := range results {
		byID[r.DeviceID] = r
	}

	for _, p := range byID["sw1"].Ports {
		require.Equal(t, model.PortRoleDesignated, p.Role, "root bridge ports must all be designated")
		require.True(t, p.Forwarding)
	}

	blockingCount := 0
	for _, r := range []Result{byID["sw2"], byID["sw3"]} {
		for _, p := range r.Ports {
			if p.Role == model.PortRoleAlternate {
				blockingCount++
				require.False(t, p.Forwarding)
			}
		}
	}
	require.Equal(t, 1, blockingCount, "exactly one port in the ring must block to break the loop")
}

func TestConvergenceIdempotent(t *testing.T) {
	a := &Bridge{ID: "a", BridgeID: model.BridgeID{Priority: 4096, MAC: "02:00:00:00:00:01"},
		Ports: []Port{{InterfaceID: "a1", Up: true, PathCost: 4, PeerBridge: BridgeIDString(32768, "02:00:00:00:00:02"), PeerPortID: "b1"}}}
	b := &Bridge{ID: "b", BridgeID: model.BridgeID{Priority: 32768, MAC: "02:00:00:00:00:02"},
		Ports: []Port{{InterfaceID: "b1", Up: true, PathCost: 4, PeerBridge: BridgeIDString(4096, "02:00:00:00:00:01"), PeerPortID: "a1"}}}

	r1 := Converge([]*Bridge{a, b})
	r2 := Converge([]*Bridge{a, b})
	require.Equal(t, r1, r2)
}
