package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewInterfaceDefaults(t *testing.T) {
	iface := NewInterface("if1", "dev1", "eth0", "02:00:00:00:00:01")
	require.True(t, iface.Up)
	require.Equal(t, VLANModeAccess, iface.VLANMode)
	require.Equal(t, 1, iface.AccessVLAN)
	require.False(t, iface.HasIP())
}

func TestInterfaceAllowsVLAN(t *testing.T) {
	access := NewInterface("if1", "dev1", "eth0", "mac")
	require.True(t, access.AllowsVLAN(1))
	require.False(t, access.AllowsVLAN(10))

	trunk := NewInterface("if2", "dev1", "eth1", "mac")
	trunk.VLANMode = VLANModeTrunk
	trunk.AllowedVLANs = []int{10, 20}
	require.True(t, trunk.AllowsVLAN(10))
	require.False(t, trunk.AllowsVLAN(30))
}

func TestConnectionOtherAndHas(t *testing.T) {
	c := &Connection{ID: "c1", AInterfaceID: "a", BInterfaceID: "b"}
	require.True(t, c.Has("a"))
	require.True(t, c.Has("b"))
	require.False(t, c.Has("z"))
	require.Equal(t, "b", c.Other("a"))
	require.Equal(t, "a", c.Other("b"))
	require.Equal(t, "", c.Other("z"))
}

func TestPacketClone(t *testing.T) {
	tag := 10
	p := &Packet{
		ID:      "p1",
		Kind:    PacketICMP,
		VLANTag: &tag,
		ICMP:    &ICMPFields{Type: ICMPTypeEchoRequest},
		Path:    []string{"dev1"},
	}
	cp := p.Clone()
	cp.Path = append(cp.Path, "dev2")
	*cp.VLANTag = 20
	cp.ICMP.Type = ICMPTypeEchoReply

	require.Len(t, p.Path, 1, "clone must not alias the original's Path slice")
	require.Equal(t, 10, *p.VLANTag, "clone must not alias the original's VLANTag pointer")
	require.Equal(t, ICMPTypeEchoRequest, p.ICMP.Type, "clone must not alias the original's ICMP pointer")
}

func TestARPTable(t *testing.T) {
	tbl := NewARPTable()
	tbl.Upsert("10.0.0.1", "02:00:00:00:00:01", "eth0", EntryDynamic)
	e, ok := tbl.Lookup("10.0.0.1")
	require.True(t, ok)
	require.Equal(t, "02:00:00:00:00:01", e.MAC)

	tbl.Remove("10.0.0.1")
	_, ok = tbl.Lookup("10.0.0.1")
	require.False(t, ok)
}

func TestMACTablePerVLAN(t *testing.T) {
	tbl := NewMACTable()
	tbl.Upsert("02:00:00:00:00:01", "eth0", 1, EntryDynamic)
	tbl.Upsert("02:00:00:00:00:01", "eth1", 2, EntryDynamic)

	e1, ok := tbl.Lookup("02:00:00:00:00:01", 1)
	require.True(t, ok)
	require.Equal(t, "eth0", e1.Port)

	e2, ok := tbl.Lookup("02:00:00:00:00:01", 2)
	require.True(t, ok)
	require.Equal(t, "eth1", e2.Port)

	tbl.Upsert("02:00:00:00:00:01", "eth2", 1, EntryDynamic)
	e1, _ = tbl.Lookup("02:00:00:00:00:01", 1)
	require.Equal(t, "eth2", e1.Port, "relearning on a new port must move the entry")
}

func TestRouteTableUpsertRemove(t *testing.T) {
	tbl := NewRouteTable()
	tbl.Upsert(&RouteEntry{Network: "10.0.0.0", Mask: "255.255.255.0", Kind: RouteConnected})
	require.Len(t, tbl.All(), 1)

	ok := tbl.Remove("10.0.0.0", "255.255.255.0")
	require.True(t, ok)
	require.Len(t, tbl.All(), 0)

	ok = tbl.Remove("10.0.0.0", "255.255.255.0")
	require.False(t, ok)
}

func TestFirewallRuleSetPriorityOrder(t *testing.T) {
	s := NewFirewallRuleSet()
	s.Add(&FirewallRule{ID: "r2", Priority: 20, Action: ActionDeny})
	s.Add(&FirewallRule{ID: "r1", Priority: 10, Action: ActionAllow})
	s.Add(&FirewallRule{ID: "r3", Priority: 30, Action: ActionDeny})

	require.Equal(t, []string{"r1", "r2", "r3"}, []string{s.Rules[0].ID, s.Rules[1].ID, s.Rules[2].ID})

	require.True(t, s.Remove("r2"))
	require.Len(t, s.Rules, 2)
	require.False(t, s.Remove("r2"))
}

func TestBridgeIDLess(t *testing.T) {
	a := BridgeID{Priority: 4096, MAC: "02:00:00:00:00:02"}
	b := BridgeID{Priority: 32768, MAC: "02:00:00:00:00:01"}
	require.True(t, a.Less(b), "lower priority wins regardless of MAC")

	c := BridgeID{Priority: 4096, MAC: "02:00:00:00:00:01"}
	require.True(t, c.Less(a), "equal priority breaks tie on lower MAC")
}

func TestNewDeviceAllocatesPerKindTables(t *testing.T) {
	sw := NewDevice("d1", "sw1", KindSwitch)
	require.NotNil(t, sw.MAC)
	require.NotNil(t, sw.ARP, "a switch carries ARP state for its management interface and SVIs")
	require.True(t, sw.HasVLAN(1))

	pc := NewDevice("d2", "pc1", KindPC)
	require.NotNil(t, pc.ARP)
	require.NotNil(t, pc.TCP)
	require.Nil(t, pc.MAC)

	fw := NewDevice("d3", "fw1", KindFirewall)
	require.NotNil(t, fw.Firewall)
	require.NotNil(t, fw.ARP)

	hub := NewDevice("d4", "hub1", KindHub)
	require.Nil(t, hub.MAC)
	require.Nil(t, hub.ARP)
}

func TestDeviceSVIFor(t *testing.T) {
	d := NewDevice("d1", "sw1", KindSwitch)
	d.SVIs = append(d.SVIs, SVI{VLANID: 10, IP: "10.0.10.1", Mask: "255.255.255.0", Up: true})

	svi, ok := d.SVIFor(10)
	require.True(t, ok)
	require.Equal(t, "10.0.10.1", svi.IP)

	_, ok = d.SVIFor(20)
	require.False(t, ok)
}

func TestDHCPLeaseTable(t *testing.T) {
	tbl := NewDHCPLeaseTable()
	require.False(t, tbl.IPTaken("10.0.0.5"))

	tbl.Put(&DHCPLease{IP: "10.0.0.5", ClientMAC: "02:00:00:00:00:01"})
	require.True(t, tbl.IPTaken("10.0.0.5"))

	l, ok := tbl.LeaseFor("02:00:00:00:00:01")
	require.True(t, ok)
	require.Equal(t, "10.0.0.5", l.IP)

	tbl.Release("02:00:00:00:00:01")
	require.False(t, tbl.IPTaken("10.0.0.5"))
}

func TestTCPTable(t *testing.T) {
	tbl := NewTCPTable()
	k := TCPConnKey{LocalIP: "10.0.0.1", LocalPort: 80, RemoteIP: "10.0.0.2", RemotePort: 5000}
	tbl.Put(&TCPConn{Key: k, State: TCPSynReceived})

	c, ok := tbl.Get(k)
	require.True(t, ok)
	require.Equal(t, TCPSynReceived, c.State)
	require.Equal(t, "SYN_RECEIVED", c.State.String())

	tbl.Remove(k)
	_, ok = tbl.Get(k)
	require.False(t, ok)
}
