package topo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/netlab/internal/model"
)

func TestAddDeviceAndInterface(t *testing.T) {
	w := New()
	d := w.AddDevice("pc1", model.KindPC)
	require.NotEmpty(t, d.ID)

	iface, err := w.AddInterface(d.ID, "eth0", "02:00:00:00:00:01")
	require.NoError(t, err)
	require.Len(t, w.InterfacesOf(d.ID), 1)
	require.Equal(t, iface.ID, w.InterfacesOf(d.ID)[0].ID)
}

func TestAddInterfaceUnknownDevice(t *testing.T) {
	w := New()
	_, err := w.AddInterface("nope", "eth0", "mac")
	require.Error(t, err)
}

func TestConnectAndRemove(t *testing.T) {
	w := New()
	a := w.AddDevice("a", model.KindPC)
	b := w.AddDevice("b", model.KindPC)
	ai, _ := w.AddInterface(a.ID, "eth0", "m1")
	bi, _ := w.AddInterface(b.ID, "eth0", "m2")

	conn, err := w.Connect(ai.ID, bi.ID, 1000, 1, 0)
	require.NoError(t, err)
	require.True(t, w.ConnectionOn(ai.ID) != nil)

	_, err = w.Connect(ai.ID, bi.ID, 1000, 1, 0)
	require.Error(t, err, "connecting an already-connected interface must fail")

	require.NoError(t, w.RemoveConnection(conn.ID))
	require.Nil(t, w.ConnectionOn(ai.ID))
}

func TestRemoveDeviceCascades(t *testing.T) {
	w := New()
	a := w.AddDevice("a", model.KindPC)
	b := w.AddDevice("b", model.KindPC)
	ai, _ := w.AddInterface(a.ID, "eth0", "m1")
	bi, _ := w.AddInterface(b.ID, "eth0", "m2")
	conn, _ := w.Connect(ai.ID, bi.ID, 1000, 1, 0)

	require.NoError(t, w.RemoveDevice(a.ID))
	_, ok := w.Interface(ai.ID)
	require.False(t, ok, "removing a device must remove its interfaces")
	_, ok = w.Connection(conn.ID)
	require.False(t, ok, "removing a device must remove connections on its interfaces")
}

func TestSyncConnectedRoutes(t *testing.T) {
	w := New()
	r := w.AddDevice("r1", model.KindRouter)
	iface, _ := w.AddInterface(r.ID, "eth0", "m1")
	iface.IP = "10.0.0.1"
	iface.Mask = "255.255.255.0"

	require.NoError(t, w.SyncConnectedRoutes(r.ID))
	routes := r.Routes.All()
	require.Len(t, routes, 1)
	require.Equal(t, "10.0.0.0", routes[0].Network)
	require.Equal(t, model.RouteConnected, routes[0].Kind)

	iface.IP = ""
	require.NoError(t, w.SyncConnectedRoutes(r.ID))
	require.Len(t, r.Routes.All(), 0, "clearing the interface IP must drop the connected route")
}

func TestStaticRouteCannotRemoveConnected(t *testing.T) {
	w := New()
	r := w.AddDevice("r1", model.KindRouter)
	iface, _ := w.AddInterface(r.ID, "eth0", "m1")
	iface.IP = "10.0.0.1"
	iface.Mask = "255.255.255.0"
	require.NoError(t, w.SyncConnectedRoutes(r.ID))

	err := w.RemoveStaticRoute(r.ID, "10.0.0.0", "255.255.255.0")
	require.Error(t, err)

	require.NoError(t, w.AddStaticRoute(r.ID, "192.168.1.0", "255.255.255.0", "10.0.0.254", 1))
	require.NoError(t, w.RemoveStaticRoute(r.ID, "192.168.1.0", "255.255.255.0"))
}

func TestVLANAndSVI(t *testing.T) {
	w := New()
	sw := w.AddDevice("sw1", model.KindSwitch)
	require.NoError(t, w.AddVLAN(sw.ID, 10, "eng"))
	require.Error(t, w.AddVLAN(sw.ID, 10, "dup"))

	require.NoError(t, w.AddSVI(sw.ID, 10, "10.0.10.1", "255.255.255.0"))
	require.NoError(t, w.SyncConnectedRoutes(sw.ID))
	require.Len(t, sw.Routes.All(), 1)

	require.Error(t, w.RemoveVLAN(sw.ID, 1), "default VLAN cannot be removed")
	require.NoError(t, w.RemoveVLAN(sw.ID, 10))
	require.False(t, sw.HasVLAN(10))
	_, ok := sw.SVIFor(10)
	require.False(t, ok, "removing a VLAN must drop its SVI")
}

func TestAddVLANRejectsOutOfRangeIDs(t *testing.T) {
	w := New()
	sw := w.AddDevice("sw1", model.KindSwitch)

	require.Error(t, w.AddVLAN(sw.ID, 0, "zero"))
	require.Error(t, w.AddVLAN(sw.ID, 4095, "too-high"))
	require.Error(t, w.AddVLAN(sw.ID, 5000, "way-too-high"))

	require.NoError(t, w.AddVLAN(sw.ID, 1, "default-range-low"))
	require.NoError(t, w.AddVLAN(sw.ID, 4094, "default-range-high"))
}

func TestAddPacketAssignsID(t *testing.T) {
	w := New()
	p := &model.Packet{Kind: model.PacketICMP}
	w.AddPacket(p)
	require.NotEmpty(t, p.ID)

	got, ok := w.Packet(p.ID)
	require.True(t, ok)
	require.Equal(t, p, got)

	w.RemovePacket(p.ID)
	_, ok = w.Packet(p.ID)
	require.False(t, ok)
}
