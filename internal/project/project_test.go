package project

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/topo"
)

func buildSampleWorld(t *testing.T) *topo.World {
	t.Helper()
	w := topo.New()
	r := w.AddDevice("r1", model.KindRouter)
	rIf, err := w.AddInterface(r.ID, "eth0", w.GenerateMAC())
	require.NoError(t, err)
	rIf.IP, rIf.Mask = "10.0.0.1", "255.255.255.0"

	h := w.AddDevice("h1", model.KindPC)
	hIf, err := w.AddInterface(h.ID, "eth0", w.GenerateMAC())
	require.NoError(t, err)
	hIf.IP, hIf.Mask, hIf.Gateway = "10.0.0.10", "255.255.255.0", "10.0.0.1"

	_, err = w.Connect(rIf.ID, hIf.ID, 1000, 0, 0)
	require.NoError(t, err)
	return w
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	w := buildSampleWorld(t)

	data, err := Save(w)
	require.NoError(t, err)

	doc, err := Load(data)
	require.NoError(t, err)
	require.Len(t, doc.Devices, 2)
	require.Len(t, doc.Connections, 1)

	w2, err := ToWorld(doc)
	require.NoError(t, err)
	require.Len(t, w2.Devices(), 2)
	require.Len(t, w2.Connections(), 1)

	var h1 *model.Device
	for _, d := range w2.Devices() {
		if d.Name == "h1" {
			h1 = d
		}
	}
	require.NotNil(t, h1)
	iface, ok := w2.InterfaceByName(h1.ID, "eth0")
	require.True(t, ok)
	require.Equal(t, "10.0.0.10", iface.IP)
	require.Equal(t, "10.0.0.1", iface.Gateway)
}

func TestLoadMigratesLegacySingularDHCPServerField(t *testing.T) {
	data := []byte(`{
		"devices": [{
			"id": "d1", "name": "dhcpd", "kind": "server",
			"interfaces": [{"id": "i1", "name": "eth0", "mac": "AA:BB:CC:00:00:01"}],
			"dhcpServer": {
				"interface": "eth0", "poolStart": "10.0.0.100", "poolEnd": "10.0.0.200",
				"mask": "255.255.255.0", "gateway": "10.0.0.1", "leaseTimeS": 3600
			}
		}],
		"connections": []
	}`)

	doc, err := Load(data)
	require.NoError(t, err)
	require.Len(t, doc.Devices[0].DHCPServers, 1)
	require.Equal(t, "10.0.0.100", doc.Devices[0].DHCPServers[0].PoolStart)
}

func TestLoadRejectsConnectionToUnknownInterface(t *testing.T) {
	data := []byte(`{
		"devices": [{
			"id": "d1", "name": "h1", "kind": "pc",
			"interfaces": [{"id": "i1", "name": "eth0", "mac": "AA:BB:CC:00:00:01"}]
		}],
		"connections": [{"id": "c1", "aInterfaceId": "i1", "bInterfaceId": "ghost"}]
	}`)

	_, err := Load(data)
	require.Error(t, err)
	require.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestToWorldRejectsUnknownDeviceKind(t *testing.T) {
	doc := &Doc{
		Devices: []DeviceDoc{{ID: "d1", Name: "mystery", Kind: "quantum-router"}},
	}
	_, err := ToWorld(doc)
	require.Error(t, err)
}
