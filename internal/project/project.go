// Package project implements the JSON project load/save spec.md §6
// calls out as an external responsibility: a `{devices, connections}`
// document, minimally validated on load, with a single legacy
// `dhcpServer` field migrated into the `dhcpServers` array the way the
// teacher's internal/config/migration.go migrates an old schema field
// into a new one before the rest of decoding proceeds.
package project

import (
	"encoding/json"
	"fmt"

	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/topo"
)

// Doc is the on-disk project document.
type Doc struct {
	Devices     []DeviceDoc     `json:"devices"`
	Connections []ConnectionDoc `json:"connections"`
}

type DeviceDoc struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Interfaces []InterfaceDoc  `json:"interfaces"`
	DHCPServers []DHCPServerDoc `json:"dhcpServers,omitempty"`
}

type InterfaceDoc struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	MAC     string `json:"mac"`
	IP      string `json:"ip,omitempty"`
	Mask    string `json:"mask,omitempty"`
	Gateway string `json:"gateway,omitempty"`
}

type DHCPServerDoc struct {
	Interface  string `json:"interface"`
	PoolStart  string `json:"poolStart"`
	PoolEnd    string `json:"poolEnd"`
	Mask       string `json:"mask"`
	Gateway    string `json:"gateway"`
	DNS        string `json:"dns,omitempty"`
	LeaseTimeS int    `json:"leaseTimeS"`
}

type ConnectionDoc struct {
	ID            string `json:"id"`
	AInterfaceID  string `json:"aInterfaceId"`
	BInterfaceID  string `json:"bInterfaceId"`
	BandwidthMbps int    `json:"bandwidthMbps"`
	LatencyMS     int    `json:"latencyMs"`
}

// Load parses data into a Doc, applying the legacy dhcpServer→
// dhcpServers migration first, then runs minimal structural
// validation (every connection endpoint must reference a real
// interface ID).
func Load(data []byte) (*Doc, error) {
	migrated, err := migrateLegacyDHCPField(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "project: legacy migration")
	}

	var doc Doc
	if err := json.Unmarshal(migrated, &doc); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "project: decode")
	}

	ifaceIDs := make(map[string]bool)
	for _, d := range doc.Devices {
		for _, i := range d.Interfaces {
			ifaceIDs[i.ID] = true
		}
	}
	for _, c := range doc.Connections {
		if !ifaceIDs[c.AInterfaceID] || !ifaceIDs[c.BInterfaceID] {
			return nil, errors.New(errors.KindValidation, fmt.Sprintf("project: connection %s references an unknown interface", c.ID))
		}
	}
	return &doc, nil
}

// migrateLegacyDHCPField rewrites each device's old singular
// "dhcpServer" object field into a "dhcpServers" array, mirroring
// migration.go's single-to-plural field migrations: operate on the
// raw JSON tree rather than a typed struct, since the legacy shape no
// longer has a Go type of its own.
func migrateLegacyDHCPField(data []byte) ([]byte, error) {
	var raw struct {
		Devices     []map[string]json.RawMessage `json:"devices"`
		Connections json.RawMessage              `json:"connections"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	changed := false
	for _, dev := range raw.Devices {
		legacy, ok := dev["dhcpServer"]
		if !ok {
			continue
		}
		delete(dev, "dhcpServer")
		dev["dhcpServers"] = append(json.RawMessage(`[`), append(legacy, ']')...)
		changed = true
	}
	if !changed {
		return data, nil
	}
	return json.Marshal(raw)
}

// FromWorld builds a Doc snapshot of world for Save.
func FromWorld(world *topo.World) *Doc {
	doc := &Doc{}
	for _, d := range world.Devices() {
		dd := DeviceDoc{ID: d.ID, Name: d.Name, Kind: d.Kind.String()}
		for _, ifaceID := range d.InterfaceIDs {
			iface, ok := world.Interface(ifaceID)
			if !ok {
				continue
			}
			dd.Interfaces = append(dd.Interfaces, InterfaceDoc{
				ID: iface.ID, Name: iface.Name, MAC: iface.MAC,
				IP: iface.IP, Mask: iface.Mask, Gateway: iface.Gateway,
			})
		}
		if d.RunsDHCPServer() {
			dd.DHCPServers = []DHCPServerDoc{{
				Interface: d.DHCPServer.Interface, PoolStart: d.DHCPServer.PoolStart,
				PoolEnd: d.DHCPServer.PoolEnd, Mask: d.DHCPServer.Mask,
				Gateway: d.DHCPServer.Gateway, DNS: d.DHCPServer.DNS,
				LeaseTimeS: d.DHCPServer.LeaseTimeS,
			}}
		}
		doc.Devices = append(doc.Devices, dd)
	}
	for _, c := range world.Connections() {
		doc.Connections = append(doc.Connections, ConnectionDoc{
			ID: c.ID, AInterfaceID: c.AInterfaceID, BInterfaceID: c.BInterfaceID,
			BandwidthMbps: c.BandwidthMbps, LatencyMS: c.LatencyMS,
		})
	}
	return doc
}

// ToWorld materializes doc into a fresh World, the load-side
// counterpart of FromWorld.
func ToWorld(doc *Doc) (*topo.World, error) {
	world := topo.New()
	ids := make(map[string]string, len(doc.Devices))
	ifaceIDs := make(map[string]string)

	for _, dd := range doc.Devices {
		kind, ok := model.ParseDeviceKind(dd.Kind)
		if !ok {
			return nil, errors.New(errors.KindValidation, fmt.Sprintf("project: unknown device kind %q", dd.Kind))
		}
		d := world.AddDevice(dd.Name, kind)
		ids[dd.ID] = d.ID
		for _, id := range dd.Interfaces {
			iface, err := world.AddInterface(d.ID, id.Name, id.MAC)
			if err != nil {
				return nil, errors.Wrap(err, errors.KindInternal, "project: add interface")
			}
			iface.IP, iface.Mask, iface.Gateway = id.IP, id.Mask, id.Gateway
			ifaceIDs[id.ID] = iface.ID
		}
		if len(dd.DHCPServers) > 0 {
			ds := dd.DHCPServers[0]
			d.DHCPServer = &model.DHCPServerConfig{
				Enabled: true, Interface: ds.Interface, PoolStart: ds.PoolStart,
				PoolEnd: ds.PoolEnd, Mask: ds.Mask, Gateway: ds.Gateway, DNS: ds.DNS,
				LeaseTimeS: ds.LeaseTimeS,
			}
			d.Leases = model.NewDHCPLeaseTable()
		}
	}
	for _, cd := range doc.Connections {
		a, aok := ifaceIDs[cd.AInterfaceID]
		b, bok := ifaceIDs[cd.BInterfaceID]
		if !aok || !bok {
			return nil, errors.New(errors.KindValidation, fmt.Sprintf("project: connection %s references an unknown interface", cd.ID))
		}
		if _, err := world.Connect(a, b, cd.BandwidthMbps, cd.LatencyMS, 0); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "project: connect")
		}
	}
	for _, id := range ids {
		_ = world.SyncConnectedRoutes(id)
	}
	return world, nil
}

// Save serializes world into the project JSON document.
func Save(world *topo.World) ([]byte, error) {
	return json.MarshalIndent(FromWorld(world), "", "  ")
}
