// Package scenario loads a topology bootstrap file in HCL
// (github.com/hashicorp/hcl/v2, github.com/zclconf/go-cty) or YAML
// (gopkg.in/yaml.v3), the way the teacher's internal/config loads its
// firewall HCL with gohcl.DecodeBody: devices, interfaces,
// connections, VLANs, SVIs, STP priorities, DHCP pools, and firewall
// rules as blocks, materialized into a live topo.World via the same
// CRUD operations the API/terminal would use. cmd/netlab-sim uses this
// to bootstrap a topology for headless or batch runs.
package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/topo"
)

// File is the decoded top-level scenario document, shared between the
// HCL and YAML representations.
type File struct {
	Devices     []Device     `hcl:"device,block" yaml:"device"`
	Connections []Connection `hcl:"connection,block" yaml:"connection"`
}

// Device is one node and its interfaces.
type Device struct {
	Name       string      `hcl:"name,label" yaml:"name"`
	Kind       string      `hcl:"kind" yaml:"kind"`
	Interfaces []Interface `hcl:"interface,block" yaml:"interface"`
	VLANs      []VLAN      `hcl:"vlan,block" yaml:"vlan"`
	SVIs       []SVI       `hcl:"svi,block" yaml:"svi"`
	STP        *STP        `hcl:"stp,block" yaml:"stp"`
	Routes     []Route     `hcl:"route,block" yaml:"route"`
	DHCPServer *DHCPServer `hcl:"dhcp_server,block" yaml:"dhcp_server"`
	Firewall   []FWRule    `hcl:"firewall_rule,block" yaml:"firewall_rule"`
}

// Interface is one device interface and its optional static addressing.
type Interface struct {
	Name       string   `hcl:"name,label" yaml:"name"`
	IP         string   `hcl:"ip,optional" yaml:"ip"`
	Mask       string   `hcl:"mask,optional" yaml:"mask"`
	Gateway    string   `hcl:"gateway,optional" yaml:"gateway"`
	SpeedMbps  int      `hcl:"speed_mbps,optional" yaml:"speed_mbps"`
	VLANMode   string   `hcl:"vlan_mode,optional" yaml:"vlan_mode"` // "access" | "trunk"
	AccessVLAN int      `hcl:"access_vlan,optional" yaml:"access_vlan"`
	NativeVLAN int      `hcl:"native_vlan,optional" yaml:"native_vlan"`
	Trunk      []int    `hcl:"trunk_vlans,optional" yaml:"trunk_vlans"`
	DHCPClient bool     `hcl:"dhcp_client,optional" yaml:"dhcp_client"`
}

type VLAN struct {
	ID   int    `hcl:"id" yaml:"id"`
	Name string `hcl:"name,optional" yaml:"name"`
}

type SVI struct {
	VLANID int    `hcl:"vlan_id" yaml:"vlan_id"`
	IP     string `hcl:"ip" yaml:"ip"`
	Mask   string `hcl:"mask" yaml:"mask"`
}

type STP struct {
	Enabled  bool `hcl:"enabled,optional" yaml:"enabled"`
	Priority int  `hcl:"priority,optional" yaml:"priority"`
}

type Route struct {
	Network string `hcl:"network" yaml:"network"`
	Mask    string `hcl:"mask" yaml:"mask"`
	Gateway string `hcl:"gateway" yaml:"gateway"`
	Metric  int    `hcl:"metric,optional" yaml:"metric"`
}

type DHCPServer struct {
	Interface  string `hcl:"interface" yaml:"interface"`
	PoolStart  string `hcl:"pool_start" yaml:"pool_start"`
	PoolEnd    string `hcl:"pool_end" yaml:"pool_end"`
	Mask       string `hcl:"mask" yaml:"mask"`
	Gateway    string `hcl:"gateway" yaml:"gateway"`
	DNS        string `hcl:"dns,optional" yaml:"dns"`
	LeaseTimeS int    `hcl:"lease_time_s,optional" yaml:"lease_time_s"`
}

type FWRule struct {
	Priority int    `hcl:"priority" yaml:"priority"`
	Action   string `hcl:"action" yaml:"action"`
	Protocol string `hcl:"protocol,optional" yaml:"protocol"`
	SrcCIDR  string `hcl:"src_cidr,optional" yaml:"src_cidr"`
	DstCIDR  string `hcl:"dst_cidr,optional" yaml:"dst_cidr"`
	SrcPort  string `hcl:"src_port,optional" yaml:"src_port"`
	DstPort  string `hcl:"dst_port,optional" yaml:"dst_port"`
}

type Connection struct {
	A             string `hcl:"a" yaml:"a"`               // "device.interface"
	B             string `hcl:"b" yaml:"b"`               // "device.interface"
	BandwidthMbps int    `hcl:"bandwidth_mbps,optional" yaml:"bandwidth_mbps"`
	LatencyMS     int    `hcl:"latency_ms,optional" yaml:"latency_ms"`
	LossProb      float64 `hcl:"loss_prob,optional" yaml:"loss_prob"`
}

// LoadFile reads a scenario from path, dispatching on extension the
// way the teacher's config.LoadFileWithOptions picks HCL vs JSON.
func LoadFile(path string, data []byte) (*File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		return LoadHCL(data, path)
	}
}

// LoadHCL decodes an HCL scenario document.
func LoadHCL(data []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("scenario: parse HCL: %w", diags)
	}
	var file File
	if diags := gohcl.DecodeBody(f.Body, nil, &file); diags.HasErrors() {
		return nil, fmt.Errorf("scenario: decode HCL: %w", diags)
	}
	return &file, nil
}

// LoadYAML decodes a YAML scenario document, the simpler alternate
// format for small fixtures and tests.
func LoadYAML(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("scenario: decode YAML: %w", err)
	}
	return &file, nil
}

// Apply materializes file into world via the same CRUD operations the
// API/terminal use. Connections resolve against an internal
// name->ID map; only an error is returned.
func Apply(world *topo.World, file *File) error {
	ids := make(map[string]string, len(file.Devices))

	for _, dev := range file.Devices {
		kind, ok := model.ParseDeviceKind(strings.ToLower(dev.Kind))
		if !ok {
			return fmt.Errorf("scenario: unknown device kind %q for %q", dev.Kind, dev.Name)
		}
		d := world.AddDevice(dev.Name, kind)
		ids[dev.Name] = d.ID

		for _, ifc := range dev.Interfaces {
			iface, err := world.AddInterface(d.ID, ifc.Name, world.GenerateMAC())
			if err != nil {
				return fmt.Errorf("scenario: add interface %s.%s: %w", dev.Name, ifc.Name, err)
			}
			iface.IP = ifc.IP
			iface.Mask = ifc.Mask
			iface.Gateway = ifc.Gateway
			iface.DHCPClient = ifc.DHCPClient
			if ifc.SpeedMbps > 0 {
				iface.SpeedMbps = ifc.SpeedMbps
			}
			if ifc.VLANMode == "trunk" {
				iface.VLANMode = model.VLANModeTrunk
				iface.AllowedVLANs = ifc.Trunk
			}
			if ifc.AccessVLAN > 0 {
				iface.AccessVLAN = ifc.AccessVLAN
			}
			if ifc.NativeVLAN > 0 {
				iface.NativeVLAN = ifc.NativeVLAN
			}
		}

		for _, v := range dev.VLANs {
			if err := world.AddVLAN(d.ID, v.ID, v.Name); err != nil {
				return fmt.Errorf("scenario: add vlan %d on %s: %w", v.ID, dev.Name, err)
			}
		}
		for _, svi := range dev.SVIs {
			if err := world.AddSVI(d.ID, svi.VLANID, svi.IP, svi.Mask); err != nil {
				return fmt.Errorf("scenario: add svi vlan %d on %s: %w", svi.VLANID, dev.Name, err)
			}
		}
		if dev.STP != nil {
			d.STP.Enabled = dev.STP.Enabled
			if dev.STP.Priority > 0 {
				d.STP.Priority = dev.STP.Priority
			}
		}
		for _, r := range dev.Routes {
			if err := world.AddStaticRoute(d.ID, r.Network, r.Mask, r.Gateway, r.Metric); err != nil {
				return fmt.Errorf("scenario: add route on %s: %w", dev.Name, err)
			}
		}
		if dev.DHCPServer != nil {
			ds := dev.DHCPServer
			d.DHCPServer = &model.DHCPServerConfig{
				Enabled: true, Interface: ds.Interface, PoolStart: ds.PoolStart,
				PoolEnd: ds.PoolEnd, Mask: ds.Mask, Gateway: ds.Gateway,
				DNS: ds.DNS, LeaseTimeS: ds.LeaseTimeS,
			}
			d.Leases = model.NewDHCPLeaseTable()
		}
		if len(dev.Firewall) > 0 && d.Firewall != nil {
			for i, fr := range dev.Firewall {
				action := model.ActionAllow
				if strings.EqualFold(fr.Action, "deny") {
					action = model.ActionDeny
				}
				d.Firewall.Add(&model.FirewallRule{
					ID:       fmt.Sprintf("%s-%d", dev.Name, i),
					Priority: fr.Priority,
					Action:   action,
					Protocol: parseProtocol(fr.Protocol),
					SrcCIDR:  orAny(fr.SrcCIDR),
					DstCIDR:  orAny(fr.DstCIDR),
					SrcPort:  orAny(fr.SrcPort),
					DstPort:  orAny(fr.DstPort),
					Enabled:  true,
				})
			}
		}
	}

	for _, c := range file.Connections {
		aDev, aIface, err := splitRef(c.A)
		if err != nil {
			return err
		}
		bDev, bIface, err := splitRef(c.B)
		if err != nil {
			return err
		}
		a, ok := world.InterfaceByName(ids[aDev], aIface)
		if !ok {
			return fmt.Errorf("scenario: connection endpoint %s not found", c.A)
		}
		b, ok := world.InterfaceByName(ids[bDev], bIface)
		if !ok {
			return fmt.Errorf("scenario: connection endpoint %s not found", c.B)
		}
		bw := c.BandwidthMbps
		if bw == 0 {
			bw = model.Bandwidth(a.SpeedMbps, b.SpeedMbps)
		}
		if _, err := world.Connect(a.ID, b.ID, bw, c.LatencyMS, c.LossProb); err != nil {
			return fmt.Errorf("scenario: connect %s to %s: %w", c.A, c.B, err)
		}
	}

	for _, id := range ids {
		_ = world.SyncConnectedRoutes(id)
	}
	return nil
}

func splitRef(ref string) (device, iface string, err error) {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("scenario: connection endpoint %q must be device.interface", ref)
	}
	return parts[0], parts[1], nil
}

func parseProtocol(s string) model.FirewallProtocol {
	switch strings.ToLower(s) {
	case "icmp":
		return model.ProtoICMP
	case "tcp":
		return model.ProtoTCP
	case "udp":
		return model.ProtoUDP
	default:
		return model.ProtoAny
	}
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}
