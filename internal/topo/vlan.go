package topo

import (
	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/model"
)

// MinVLANID and MaxVLANID bound the 802.1Q VLAN id space (spec.md §7).
const (
	MinVLANID = 1
	MaxVLANID = 4094
)

// AddVLAN registers vlan in deviceID's catalog (spec.md §6).
func (w *World) AddVLAN(deviceID string, vlanID int, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if vlanID < MinVLANID || vlanID > MaxVLANID {
		return errors.New(errors.KindValidation, "VLAN id out of range (1-4094)")
	}
	d, ok := w.devices[deviceID]
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	if d.Kind != model.KindSwitch {
		return errors.New(errors.KindValidation, "only switches carry a VLAN catalog")
	}
	if d.HasVLAN(vlanID) {
		return errors.New(errors.KindConflict, "VLAN already exists")
	}
	d.VLANs = append(d.VLANs, model.VLAN{ID: vlanID, Name: name})
	return nil
}

// RemoveVLAN removes vlan from deviceID's catalog and clears it off
// any port referencing it as an access/allowed VLAN, falling those
// ports back to VLAN 1 (spec.md §6 edge case).
func (w *World) RemoveVLAN(deviceID string, vlanID int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.devices[deviceID]
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	if vlanID == 1 {
		return errors.New(errors.KindValidation, "cannot remove the default VLAN")
	}
	found := false
	kept := d.VLANs[:0]
	for _, v := range d.VLANs {
		if v.ID == vlanID {
			found = true
			continue
		}
		kept = append(kept, v)
	}
	if !found {
		return errors.New(errors.KindNotFound, "VLAN not found")
	}
	d.VLANs = kept
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := w.interfaces[ifaceID]
		if !ok {
			continue
		}
		if iface.VLANMode == model.VLANModeAccess && iface.AccessVLAN == vlanID {
			iface.AccessVLAN = 1
		}
		iface.AllowedVLANs = removeInt(iface.AllowedVLANs, vlanID)
	}
	svis := d.SVIs[:0]
	for _, s := range d.SVIs {
		if s.VLANID != vlanID {
			svis = append(svis, s)
		}
	}
	d.SVIs = svis
	return nil
}

// AddSVI creates (or replaces) a VLAN interface on a multilayer switch.
func (w *World) AddSVI(deviceID string, vlanID int, ip, mask string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.devices[deviceID]
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	if !d.HasVLAN(vlanID) {
		return errors.New(errors.KindValidation, "VLAN not in catalog")
	}
	for i := range d.SVIs {
		if d.SVIs[i].VLANID == vlanID {
			d.SVIs[i].IP = ip
			d.SVIs[i].Mask = mask
			d.SVIs[i].Up = true
			return nil
		}
	}
	w.macCounter++
	mac := addr.GenerateMAC(w.macCounter)
	d.SVIs = append(d.SVIs, model.SVI{VLANID: vlanID, IP: ip, Mask: mask, MAC: mac, Up: true})
	if d.Routes == nil {
		d.Routes = model.NewRouteTable()
	}
	return nil
}

func (w *World) RemoveSVI(deviceID string, vlanID int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.devices[deviceID]
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	kept := d.SVIs[:0]
	found := false
	for _, s := range d.SVIs {
		if s.VLANID == vlanID {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return errors.New(errors.KindNotFound, "SVI not found")
	}
	d.SVIs = kept
	return nil
}

func removeInt(s []int, v int) []int {
	for i, e := range s {
		if e == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
