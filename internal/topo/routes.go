package topo

import (
	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/model"
)

// SyncConnectedRoutes rebuilds deviceID's connected routes from its
// interfaces' configured IP/mask (spec.md §3: connected routes are
// auto-maintained, never hand-edited). Static routes are left alone.
func (w *World) SyncConnectedRoutes(deviceID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.devices[deviceID]
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	if d.Routes == nil {
		return nil
	}
	for _, r := range d.Routes.All() {
		if r.Kind == model.RouteConnected {
			d.Routes.Remove(r.Network, r.Mask)
		}
	}
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := w.interfaces[ifaceID]
		if !ok || !iface.HasIP() {
			continue
		}
		ip, err := addr.ParseIPv4(iface.IP)
		if err != nil {
			continue
		}
		mask, err := addr.ParseIPv4(iface.Mask)
		if err != nil {
			continue
		}
		network := addr.Network(ip, mask)
		d.Routes.Upsert(&model.RouteEntry{
			Network:   network.String(),
			Mask:      iface.Mask,
			Gateway:   "0.0.0.0",
			Interface: ifaceID,
			Metric:    0,
			Kind:      model.RouteConnected,
		})
	}
	for i := range d.SVIs {
		svi := d.SVIs[i]
		if !svi.Up || svi.IP == "" {
			continue
		}
		ip, err := addr.ParseIPv4(svi.IP)
		if err != nil {
			continue
		}
		mask, err := addr.ParseIPv4(svi.Mask)
		if err != nil {
			continue
		}
		network := addr.Network(ip, mask)
		d.Routes.Upsert(&model.RouteEntry{
			Network:   network.String(),
			Mask:      svi.Mask,
			Gateway:   "0.0.0.0",
			Interface: svi.InterfaceKey(),
			Metric:    0,
			Kind:      model.RouteConnected,
		})
	}
	return nil
}

// AddStaticRoute adds (or replaces) a static route on deviceID.
func (w *World) AddStaticRoute(deviceID, network, mask, gateway string, metric int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.devices[deviceID]
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	if d.Routes == nil {
		return errors.New(errors.KindValidation, "device kind does not support routing")
	}
	d.Routes.Upsert(&model.RouteEntry{
		Network: network,
		Mask:    mask,
		Gateway: gateway,
		Metric:  metric,
		Kind:    model.RouteStatic,
	})
	return nil
}

// RemoveStaticRoute removes a static route; it refuses to remove a
// connected route (those are only ever removed by interface changes).
func (w *World) RemoveStaticRoute(deviceID, network, mask string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.devices[deviceID]
	if !ok {
		return errors.New(errors.KindNotFound, "device not found")
	}
	if d.Routes == nil {
		return errors.New(errors.KindValidation, "device kind does not support routing")
	}
	for _, r := range d.Routes.All() {
		if r.Network == network && r.Mask == mask {
			if r.Kind == model.RouteConnected {
				return errors.New(errors.KindValidation, "cannot remove a connected route directly")
			}
			d.Routes.Remove(network, mask)
			return nil
		}
	}
	return errors.New(errors.KindNotFound, "route not found")
}
