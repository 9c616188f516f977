// Package engine implements the per-tick packet processing pipeline:
// C3 (link advance), C4 (switch L2), C5 (router/host L3), C6 (SVI),
// and C10 (the scheduler tying them together). Staged the way the
// teacher's internal/engine/pipeline.go runs a ConfigPipeline's named
// stages in order, adapted from "validate → transform → execute"
// config stages to "classify → learn → demux → route → arp → egress"
// packet stages.
package engine

import (
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/metrics"
	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/simclock"
	"github.com/kestrelnet/netlab/internal/topo"
)

// Engine owns the pieces the per-tick pipeline needs beyond the world
// itself: the clock (for ISNs and deterministic randomness), an event
// hub for observers, and an optional metrics collector.
type Engine struct {
	World   *topo.World
	Clock   *simclock.Clock
	Events  *events.Hub
	Metrics *metrics.Collector

	// Speed is the simulation speed factor scaling link-tick progress
	// (spec.md §4.1).
	Speed float64

	// Link carries the packet-loss/latency model (spec.md §4.1, §9's
	// "explicit stochastic model" open question resolution).
	Link *LinkModel
}

// New returns an Engine at speed 1 with the default link model, which
// drops packets only on links with a nonzero LossProb and only when
// clock is not deterministic; callers override Link/Speed as needed.
func New(world *topo.World, clock *simclock.Clock) *Engine {
	return &Engine{
		World: world,
		Clock: clock,
		Speed: 1,
		Link:  NewLinkModel(clock),
	}
}

func (e *Engine) publish(ev events.Event) {
	if e.Events != nil {
		e.Events.Publish(ev)
	}
}

// dispatch routes an at-device packet to C4, C5, or C6 depending on
// the owning device's kind and the packet's addressing, per spec.md
// §4.3's "invoked for any at-device packet on a switch that is not
// destined to a switch interface IP, or locally generated with a
// destIP" carve-out.
func (e *Engine) dispatch(d *model.Device, p *model.Packet) []*model.Packet {
	if e.Metrics != nil {
		e.Metrics.PacketsAtDevice.Inc()
	}

	if d.Kind == model.KindHub {
		return e.floodHub(d, p)
	}

	if d.Kind == model.KindSwitch {
		if target, ok := e.sviTarget(d, p); ok {
			return e.processSVI(d, p, target)
		}
		if e.addressedToSwitchItself(d, p) {
			return e.processRouterHost(d, p)
		}
		return e.processSwitchL2(d, p)
	}

	return e.processRouterHost(d, p)
}

// addressedToSwitchItself reports whether p is destined to (or
// locally generated from) one of the switch's own non-SVI interfaces,
// meaning it should be handled by the L3 engine instead of forwarded.
func (e *Engine) addressedToSwitchItself(d *model.Device, p *model.Packet) bool {
	if p.IsLocallyGenerated && p.DstIP != nil {
		return true
	}
	for _, ifaceID := range d.InterfaceIDs {
		iface, ok := e.World.Interface(ifaceID)
		if !ok {
			continue
		}
		if iface.MAC == p.DstMAC {
			return true
		}
	}
	return false
}
