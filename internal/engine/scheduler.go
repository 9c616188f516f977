package engine

import (
	"time"

	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
)

// tickDuration is the nominal real-time span of one tick at speed 1
// (spec.md §2: "nominally 60 ticks/second").
const tickDuration = time.Second / 60

// Tick implements C10: one discrete step of the scheduler (spec.md
// §4.8). It dispatches every at-device packet to C4/C5/C6, advances
// every on-link packet via C3, then sweeps buffered packets for ARP
// resolution.
func (e *Engine) Tick() {
	for _, p := range e.World.Packets() {
		switch p.Stage {
		case model.StageAtDevice:
			e.stepAtDevice(p)
		case model.StageOnLink:
			e.tickLink(p)
		}
	}
	e.wakeupSweep()
	if e.Metrics != nil {
		e.Metrics.Ticks.Inc()
		e.Metrics.InFlight.Set(float64(len(e.World.Packets())))
	}
	e.Clock.Advance(tickDuration)
}

// stepAtDevice dispatches one at-device packet and replaces it in the
// world with whatever C4/C5/C6 produced (spec.md §6: "processDeviceTick
// ... returns the outputs to replace the input packet").
func (e *Engine) stepAtDevice(p *model.Packet) {
	d, ok := e.World.Device(p.CurrentDeviceID)
	if !ok {
		e.World.RemovePacket(p.ID)
		return
	}
	outputs := e.dispatch(d, p)
	e.World.RemovePacket(p.ID)
	for _, out := range outputs {
		if out == nil {
			continue
		}
		e.World.AddPacket(out)
		if out.Stage == model.StageArrived {
			if e.Metrics != nil {
				e.Metrics.PacketsArrived.Inc()
			}
			e.publish(events.Event{Type: events.PacketArrived, PacketID: out.ID, DeviceID: out.CurrentDeviceID})
		}
	}
}

// wakeupSweep implements spec.md §4.8 step 2: any buffered packet whose
// device now has an ARP entry for WaitingForARP resumes at-device.
func (e *Engine) wakeupSweep() {
	for _, p := range e.World.Packets() {
		if p.Stage != model.StageBuffered {
			continue
		}
		d, ok := e.World.Device(p.CurrentDeviceID)
		if !ok || d.ARP == nil {
			continue
		}
		if _, ok := d.ARP.Lookup(p.WaitingForARP); ok {
			p.Stage = model.StageAtDevice
			p.WaitingForARP = ""
		}
	}
}

// Run advances the scheduler n ticks, the way a headless batch runner
// (cmd/netlab-sim) or a test scenario drives the engine without a
// real-time accumulator.
func (e *Engine) Run(n int) {
	for i := 0; i < n; i++ {
		e.Tick()
	}
}

// Stop clears all in-flight packets and every device's ARP/MAC tables
// (spec.md §5: "Stopping the simulation clears all in-flight packets
// and all ARP/MAC tables; it does not reset routing/VLAN/STP
// configuration").
func (e *Engine) Stop() {
	for _, p := range e.World.Packets() {
		e.World.RemovePacket(p.ID)
	}
	for _, d := range e.World.Devices() {
		if d.ARP != nil {
			d.ARP.Clear()
		}
		if d.MAC != nil {
			d.MAC.Clear()
		}
	}
}
