package engine

import (
	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/simclock"
)

// LinkModel implements C3's bandwidth/latency/loss modulation (spec.md
// §4.1, and §9's "explicit stochastic model" open question): base
// progress is 2*speed percent per tick, slowed by latency, and subject
// to a loss roll on the tick a packet enters the link. Deterministic
// clocks never roll for loss, keeping replayed scenarios reproducible.
type LinkModel struct {
	clock *simclock.Clock
}

// NewLinkModel returns a link model driven by clock.
func NewLinkModel(clock *simclock.Clock) *LinkModel {
	return &LinkModel{clock: clock}
}

const baseProgressPerTick = 2.0

// Advance implements spec.md §4.1: advance p's progress by 2*speed
// percent, modulated by conn's latency. It reports whether p should be
// dropped this tick due to a loss roll.
func (lm *LinkModel) Advance(p *model.Packet, conn *model.Connection, speed float64) bool {
	if conn == nil {
		p.Progress = 100
		return false
	}
	if p.Progress == 0 && conn.LossProb > 0 && !lm.clock.Deterministic() {
		if lm.clock.Float64() < conn.LossProb {
			return true
		}
	}
	increment := baseProgressPerTick * speed
	if conn.LatencyMS > 0 {
		increment = increment / (1 + float64(conn.LatencyMS)/10.0)
	}
	if increment <= 0 {
		increment = baseProgressPerTick
	}
	p.Progress += int(increment)
	if p.Progress > 100 {
		p.Progress = 100
	}
	return false
}

// tickLink advances an on-link packet one step and, on arrival,
// flips it to at-device on the far side (spec.md §4.1).
func (e *Engine) tickLink(p *model.Packet) {
	srcIface, ok := e.World.InterfaceByName(p.CurrentDeviceID, p.EgressInterface)
	if !ok {
		e.drop(p, "on-link packet references an unknown egress interface")
		return
	}
	conn := e.World.ConnectionOn(srcIface.ID)
	if conn == nil || !conn.Up {
		e.drop(p, "link went down in flight")
		return
	}

	if e.Link.Advance(p, conn, e.Speed) {
		e.drop(p, "link loss")
		return
	}
	if e.Metrics != nil {
		e.Metrics.PacketsOnLink.Inc()
	}
	if p.Progress < 100 {
		return
	}

	peerIfaceID := conn.Other(srcIface.ID)
	peerIface, ok := e.World.Interface(peerIfaceID)
	if !ok {
		e.drop(p, "on-link packet's peer interface vanished")
		return
	}
	p.LastDeviceID = p.CurrentDeviceID
	p.CurrentDeviceID = peerIface.DeviceID
	p.TargetDeviceID = ""
	p.IngressInterface = peerIface.Name
	p.EgressInterface = ""
	p.Stage = model.StageAtDevice
	p.Progress = 0
	p.Path = append(p.Path, peerIface.DeviceID)
}
