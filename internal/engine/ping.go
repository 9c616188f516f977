// Package engine (ping.go) implements the redesigned async ping
// orchestration spec.md §9's REDESIGN FLAGS calls for: a cooperative
// task driven by events off the scheduler rather than a blocking call
// that waits inline for each reply (spec.md §5: "Long-running user
// commands ... are driven by external orchestration that injects
// packets and polls the packet list across ticks; they never block
// the scheduler").
package engine

import (
	"net"
	"time"

	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
)

// PingResult is one echo's outcome, reported as it resolves.
type PingResult struct {
	Seq     int
	RTT     time.Duration
	Success bool
}

// PingSummary is the spec.md §7 "transmitted/received counts, loss
// percentage, and min/avg/max RTT" report, finalized once every
// sequence has resolved or timed out.
type PingSummary struct {
	Transmitted int
	Received    int
	LossPct     float64
	MinRTT      time.Duration
	AvgRTT      time.Duration
	MaxRTT      time.Duration
}

// PingSession tracks one in-flight `ping <ip>` invocation. Results is
// closed once every sequence has resolved (reply or timeout); callers
// range over it instead of blocking on a single return value.
type PingSession struct {
	Results chan PingResult
	Done    chan PingSummary

	count   int
	timeout time.Duration
	sent    map[int]time.Time
	rtts    []time.Duration
	received int
}

// Ping starts count echo requests from srcDeviceID's ifaceName to
// dstIP, sending each one only after the previous sequence has been
// answered or has timed out, and returns the session immediately
// without blocking. timeout bounds how long a sequence number waits
// for its reply before counting as loss, sized the way spec.md §5
// describes ("derived from hop count and simulation speed") —
// callers typically pass a small multiple of the tick duration times
// an estimated hop count.
func (e *Engine) Ping(srcDeviceID, ifaceName, dstIP string, count int, timeout time.Duration) (*PingSession, error) {
	d, ok := e.World.Device(srcDeviceID)
	if !ok {
		return nil, errors.New(errors.KindNotFound, "device not found")
	}
	iface, ok := e.World.InterfaceByName(d.ID, ifaceName)
	if !ok || !iface.HasIP() {
		return nil, errors.New(errors.KindValidation, "interface has no IP address")
	}
	if _, err := addr.ParseIPv4(dstIP); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "invalid destination")
	}

	sess := &PingSession{
		Results: make(chan PingResult, count),
		Done:    make(chan PingSummary, 1),
		count:   count,
		timeout: timeout,
		sent:    make(map[int]time.Time, count),
	}

	sub := e.Events.Subscribe()
	go e.runPingSession(sess, sub, d.ID, iface.Name, dstIP)
	return sess, nil
}

// runPingSession is the cooperative task: it watches the events hub
// for PacketArrived events whose packet is an echo reply carrying the
// current sequence number and emits one PingResult per sequence, timing
// out sequences that never get a matching event. It never touches
// World directly except to inject each echo request and read packet
// state, so it never competes with Tick for the engine's single
// logical thread of control — spec.md's scheduler stays
// single-threaded; this task is an external observer of it.
func (e *Engine) runPingSession(sess *PingSession, sub <-chan events.Event, deviceID, ifaceName, dstIP string) {
	defer close(sess.Results)
	defer close(sess.Done)

	for seq := 0; seq < sess.count; seq++ {
		e.injectEchoRequest(deviceID, ifaceName, dstIP, seq)
		sess.sent[seq] = e.Clock.Now()

		deadline := time.After(sess.timeout)
	waitSeq:
		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					break waitSeq
				}
				if ev.Type != events.PacketArrived {
					continue
				}
				p, ok := e.World.Packet(ev.PacketID)
				if !ok || p.ICMP == nil || p.ICMP.Type != model.ICMPTypeEchoReply || p.ICMP.Seq != seq {
					continue
				}
				rtt := e.Clock.Now().Sub(sess.sent[seq])
				sess.rtts = append(sess.rtts, rtt)
				sess.received++
				sess.Results <- PingResult{Seq: seq, RTT: rtt, Success: true}
				break waitSeq
			case <-deadline:
				sess.Results <- PingResult{Seq: seq, Success: false}
				break waitSeq
			}
		}
	}

	sess.Done <- summarize(sess)
}

// injectEchoRequest builds the at-device ICMP Echo Request C10 injects
// per spec.md §2's dataflow ("user issues ping (external) → C10
// injects an at-device packet on the source").
func (e *Engine) injectEchoRequest(deviceID, ifaceName, dstIP string, seq int) {
	d, ok := e.World.Device(deviceID)
	if !ok {
		return
	}
	iface, ok := e.World.InterfaceByName(d.ID, ifaceName)
	if !ok {
		return
	}
	pkt := &model.Packet{
		Kind:               model.PacketICMP,
		SrcMAC:             iface.MAC,
		DstMAC:             addr.PlaceholderMAC,
		SrcIP:              net.ParseIP(iface.IP),
		DstIP:              net.ParseIP(dstIP),
		TTL:                64,
		ICMP:               &model.ICMPFields{Type: model.ICMPTypeEchoRequest, Seq: seq},
		CurrentDeviceID:    d.ID,
		IngressInterface:   iface.Name,
		Stage:              model.StageAtDevice,
		IsLocallyGenerated: true,
	}
	e.World.AddPacket(pkt)
}

func summarize(sess *PingSession) PingSummary {
	s := PingSummary{Transmitted: sess.count, Received: sess.received}
	if sess.count > 0 {
		s.LossPct = 100 * float64(sess.count-sess.received) / float64(sess.count)
	}
	if len(sess.rtts) == 0 {
		return s
	}
	min, max := sess.rtts[0], sess.rtts[0]
	var total time.Duration
	for _, r := range sess.rtts {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
		total += r
	}
	s.MinRTT = min
	s.MaxRTT = max
	s.AvgRTT = total / time.Duration(len(sess.rtts))
	return s
}

