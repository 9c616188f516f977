// Package wire serializes a simulated model.Packet into a real
// Ethernet/ARP/IPv4/ICMP/TCP frame with gopacket/gopacket's layers
// package, and writes a run's frames to a pcap file with pcapgo — the
// reverse direction of the teacher's replay.go, which decodes a
// captured pcap with the same layers package to drive the simulation
// from real traffic. Here the simulation is the source of truth and
// the pcap is an export for external inspection (Wireshark, tcpdump).
package wire

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"

	"github.com/kestrelnet/netlab/internal/model"
)

// Serialize builds the real frame bytes for p. Only the header fields
// spec.md's data model actually carries are populated; there is no
// payload to serialize (spec.md §1 non-goal: "actual ... payload
// delivery").
func Serialize(p *model.Packet) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       mustMAC(p.SrcMAC),
		DstMAC:       mustMAC(p.DstMAC),
		EthernetType: ethTypeFor(p),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	var layersToSerialize []gopacket.SerializableLayer

	if p.VLANTag != nil {
		eth.EthernetType = layers.EthernetTypeDot1Q
		layersToSerialize = append(layersToSerialize, eth, &layers.Dot1Q{
			VLANIdentifier: uint16(*p.VLANTag),
			Type:           ethTypeFor(p),
		})
	} else {
		layersToSerialize = append(layersToSerialize, eth)
	}

	switch p.Kind {
	case model.PacketARP:
		arp, ok := p.Payload.(model.ARPPayload)
		if !ok {
			return nil, fmt.Errorf("wire: ARP packet missing payload")
		}
		op := layers.ARPRequest
		if arp.Op == model.ARPReply {
			op = layers.ARPReply
		}
		layersToSerialize = append(layersToSerialize, &layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         uint16(op),
			SourceHwAddress:   mustMAC(arp.SenderMAC),
			SourceProtAddress: mustIP4(arp.SenderIP),
			DstHwAddress:      mustMAC(arp.TargetMAC),
			DstProtAddress:    mustIP4(arp.TargetIP),
		})
	case model.PacketICMP, model.PacketTCP:
		ip4 := &layers.IPv4{
			Version:  4,
			TTL:      uint8(p.TTL),
			SrcIP:    p.SrcIP,
			DstIP:    p.DstIP,
			Protocol: ipProtocolFor(p),
		}
		layersToSerialize = append(layersToSerialize, ip4)
		if p.Kind == model.PacketICMP && p.ICMP != nil {
			layersToSerialize = append(layersToSerialize, &layers.ICMPv4{
				TypeCode: layers.CreateICMPv4TypeCode(uint8(p.ICMP.Type), uint8(p.ICMP.Code)),
				Seq:      uint16(p.ICMP.Seq),
			})
		}
		if p.Kind == model.PacketTCP && p.TCP != nil {
			tcp := &layers.TCP{
				SrcPort: layers.TCPPort(p.TCP.SrcPort),
				DstPort: layers.TCPPort(p.TCP.DstPort),
				Seq:     p.TCP.Seq,
				Ack:     p.TCP.Ack,
				SYN:     p.TCP.SYN,
				ACK:     p.TCP.ACK,
				FIN:     p.TCP.FIN,
				RST:     p.TCP.RST,
				PSH:     p.TCP.PSH,
				Window:  65535,
			}
			tcp.SetNetworkLayerForChecksum(ip4)
			layersToSerialize = append(layersToSerialize, tcp)
		}
	}

	if err := gopacket.SerializeLayers(buf, opts, layersToSerialize...); err != nil {
		return nil, fmt.Errorf("wire: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

func ethTypeFor(p *model.Packet) layers.EthernetType {
	if p.Kind == model.PacketARP {
		return layers.EthernetTypeARP
	}
	return layers.EthernetTypeIPv4
}

func ipProtocolFor(p *model.Packet) layers.IPProtocol {
	switch p.Kind {
	case model.PacketICMP:
		return layers.IPProtocolICMPv4
	case model.PacketTCP:
		return layers.IPProtocolTCP
	default:
		return layers.IPProtocolUDP
	}
}

func mustMAC(s string) net.HardwareAddr {
	mac, _ := net.ParseMAC(s)
	return mac
}

func mustIP4(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		return net.IPv4zero
	}
	return ip.To4()
}

// Writer appends serialized frames to a pcap file as a tick run
// progresses, grounded on the teacher's pcap.OpenOffline reader used
// in reverse: pcapgo.NewWriter instead of pcapgo.NewReader.
type Writer struct {
	w   *pcapgo.Writer
	now func() time.Time
}

// NewWriter writes a pcap header to out and returns a Writer ready to
// accept frames.
func NewWriter(out io.Writer, now func() time.Time) (*Writer, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("wire: pcap header: %w", err)
	}
	return &Writer{w: w, now: now}, nil
}

// WritePacket serializes p and appends it to the pcap stream.
func (wr *Writer) WritePacket(p *model.Packet) error {
	data, err := Serialize(p)
	if err != nil {
		return err
	}
	return wr.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     wr.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}
