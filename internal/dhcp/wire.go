package dhcp

import (
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

// BuildDiscover constructs the real wire DISCOVER message mac would
// send, grounded on replay.go's dhcpv4.FromBytes/OpcodeBootRequest
// parse of captured client traffic, run in reverse.
func BuildDiscover(mac net.HardwareAddr) (*dhcpv4.DHCPv4, error) {
	return dhcpv4.NewDiscovery(mac)
}

// BuildOffer constructs the real wire OFFER reply to discover,
// grounded on the teacher's handleDiscover
// (internal/services/dhcp/service.go).
func BuildOffer(discover *dhcpv4.DHCPv4, offeredIP, serverIP, gateway net.IP, dns []net.IP, mask net.IPMask, leaseTime time.Duration) (*dhcpv4.DHCPv4, error) {
	return dhcpv4.NewReplyFromRequest(discover,
		dhcpv4.WithMessageType(dhcpv4.MessageTypeOffer),
		dhcpv4.WithYourIP(offeredIP),
		dhcpv4.WithServerIP(serverIP),
		dhcpv4.WithRouter(gateway),
		dhcpv4.WithNetmask(mask),
		dhcpv4.WithDNS(dns...),
		dhcpv4.WithLeaseTime(uint32(leaseTime.Seconds())),
	)
}

// BuildAck constructs the real wire ACK reply to a REQUEST, grounded on
// the teacher's handleRequest.
func BuildAck(request *dhcpv4.DHCPv4, allocatedIP, serverIP, gateway net.IP, dns []net.IP, mask net.IPMask, leaseTime time.Duration) (*dhcpv4.DHCPv4, error) {
	return dhcpv4.NewReplyFromRequest(request,
		dhcpv4.WithMessageType(dhcpv4.MessageTypeAck),
		dhcpv4.WithYourIP(allocatedIP),
		dhcpv4.WithServerIP(serverIP),
		dhcpv4.WithRouter(gateway),
		dhcpv4.WithNetmask(mask),
		dhcpv4.WithDNS(dns...),
		dhcpv4.WithLeaseTime(uint32(leaseTime.Seconds())),
	)
}
