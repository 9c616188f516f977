// Package dnswire builds the real DNS wire messages behind a
// simulated model.DNSPayload. It is a payload helper, not a resolver:
// the engine's own A-record lookup is a flat map, and this package
// only gives that exchange a wire-realistic A-record query/response
// pair, grounded on the teacher's Service.createRR
// (internal/services/dns/service.go), which builds the same dns.A
// answer shape from a resolved record.
package dnswire

import (
	"net"

	"github.com/miekg/dns"
)

// BuildQuery constructs the A-record query message a client would
// send for domain.
func BuildQuery(domain string) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	m.RecursionDesired = true
	return m
}

// BuildResponse constructs the reply to query carrying a single A
// record for ip, the way createRR builds an *dns.A from a resolved
// config.DNSRecord.
func BuildResponse(query *dns.Msg, domain string, ip net.IP) *dns.Msg {
	m := new(dns.Msg)
	m.SetReply(query)
	if ip4 := ip.To4(); ip4 != nil {
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: dns.Fqdn(domain), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 3600},
			A:   ip4,
		})
	} else {
		m.Rcode = dns.RcodeNameError
	}
	return m
}
