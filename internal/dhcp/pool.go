// Package dhcp implements C9: server pool allocation/lease bookkeeping
// (spec.md §4.7) and the real DHCPv4 wire messages that back each
// simulated OFFER/ACK.
package dhcp

import (
	"net"
	"time"

	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/model"
)

// Allocate implements spec.md §4.7's pool allocation: reuse mac's
// existing lease if it still has one, otherwise scan the pool for the
// first free address, skipping the configured gateway. Grounded on the
// teacher's LeaseStore.Allocate (internal/services/dhcp/service.go),
// simplified from its persistent-store/reservation layering down to
// spec.md's flat pool.
func Allocate(cfg *model.DHCPServerConfig, leases *model.DHCPLeaseTable, mac string, now time.Time) (string, error) {
	if existing, ok := leases.LeaseFor(mac); ok {
		return existing.IP, nil
	}

	start, err := addr.ParseIPv4(cfg.PoolStart)
	if err != nil {
		return "", errors.Wrap(err, errors.KindValidation, "invalid pool start")
	}
	end, err := addr.ParseIPv4(cfg.PoolEnd)
	if err != nil {
		return "", errors.Wrap(err, errors.KindValidation, "invalid pool end")
	}

	leaseTime := time.Duration(cfg.LeaseTimeS) * time.Second
	for ip := cloneIP(start); !ipLess(end, ip); ip = incIP(ip) {
		s := ip.String()
		if s == cfg.Gateway {
			continue
		}
		if !leases.IPTaken(s) {
			leases.Put(&model.DHCPLease{IP: s, ClientMAC: mac, ExpiresAt: now.Add(leaseTime)})
			return s, nil
		}
	}
	return "", errors.New(errors.KindUnavailable, "dhcp pool exhausted")
}

// Renew extends mac's existing lease from now, if it has one.
func Renew(cfg *model.DHCPServerConfig, leases *model.DHCPLeaseTable, mac string, now time.Time) (string, bool) {
	existing, ok := leases.LeaseFor(mac)
	if !ok {
		return "", false
	}
	leaseTime := time.Duration(cfg.LeaseTimeS) * time.Second
	leases.Put(&model.DHCPLease{IP: existing.IP, ClientMAC: mac, ExpiresAt: now.Add(leaseTime)})
	return existing.IP, true
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}

func incIP(ip net.IP) net.IP {
	out := cloneIP(ip)
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}

// ipLess reports whether a orders before b, both assumed IPv4.
func ipLess(a, b net.IP) bool {
	a4, b4 := a.To4(), b.To4()
	for i := range a4 {
		if a4[i] != b4[i] {
			return a4[i] < b4[i]
		}
	}
	return false
}
