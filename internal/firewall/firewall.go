// Package firewall evaluates a device's firewall rule list against a
// packet (spec.md §4.2 step 5), grounded on the teacher's
// internal/engine/matcher.go (Match/MatchIP/MatchPort) and
// internal/engine/evaluator.go (first-match-wins, implicit deny)
// generalized from zone-based policies to a flat enabled-rule list.
package firewall

import (
	"github.com/kestrelnet/netlab/internal/addr"
	"github.com/kestrelnet/netlab/internal/model"
)

// Candidate is the subset of a packet firewall evaluation needs,
// decoupled from model.Packet so this package doesn't need to know
// about stages or routing state.
type Candidate struct {
	Protocol model.FirewallProtocol
	SrcIP    string
	DstIP    string
	SrcPort  int
	DstPort  int
	HasPorts bool
}

// Evaluate runs rules in ascending priority order and returns the
// first match's action. An empty or non-matching rule set is
// implicit-deny (spec.md §4.2 step 5).
func Evaluate(rules *model.FirewallRuleSet, c Candidate) model.FirewallAction {
	if rules == nil {
		return model.ActionDeny
	}
	for _, r := range rules.Rules {
		if !r.Enabled {
			continue
		}
		if matches(r, c) {
			return r.Action
		}
	}
	return model.ActionDeny
}

func matches(r *model.FirewallRule, c Candidate) bool {
	if r.Protocol != model.ProtoAny && r.Protocol != c.Protocol {
		return false
	}
	if !matchCIDR(r.SrcCIDR, c.SrcIP) {
		return false
	}
	if !matchCIDR(r.DstCIDR, c.DstIP) {
		return false
	}
	if !matchPort(r.SrcPort, c.SrcPort, c.HasPorts) {
		return false
	}
	if !matchPort(r.DstPort, c.DstPort, c.HasPorts) {
		return false
	}
	return true
}

func matchCIDR(pattern, ip string) bool {
	p, err := addr.ParseCIDRPattern(pattern)
	if err != nil {
		return false
	}
	if p.MatchAny {
		return true
	}
	parsed, err := addr.ParseIPv4(ip)
	if err != nil {
		return false
	}
	return p.Match(parsed)
}

func matchPort(pattern string, port int, hasPorts bool) bool {
	if pattern == "" {
		return true // missing ports match "*" per spec.md §4.2 step 5
	}
	p, err := addr.ParsePortPattern(pattern)
	if err != nil {
		return false
	}
	if p.MatchAny {
		return true
	}
	if !hasPorts {
		return false
	}
	return p.Match(port)
}
