package firewall

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/netlab/internal/model"
)

func rule(priority int, action model.FirewallAction, proto model.FirewallProtocol, srcCIDR, dstCIDR, srcPort, dstPort string) *model.FirewallRule {
	return &model.FirewallRule{
		ID: "r", Priority: priority, Action: action, Protocol: proto,
		SrcCIDR: srcCIDR, DstCIDR: dstCIDR, SrcPort: srcPort, DstPort: dstPort, Enabled: true,
	}
}

func TestImplicitDenyOnEmptyRuleSet(t *testing.T) {
	got := Evaluate(model.NewFirewallRuleSet(), Candidate{Protocol: model.ProtoICMP, SrcIP: "1.1.1.1", DstIP: "2.2.2.2"})
	require.Equal(t, model.ActionDeny, got)
}

func TestFirewallScenario3(t *testing.T) {
	// spec.md §8 scenario 3: deny-TCP-any-any then allow-ICMP-any-any.
	rules := model.NewFirewallRuleSet()
	rules.Add(rule(10, model.ActionDeny, model.ProtoTCP, "any", "any", "", ""))
	rules.Add(rule(20, model.ActionAllow, model.ProtoICMP, "any", "any", "", ""))

	tcpVerdict := Evaluate(rules, Candidate{Protocol: model.ProtoTCP, SrcIP: "192.168.1.10", DstIP: "10.0.0.100", DstPort: 80, HasPorts: true})
	require.Equal(t, model.ActionDeny, tcpVerdict)

	udpOnlyAllowICMP := model.NewFirewallRuleSet()
	udpOnlyAllowICMP.Add(rule(10, model.ActionAllow, model.ProtoICMP, "any", "any", "", ""))
	udpVerdict := Evaluate(udpOnlyAllowICMP, Candidate{Protocol: model.ProtoUDP, SrcIP: "1.1.1.1", DstIP: "2.2.2.2"})
	require.Equal(t, model.ActionDeny, udpVerdict, "UDP with no matching rule is implicit deny")

	icmpVerdict := Evaluate(udpOnlyAllowICMP, Candidate{Protocol: model.ProtoICMP, SrcIP: "1.1.1.1", DstIP: "2.2.2.2"})
	require.Equal(t, model.ActionAllow, icmpVerdict)
}

func TestCIDRMatching(t *testing.T) {
	rules := model.NewFirewallRuleSet()
	rules.Add(rule(10, model.ActionAllow, model.ProtoAny, "10.0.0.0/24", "any", "", ""))

	inside := Evaluate(rules, Candidate{Protocol: model.ProtoICMP, SrcIP: "10.0.0.5", DstIP: "8.8.8.8"})
	require.Equal(t, model.ActionAllow, inside)

	outside := Evaluate(rules, Candidate{Protocol: model.ProtoICMP, SrcIP: "10.0.1.5", DstIP: "8.8.8.8"})
	require.Equal(t, model.ActionDeny, outside)
}

func TestPortRange(t *testing.T) {
	rules := model.NewFirewallRuleSet()
	rules.Add(rule(10, model.ActionAllow, model.ProtoTCP, "any", "any", "", "8000-8080"))

	hit := Evaluate(rules, Candidate{Protocol: model.ProtoTCP, SrcIP: "1.1.1.1", DstIP: "2.2.2.2", DstPort: 8050, HasPorts: true})
	require.Equal(t, model.ActionAllow, hit)

	miss := Evaluate(rules, Candidate{Protocol: model.ProtoTCP, SrcIP: "1.1.1.1", DstIP: "2.2.2.2", DstPort: 9000, HasPorts: true})
	require.Equal(t, model.ActionDeny, miss)
}

func TestDisablingRuleFallsThrough(t *testing.T) {
	rules := model.NewFirewallRuleSet()
	deny := rule(10, model.ActionDeny, model.ProtoTCP, "any", "any", "", "")
	rules.Add(deny)
	rules.Add(rule(20, model.ActionAllow, model.ProtoICMP, "any", "any", "", ""))

	deny.Enabled = false
	got := Evaluate(rules, Candidate{Protocol: model.ProtoICMP, SrcIP: "1.1.1.1", DstIP: "2.2.2.2"})
	require.Equal(t, model.ActionAllow, got)
}
