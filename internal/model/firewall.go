package model

// FirewallAction is the verdict a matched rule applies (spec.md §4.5,
// grounded on the teacher's Verdict type).
type FirewallAction int

const (
	ActionAllow FirewallAction = iota
	ActionDeny
)

func (a FirewallAction) String() string {
	if a == ActionAllow {
		return "allow"
	}
	return "deny"
}

// FirewallProtocol restricts a rule to a packet kind, or matches any.
type FirewallProtocol int

const (
	ProtoAny FirewallProtocol = iota
	ProtoICMP
	ProtoTCP
	ProtoUDP
)

// FirewallRule is one row of a device's firewall rule list (spec.md
// §4.5). SrcPattern/DstPattern are raw strings ("any", a literal IP,
// or a CIDR) parsed by internal/addr at evaluation time; SrcPort/
// DstPort likewise parse as "any", a literal, or "lo-hi".
type FirewallRule struct {
	ID       string
	Priority int
	Action   FirewallAction
	Protocol FirewallProtocol
	SrcCIDR  string
	DstCIDR  string
	SrcPort  string
	DstPort  string
	Enabled  bool
}

// FirewallRuleSet holds a device's ordered rule list. Evaluation is
// first-match-wins by ascending Priority (spec.md §4.5); an empty set
// is implicit-deny for every packet crossing it.
type FirewallRuleSet struct {
	Rules []*FirewallRule
}

func NewFirewallRuleSet() *FirewallRuleSet {
	return &FirewallRuleSet{}
}

func (s *FirewallRuleSet) Add(r *FirewallRule) {
	s.Rules = append(s.Rules, r)
	sortRulesByPriority(s.Rules)
}

func (s *FirewallRuleSet) Remove(id string) bool {
	for i, r := range s.Rules {
		if r.ID == id {
			s.Rules = append(s.Rules[:i], s.Rules[i+1:]...)
			return true
		}
	}
	return false
}

func sortRulesByPriority(rules []*FirewallRule) {
	for i := 1; i < len(rules); i++ {
		j := i
		for j > 0 && rules[j-1].Priority > rules[j].Priority {
			rules[j-1], rules[j] = rules[j], rules[j-1]
			j--
		}
	}
}
