package model

// STPConfig is a switch's spanning-tree-wide configuration (spec.md
// §4.5): priority feeds bridge-ID election, the rest are BPDU timers
// carried for display/grounding rather than enforced as real timeouts
// (convergence here is an immediate fixed-point computation, not a
// timer-driven protocol).
type STPConfig struct {
	Enabled      bool
	Priority     int // default 32768, must be a multiple of 4096
	HelloTime    int
	MaxAge       int
	ForwardDelay int
}

// DefaultSTPConfig returns spec.md §4.5's documented defaults.
func DefaultSTPConfig() STPConfig {
	return STPConfig{
		Enabled:      true,
		Priority:     32768,
		HelloTime:    2,
		MaxAge:       20,
		ForwardDelay: 15,
	}
}

// STPPortRole is the result of convergence (spec.md §4.5).
type STPPortRole int

const (
	PortRoleDisabled STPPortRole = iota
	PortRoleRoot
	PortRoleDesignated
	PortRoleAlternate
)

func (r STPPortRole) String() string {
	switch r {
	case PortRoleRoot:
		return "root"
	case PortRoleDesignated:
		return "designated"
	case PortRoleAlternate:
		return "alternate"
	default:
		return "disabled"
	}
}

// STPPortState is the per-port outcome of the global convergence
// algorithm (spec.md §4.5), keyed by interface ID on the owning switch.
type STPPortState struct {
	InterfaceID string
	Role        STPPortRole
	PathCost    int
	Forwarding  bool
}

// BridgeID orders switches during root election: lower priority wins,
// ties break on lower MAC (spec.md §4.5).
type BridgeID struct {
	Priority int
	MAC      string
}

// Less reports whether b is a better (lower) bridge ID than other.
func (b BridgeID) Less(other BridgeID) bool {
	if b.Priority != other.Priority {
		return b.Priority < other.Priority
	}
	return b.MAC < other.MAC
}
