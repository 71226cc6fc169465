package models

// RiskLevel is a coarse classification of how dangerous a proposed
// subtask is estimated to be.
type RiskLevel string

const (
	// RiskLow indicates routine work with no gating by default.
	RiskLow RiskLevel = "low"
	// RiskMedium indicates work that may need review depending on policy.
	RiskMedium RiskLevel = "medium"
	// RiskHigh indicates work that should be gated behind approval.
	RiskHigh RiskLevel = "high"
)

// Valid returns true if the risk level is a known value.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// AtLeast returns true if r is at or above the given level.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.rank() >= other.rank()
}

func (r RiskLevel) rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}
