package governor

import "time"

// DefaultWarningFraction is the usage fraction at which an agent moves
// to the warning phase.
const DefaultWarningFraction = 0.80

// DefaultCheckInterval is how often the background check runs.
const DefaultCheckInterval = 30 * time.Second

// Thresholds are the per-agent resource limits.
type Thresholds struct {
	// MaxFilesAccessed limits total file operations.
	MaxFilesAccessed int
	// MaxApiCalls limits API calls.
	MaxApiCalls int
	// MaxSubtasks limits spawned subtasks.
	MaxSubtasks int
	// MaxTimeWithoutDeliverable limits idle time between deliverables.
	MaxTimeWithoutDeliverable time.Duration
	// MaxTokens limits token consumption.
	MaxTokens int64
}

// DefaultThresholds returns the built-in limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxFilesAccessed:          200,
		MaxApiCalls:               100,
		MaxSubtasks:               10,
		MaxTimeWithoutDeliverable: 15 * time.Minute,
		MaxTokens:                 500_000,
	}
}

// Config controls the resource governor.
type Config struct {
	// Enabled toggles the governor. When disabled, CheckAllAgents is a
	// no-op and EvaluateAgent returns the current phase unchanged.
	Enabled bool
	// Thresholds are the per-agent limits.
	Thresholds Thresholds
	// WarningFraction is the usage fraction (0-1) at which the warning
	// phase begins.
	WarningFraction float64
	// CheckInterval is the background check period.
	CheckInterval time.Duration
	// AutoTerminate makes a hard threshold breach terminate the agent
	// immediately after the intervention is recorded.
	AutoTerminate bool
	// PauseOnIntervention pauses an agent when it enters intervention.
	PauseOnIntervention bool
}

// DefaultConfig returns an enabled governor with built-in limits.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		Thresholds:          DefaultThresholds(),
		WarningFraction:     DefaultWarningFraction,
		CheckInterval:       DefaultCheckInterval,
		PauseOnIntervention: true,
	}
}

// warningFraction returns the configured or default warning fraction.
func (c Config) warningFraction() float64 {
	if c.WarningFraction > 0 {
		return c.WarningFraction
	}
	return DefaultWarningFraction
}

// checkInterval returns the configured or default check interval.
func (c Config) checkInterval() time.Duration {
	if c.CheckInterval > 0 {
		return c.CheckInterval
	}
	return DefaultCheckInterval
}
