package consensus

import (
	"time"

	"github.com/blackms/aistack-sub001/pkg/models"
)

// DefaultCheckpointTimeout is how long a checkpoint stays decidable.
const DefaultCheckpointTimeout = 30 * time.Minute

// DefaultMaxDepth is the subtask depth above which approval is always
// required, regardless of risk.
const DefaultMaxDepth = 3

// defaultHighRiskAgentTypes resolve to high risk on agent type alone.
var defaultHighRiskAgentTypes = []models.AgentType{
	models.AgentTypeSecurityAuditor,
}

// defaultMediumRiskAgentTypes resolve to medium risk on agent type alone.
var defaultMediumRiskAgentTypes = []models.AgentType{
	models.AgentTypeDeveloper,
	models.AgentTypeCoordinator,
}

// defaultHighRiskPatterns are input keywords indicating dangerous work.
var defaultHighRiskPatterns = []string{
	"delete",
	"drop table",
	"rm -rf",
	"production",
	"deploy",
	"credentials",
	"secret",
	"api key",
	"force push",
}

// defaultMediumRiskPatterns are input keywords indicating sensitive work.
var defaultMediumRiskPatterns = []string{
	"migration",
	"schema",
	"database",
	"auth",
	"authentication",
	"security",
	"infra",
	"infrastructure",
	"config",
}

// Config controls the consensus service.
type Config struct {
	// Enabled toggles the whole service. When disabled, RequiresConsensus
	// always answers no.
	Enabled bool
	// MaxDepth is the subtask depth above which consensus is always
	// required, independent of risk.
	MaxDepth int
	// GatedRiskLevels are the risk levels that require consensus.
	GatedRiskLevels []models.RiskLevel
	// CheckpointTimeout is how long checkpoints stay pending before expiry.
	CheckpointTimeout time.Duration
	// HighRiskAgentTypes overrides the built-in high-risk agent type list.
	HighRiskAgentTypes []models.AgentType
	// MediumRiskAgentTypes overrides the built-in medium-risk agent type list.
	MediumRiskAgentTypes []models.AgentType
	// HighRiskPatterns overrides the built-in high-risk keyword list.
	HighRiskPatterns []string
	// MediumRiskPatterns overrides the built-in medium-risk keyword list.
	MediumRiskPatterns []string
	// ReviewerAgentType is the agent type used for agent-driven review.
	ReviewerAgentType models.AgentType
}

// DefaultConfig returns the default consensus configuration: enabled,
// gating high-risk work, with built-in risk lists.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		MaxDepth:          DefaultMaxDepth,
		GatedRiskLevels:   []models.RiskLevel{models.RiskHigh},
		CheckpointTimeout: DefaultCheckpointTimeout,
		ReviewerAgentType: models.AgentTypeReviewer,
	}
}

// highRiskAgentTypes returns the configured or default list.
func (c Config) highRiskAgentTypes() []models.AgentType {
	if len(c.HighRiskAgentTypes) > 0 {
		return c.HighRiskAgentTypes
	}
	return defaultHighRiskAgentTypes
}

func (c Config) mediumRiskAgentTypes() []models.AgentType {
	if len(c.MediumRiskAgentTypes) > 0 {
		return c.MediumRiskAgentTypes
	}
	return defaultMediumRiskAgentTypes
}

func (c Config) highRiskPatterns() []string {
	if len(c.HighRiskPatterns) > 0 {
		return c.HighRiskPatterns
	}
	return defaultHighRiskPatterns
}

func (c Config) mediumRiskPatterns() []string {
	if len(c.MediumRiskPatterns) > 0 {
		return c.MediumRiskPatterns
	}
	return defaultMediumRiskPatterns
}

func (c Config) reviewerAgentType() models.AgentType {
	if c.ReviewerAgentType != "" {
		return c.ReviewerAgentType
	}
	return models.AgentTypeReviewer
}

func (c Config) checkpointTimeout() time.Duration {
	if c.CheckpointTimeout > 0 {
		return c.CheckpointTimeout
	}
	return DefaultCheckpointTimeout
}
