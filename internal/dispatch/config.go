// Package dispatch classifies free-text task descriptions into agent
// types using a language-model call, with caching and a
// confidence-gated fallback.
package dispatch

import (
	"time"

	"github.com/blackms/aistack-sub001/pkg/models"
)

// DefaultConfidenceThreshold is the minimum confidence at which a
// classification is trusted over the fallback.
const DefaultConfidenceThreshold = 0.7

// DefaultMaxDescriptionLength bounds the description used for
// classification and as the cache key.
const DefaultMaxDescriptionLength = 500

// DefaultCacheTTL is how long a dispatch decision stays cached.
const DefaultCacheTTL = time.Hour

// cachePurgeHighWater is the cache size beyond which the next dispatch
// purges expired entries before inserting.
const cachePurgeHighWater = 1000

// Config controls the smart dispatcher.
type Config struct {
	// Enabled toggles the dispatcher. When disabled, Dispatch fails
	// with a "not enabled" error.
	Enabled bool
	// Model is the classification model. Empty uses the client default.
	Model string
	// ConfidenceThreshold is the minimum confidence (0-1) below which
	// the decision is overridden to the fallback agent type.
	ConfidenceThreshold float64
	// FallbackAgentType is used when classification fails or is not
	// confident enough.
	FallbackAgentType models.AgentType
	// MaxDescriptionLength truncates descriptions before classification.
	MaxDescriptionLength int
	// CacheTTL is how long decisions stay cached.
	CacheTTL time.Duration
}

// DefaultConfig returns an enabled dispatcher falling back to the
// developer agent type.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		ConfidenceThreshold:  DefaultConfidenceThreshold,
		FallbackAgentType:    models.AgentTypeDeveloper,
		MaxDescriptionLength: DefaultMaxDescriptionLength,
		CacheTTL:             DefaultCacheTTL,
	}
}

func (c Config) confidenceThreshold() float64 {
	if c.ConfidenceThreshold > 0 {
		return c.ConfidenceThreshold
	}
	return DefaultConfidenceThreshold
}

func (c Config) fallbackAgentType() models.AgentType {
	if c.FallbackAgentType != "" {
		return c.FallbackAgentType
	}
	return models.AgentTypeDeveloper
}

func (c Config) maxDescriptionLength() int {
	if c.MaxDescriptionLength > 0 {
		return c.MaxDescriptionLength
	}
	return DefaultMaxDescriptionLength
}

func (c Config) cacheTTL() time.Duration {
	if c.CacheTTL > 0 {
		return c.CacheTTL
	}
	return DefaultCacheTTL
}
