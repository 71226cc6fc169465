package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"

	"github.com/blackms/aistack-sub001/internal/api"
	"github.com/blackms/aistack-sub001/pkg/models"
)

// Decision is the outcome of classifying a task description.
type Decision struct {
	// AgentType is the selected agent type.
	AgentType models.AgentType
	// Confidence is the model's confidence in the selection, 0 to 1.
	Confidence float64
	// Reasoning explains the selection.
	Reasoning string
	// Cached reports whether the decision was served from the cache.
	Cached bool
}

// CacheStats describes the dispatch decision cache.
type CacheStats struct {
	// Size is the number of cached decisions, including expired
	// entries not yet purged.
	Size int
	// TTL is the configured cache entry lifetime.
	TTL string
}

// Dispatcher routes task descriptions to agent types via a
// language-model classification, caching decisions by description.
type Dispatcher struct {
	cfg       Config
	completer api.ChatCompleter
	cache     *gocache.Cache
}

// NewDispatcher creates a dispatcher backed by the given chat
// completer.
func NewDispatcher(cfg Config, completer api.ChatCompleter) *Dispatcher {
	// No janitor goroutine. Expired entries are purged lazily once the
	// cache grows past the high-water mark.
	return &Dispatcher{
		cfg:       cfg,
		completer: completer,
		cache:     gocache.New(cfg.cacheTTL(), 0),
	}
}

// Config returns the dispatcher configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Dispatch classifies the description into an agent type. Cache hits
// are returned with Cached set and no model call. Classification
// failures degrade to the fallback agent type rather than erroring,
// and only usable model replies enter the cache.
func (d *Dispatcher) Dispatch(ctx context.Context, description string) (*Decision, error) {
	if !d.cfg.Enabled {
		return nil, fmt.Errorf("smart dispatch is not enabled")
	}
	if d.completer == nil {
		return nil, fmt.Errorf("no chat completer configured")
	}

	description = d.truncate(description)

	if hit, ok := d.cache.Get(description); ok {
		cached := *hit.(*Decision)
		cached.Cached = true
		return &cached, nil
	}

	decision, ok := d.classify(ctx, description)

	// Failure fallbacks are served but never cached, so the next
	// dispatch for the same description retries the model.
	if ok {
		if d.cache.ItemCount() > cachePurgeHighWater {
			d.cache.DeleteExpired()
		}
		d.cache.Set(description, decision, gocache.DefaultExpiration)
	}

	result := *decision
	return &result, nil
}

// classify runs one model call and folds the reply into a decision,
// applying the fallback on failure or low confidence. The boolean
// reports whether the model produced a usable reply; transport and
// parse failures return false and must not be cached.
func (d *Dispatcher) classify(ctx context.Context, description string) (*Decision, bool) {
	raw, err := d.completer.Complete(ctx, d.buildMessages(description), &api.CompleteOptions{
		Model: d.cfg.Model,
	})
	if err != nil {
		log.Printf("[dispatch] classification call failed: %v", err)
		return &Decision{
			AgentType:  d.cfg.fallbackAgentType(),
			Confidence: 0,
			Reasoning:  fmt.Sprintf("classification failed: %v", err),
		}, false
	}

	parsed, err := parseReply(raw)
	if err != nil {
		log.Printf("[dispatch] unparseable classification reply: %v", err)
		return &Decision{
			AgentType:  d.cfg.fallbackAgentType(),
			Confidence: 0,
			Reasoning:  fmt.Sprintf("classification reply unparseable: %v", err),
		}, false
	}

	if !parsed.AgentTypeValid {
		return &Decision{
			AgentType:  d.cfg.fallbackAgentType(),
			Confidence: parsed.Confidence,
			Reasoning:  "invalid or missing agent type in classification reply",
		}, true
	}

	threshold := d.cfg.confidenceThreshold()
	if parsed.Confidence < threshold {
		return &Decision{
			AgentType:  d.cfg.fallbackAgentType(),
			Confidence: parsed.Confidence,
			Reasoning: fmt.Sprintf("Low confidence (%.2f < %.2f): %s",
				parsed.Confidence, threshold, parsed.Reasoning),
		}, true
	}

	return &Decision{
		AgentType:  parsed.AgentType,
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
	}, true
}

// buildMessages assembles the classification prompt.
func (d *Dispatcher) buildMessages(description string) []api.ChatMessage {
	var types strings.Builder
	for _, at := range models.AllAgentTypes {
		fmt.Fprintf(&types, "- %s\n", at)
	}

	system := fmt.Sprintf(`You route tasks to specialized agents. Pick the single best agent type for the task.

Available agent types:
%s
Respond with only a JSON object:
{"agentType": "<one of the types above>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`, types.String())

	return []api.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf("Task: %s", description)},
	}
}

// truncate bounds the description used for classification and caching,
// backing up to a rune boundary so the cut never splits a multi-byte
// character.
func (d *Dispatcher) truncate(description string) string {
	max := d.cfg.maxDescriptionLength()
	if len(description) <= max {
		return description
	}
	for max > 0 && !utf8.RuneStart(description[max]) {
		max--
	}
	return description[:max]
}

// ClearCache drops all cached decisions.
func (d *Dispatcher) ClearCache() {
	d.cache.Flush()
}

// Stats returns cache statistics.
func (d *Dispatcher) Stats() CacheStats {
	return CacheStats{
		Size: d.cache.ItemCount(),
		TTL:  d.cfg.cacheTTL().String(),
	}
}
