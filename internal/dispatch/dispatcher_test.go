package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/blackms/aistack-sub001/internal/api"
	"github.com/blackms/aistack-sub001/pkg/models"
)

// fakeCompleter returns canned replies and counts calls.
type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []api.ChatMessage, opts *api.CompleteOptions) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestDispatcher(reply string) (*Dispatcher, *fakeCompleter) {
	completer := &fakeCompleter{reply: reply}
	return NewDispatcher(DefaultConfig(), completer), completer
}

func TestDispatchSelectsAgentType(t *testing.T) {
	d, _ := newTestDispatcher(`{"agentType": "researcher", "confidence": 0.9, "reasoning": "needs investigation"}`)

	decision, err := d.Dispatch(context.Background(), "investigate flaky login failures")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentType != models.AgentTypeResearcher {
		t.Errorf("expected researcher, got %s", decision.AgentType)
	}
	if decision.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %f", decision.Confidence)
	}
	if decision.Reasoning != "needs investigation" {
		t.Errorf("unexpected reasoning: %s", decision.Reasoning)
	}
	if decision.Cached {
		t.Error("first dispatch should not be cached")
	}
}

func TestDispatchFencedReply(t *testing.T) {
	d, _ := newTestDispatcher("```json\n{\"agentType\": \"tester\", \"confidence\": 0.85, \"reasoning\": \"test work\"}\n```")

	decision, err := d.Dispatch(context.Background(), "write regression tests for the parser")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentType != models.AgentTypeTester {
		t.Errorf("expected tester, got %s", decision.AgentType)
	}
}

func TestDispatchCacheRoundTrip(t *testing.T) {
	d, completer := newTestDispatcher(`{"agentType": "developer", "confidence": 0.95, "reasoning": "code change"}`)

	first, err := d.Dispatch(context.Background(), "fix the off-by-one in pagination")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := d.Dispatch(context.Background(), "fix the off-by-one in pagination")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if completer.calls != 1 {
		t.Errorf("expected 1 model call, got %d", completer.calls)
	}
	if first.Cached {
		t.Error("first dispatch should not be cached")
	}
	if !second.Cached {
		t.Error("second dispatch should be cached")
	}
	if second.AgentType != first.AgentType || second.Confidence != first.Confidence {
		t.Error("cached decision should match the original")
	}
}

func TestDispatchLowConfidenceFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfidenceThreshold = 0.8
	completer := &fakeCompleter{reply: `{"agentType": "analyst", "confidence": 0.5, "reasoning": "unsure"}`}
	d := NewDispatcher(cfg, completer)

	decision, err := d.Dispatch(context.Background(), "do something vague")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentType != models.AgentTypeDeveloper {
		t.Errorf("expected fallback developer, got %s", decision.AgentType)
	}
	if decision.Confidence != 0.5 {
		t.Errorf("expected original confidence 0.5, got %f", decision.Confidence)
	}
	if got := decision.Reasoning; len(got) < 14 || got[:14] != "Low confidence" {
		t.Errorf("expected reasoning prefixed with Low confidence, got %q", got)
	}
}

func TestDispatchInvalidAgentTypeFallback(t *testing.T) {
	d, _ := newTestDispatcher(`{"agentType": "wizard", "confidence": 0.99, "reasoning": "magic"}`)

	decision, err := d.Dispatch(context.Background(), "cast a spell")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentType != models.AgentTypeDeveloper {
		t.Errorf("expected fallback developer, got %s", decision.AgentType)
	}
	if decision.Reasoning != "invalid or missing agent type in classification reply" {
		t.Errorf("unexpected reasoning: %s", decision.Reasoning)
	}
}

func TestDispatchTransportFailureFallback(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("connection reset")}
	d := NewDispatcher(DefaultConfig(), completer)

	decision, err := d.Dispatch(context.Background(), "anything")
	if err != nil {
		t.Fatalf("expected degraded decision, got error: %v", err)
	}
	if decision.AgentType != models.AgentTypeDeveloper {
		t.Errorf("expected fallback developer, got %s", decision.AgentType)
	}
	if decision.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", decision.Confidence)
	}
}

func TestDispatchUnparseableReplyFallback(t *testing.T) {
	d, _ := newTestDispatcher("I think a developer should handle this.")

	decision, err := d.Dispatch(context.Background(), "anything")
	if err != nil {
		t.Fatalf("expected degraded decision, got error: %v", err)
	}
	if decision.AgentType != models.AgentTypeDeveloper {
		t.Errorf("expected fallback developer, got %s", decision.AgentType)
	}
	if decision.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", decision.Confidence)
	}
}

func TestDispatchFailureFallbackNotCached(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("connection reset")}
	d := NewDispatcher(DefaultConfig(), completer)

	first, err := d.Dispatch(context.Background(), "migrate the billing schema")
	if err != nil {
		t.Fatalf("expected degraded decision, got error: %v", err)
	}
	if first.AgentType != models.AgentTypeDeveloper || first.Confidence != 0 {
		t.Errorf("expected zero-confidence fallback, got %s (%f)", first.AgentType, first.Confidence)
	}

	// The transport recovers; the same description must retry the model
	// instead of serving the pinned fallback.
	completer.err = nil
	completer.reply = `{"agentType": "researcher", "confidence": 0.9, "reasoning": "needs analysis"}`

	second, err := d.Dispatch(context.Background(), "migrate the billing schema")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completer.calls != 2 {
		t.Errorf("expected 2 model calls, got %d", completer.calls)
	}
	if second.Cached {
		t.Error("retry after a transport failure should not be a cache hit")
	}
	if second.AgentType != models.AgentTypeResearcher {
		t.Errorf("expected researcher after recovery, got %s", second.AgentType)
	}

	// Unparseable replies are equally transient.
	completer.reply = "no json here"
	if _, err := d.Dispatch(context.Background(), "summarize the incident"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	completer.reply = `{"agentType": "documenter", "confidence": 0.9, "reasoning": "writing"}`
	third, err := d.Dispatch(context.Background(), "summarize the incident")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.AgentType != models.AgentTypeDocumenter {
		t.Errorf("expected documenter after parse failure, got %s", third.AgentType)
	}
}

func TestDispatchDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	d := NewDispatcher(cfg, &fakeCompleter{})

	if _, err := d.Dispatch(context.Background(), "anything"); err == nil {
		t.Error("expected error when dispatch is disabled")
	}
}

func TestDispatchTruncatesLongDescriptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDescriptionLength = 10
	completer := &fakeCompleter{reply: `{"agentType": "developer", "confidence": 0.9, "reasoning": "ok"}`}
	d := NewDispatcher(cfg, completer)

	// Same 10-byte prefix, so the second dispatch must hit the cache.
	if _, err := d.Dispatch(context.Background(), "abcdefghij-first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := d.Dispatch(context.Background(), "abcdefghij-second")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached {
		t.Error("expected cache hit for shared truncated prefix")
	}
	if completer.calls != 1 {
		t.Errorf("expected 1 model call, got %d", completer.calls)
	}
}

func TestTruncatePreservesRuneBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDescriptionLength = 11
	d := NewDispatcher(cfg, &fakeCompleter{})

	// "é" is two bytes starting at offset 10, so an 11-byte cut would
	// split it.
	got := d.truncate("0123456789état initial")
	if got != "0123456789" {
		t.Errorf("expected cut at the rune boundary, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated description is not valid UTF-8: %q", got)
	}

	// An ASCII description still uses the full budget.
	if got := d.truncate("0123456789abcdef"); got != "0123456789a" {
		t.Errorf("expected 11-byte ASCII cut, got %q", got)
	}
}

func TestDispatchDefaultsForPartialReply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfidenceThreshold = 0.4
	completer := &fakeCompleter{reply: `{"agentType": "documenter"}`}
	d := NewDispatcher(cfg, completer)

	decision, err := d.Dispatch(context.Background(), "update the readme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentType != models.AgentTypeDocumenter {
		t.Errorf("expected documenter, got %s", decision.AgentType)
	}
	if decision.Confidence != 0.5 {
		t.Errorf("expected default confidence 0.5, got %f", decision.Confidence)
	}
	if decision.Reasoning != "no reasoning provided" {
		t.Errorf("unexpected reasoning: %s", decision.Reasoning)
	}
}

func TestDispatchClampsConfidence(t *testing.T) {
	d, _ := newTestDispatcher(`{"agentType": "developer", "confidence": 1.7, "reasoning": "very sure"}`)

	decision, err := d.Dispatch(context.Background(), "refactor the config loader")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Confidence != 1.0 {
		t.Errorf("expected confidence clamped to 1.0, got %f", decision.Confidence)
	}
}

func TestClearCache(t *testing.T) {
	d, completer := newTestDispatcher(`{"agentType": "developer", "confidence": 0.9, "reasoning": "ok"}`)

	if _, err := d.Dispatch(context.Background(), "fix the build"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Stats().Size != 1 {
		t.Errorf("expected 1 cached decision, got %d", d.Stats().Size)
	}

	d.ClearCache()
	if d.Stats().Size != 0 {
		t.Errorf("expected empty cache, got %d", d.Stats().Size)
	}

	if _, err := d.Dispatch(context.Background(), "fix the build"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completer.calls != 2 {
		t.Errorf("expected 2 model calls after clear, got %d", completer.calls)
	}
}

func TestStatsReportsTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheTTL = 30 * time.Minute
	d := NewDispatcher(cfg, &fakeCompleter{})

	if got := d.Stats().TTL; got != "30m0s" {
		t.Errorf("unexpected TTL: %s", got)
	}
}

func TestParseReplyErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"empty", ""},
		{"prose", "no json here"},
		{"malformed", `{"agentType": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseReply(tt.reply); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParseReplyNormalizesAgentType(t *testing.T) {
	parsed, err := parseReply(`{"agentType": "Security_Auditor", "confidence": 0.8, "reasoning": "audit"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.AgentTypeValid {
		t.Fatal("expected a recognized agent type")
	}
	if parsed.AgentType != models.AgentTypeSecurityAuditor {
		t.Errorf("expected security-auditor, got %s", parsed.AgentType)
	}
}
