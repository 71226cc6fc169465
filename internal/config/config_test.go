package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackms/aistack-sub001/internal/state"
	"github.com/blackms/aistack-sub001/pkg/models"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfigFile(t, `
anthropic:
  model: claude-haiku-4-5-20251001
governor:
  max_api_calls: 5
  auto_terminate: true
dispatch:
  confidence_threshold: 0.8
  fallback_agent_type: researcher
consensus:
  max_depth: 2
  gated_risk_levels:
    - medium
    - high
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Anthropic.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("unexpected model: %s", cfg.Anthropic.Model)
	}
	if cfg.Governor.MaxApiCalls != 5 {
		t.Errorf("expected max_api_calls 5, got %d", cfg.Governor.MaxApiCalls)
	}
	if !cfg.Governor.AutoTerminate {
		t.Error("expected auto_terminate true")
	}
	if cfg.Dispatch.ConfidenceThreshold != 0.8 {
		t.Errorf("expected confidence_threshold 0.8, got %f", cfg.Dispatch.ConfidenceThreshold)
	}
	if cfg.Consensus.MaxDepth != 2 {
		t.Errorf("expected max_depth 2, got %d", cfg.Consensus.MaxDepth)
	}
	if len(cfg.Consensus.GatedRiskLevels) != 2 {
		t.Errorf("unexpected gated risk levels: %v", cfg.Consensus.GatedRiskLevels)
	}

	// Unset fields keep their defaults.
	if cfg.Governor.MaxFilesAccessed != 200 {
		t.Errorf("expected default max_files_accessed, got %d", cfg.Governor.MaxFilesAccessed)
	}
	if !cfg.Governor.PauseOnIntervention {
		t.Error("expected default pause_on_intervention true")
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadUsesXDGConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "aistack"), 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	err := os.WriteFile(filepath.Join(dir, "aistack", "config.yaml"), []byte("queue:\n  default_priority: 7\n"), 0600)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.DefaultPriority != 7 {
		t.Errorf("expected default_priority 7, got %d", cfg.Queue.DefaultPriority)
	}
}

func TestAPIKeyEnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-test-key" {
		t.Errorf("expected env API key, got %q", cfg.Anthropic.APIKey)
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Governor.MaxApiCalls = 42
	cfg.Dispatch.CacheTTL = 2 * time.Hour
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Governor.MaxApiCalls != 42 {
		t.Errorf("expected max_api_calls 42, got %d", reloaded.Governor.MaxApiCalls)
	}
	if reloaded.Dispatch.CacheTTL != 2*time.Hour {
		t.Errorf("expected cache_ttl 2h, got %s", reloaded.Dispatch.CacheTTL)
	}
}

func TestToConsensus(t *testing.T) {
	cfg := Default()
	cfg.Consensus.GatedRiskLevels = []string{"medium", "high"}
	cfg.Consensus.ReviewerAgentType = "security-auditor"

	cc := cfg.ToConsensus()
	if !cc.Enabled {
		t.Error("expected enabled")
	}
	if len(cc.GatedRiskLevels) != 2 || cc.GatedRiskLevels[0] != models.RiskMedium {
		t.Errorf("unexpected gated levels: %v", cc.GatedRiskLevels)
	}
	if cc.ReviewerAgentType != models.AgentTypeSecurityAuditor {
		t.Errorf("unexpected reviewer type: %s", cc.ReviewerAgentType)
	}
}

func TestToGovernor(t *testing.T) {
	cfg := Default()
	cfg.Governor.MaxTokens = 123456

	gc := cfg.ToGovernor()
	if gc.Thresholds.MaxTokens != 123456 {
		t.Errorf("unexpected max tokens: %d", gc.Thresholds.MaxTokens)
	}
	if gc.WarningFraction != 0.8 {
		t.Errorf("unexpected warning fraction: %f", gc.WarningFraction)
	}
}

func TestToDispatchNormalizesFallback(t *testing.T) {
	cfg := Default()
	cfg.Dispatch.FallbackAgentType = "Security_Auditor"

	dc := cfg.ToDispatch()
	if dc.FallbackAgentType != models.AgentTypeSecurityAuditor {
		t.Errorf("unexpected fallback: %s", dc.FallbackAgentType)
	}

	cfg.Dispatch.FallbackAgentType = "not-a-type"
	dc = cfg.ToDispatch()
	if dc.FallbackAgentType != models.AgentTypeDeveloper {
		t.Errorf("expected developer for unknown fallback, got %s", dc.FallbackAgentType)
	}
}

func TestStoragePathDefault(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = ""
	if got := cfg.StoragePath(); got != state.GlobalDBPath() {
		t.Errorf("expected global database path, got %s", got)
	}

	cfg.Storage.Path = "/tmp/custom.db"
	if got := cfg.StoragePath(); got != "/tmp/custom.db" {
		t.Errorf("expected configured path, got %s", got)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeConfigFile(t, "governor:\n  max_api_calls: 5\n")

	changes := make(chan *Config, 1)
	err := Watch(path, func(cfg *Config) {
		select {
		case changes <- cfg:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("governor:\n  max_api_calls: 9\n"), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.Governor.MaxApiCalls != 9 {
			t.Errorf("expected reloaded max_api_calls 9, got %d", cfg.Governor.MaxApiCalls)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
