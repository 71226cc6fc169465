// Package config handles configuration loading and management for the
// coordination core. It supports XDG config paths, project-level
// overrides, environment variables, and hot reload.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/blackms/aistack-sub001/internal/api"
	"github.com/blackms/aistack-sub001/internal/consensus"
	"github.com/blackms/aistack-sub001/internal/dispatch"
	"github.com/blackms/aistack-sub001/internal/governor"
	"github.com/blackms/aistack-sub001/internal/queue"
	"github.com/blackms/aistack-sub001/internal/state"
	"github.com/blackms/aistack-sub001/pkg/models"
)

// Config holds all configuration for the coordination core.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Queue     QueueConfig     `mapstructure:"queue" yaml:"queue"`
	Consensus ConsensusConfig `mapstructure:"consensus" yaml:"consensus"`
	Governor  GovernorConfig  `mapstructure:"governor" yaml:"governor"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch" yaml:"dispatch"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	Model      string `mapstructure:"model" yaml:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock" yaml:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region" yaml:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Enabled toggles SQLite persistence. Disabled keeps everything
	// in memory.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Path overrides the database location when non-empty.
	Path string `mapstructure:"path" yaml:"path"`
}

// QueueConfig holds task queue settings.
type QueueConfig struct {
	DefaultPriority int `mapstructure:"default_priority" yaml:"default_priority"`
}

// ConsensusConfig holds approval gate settings.
type ConsensusConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	CheckpointTimeout time.Duration `mapstructure:"checkpoint_timeout" yaml:"checkpoint_timeout"`
	MaxDepth          int           `mapstructure:"max_depth" yaml:"max_depth"`
	GatedRiskLevels   []string      `mapstructure:"gated_risk_levels" yaml:"gated_risk_levels"`
	ReviewerAgentType string        `mapstructure:"reviewer_agent_type" yaml:"reviewer_agent_type"`
}

// GovernorConfig holds resource governor settings.
type GovernorConfig struct {
	Enabled                   bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxFilesAccessed          int           `mapstructure:"max_files_accessed" yaml:"max_files_accessed"`
	MaxApiCalls               int           `mapstructure:"max_api_calls" yaml:"max_api_calls"`
	MaxSubtasks               int           `mapstructure:"max_subtasks" yaml:"max_subtasks"`
	MaxTokens                 int64         `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxTimeWithoutDeliverable time.Duration `mapstructure:"max_time_without_deliverable" yaml:"max_time_without_deliverable"`
	WarningFraction           float64       `mapstructure:"warning_fraction" yaml:"warning_fraction"`
	CheckInterval             time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	AutoTerminate             bool          `mapstructure:"auto_terminate" yaml:"auto_terminate"`
	PauseOnIntervention       bool          `mapstructure:"pause_on_intervention" yaml:"pause_on_intervention"`
}

// DispatchConfig holds smart dispatcher settings.
type DispatchConfig struct {
	Enabled              bool          `mapstructure:"enabled" yaml:"enabled"`
	Model                string        `mapstructure:"model" yaml:"model"`
	ConfidenceThreshold  float64       `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	FallbackAgentType    string        `mapstructure:"fallback_agent_type" yaml:"fallback_agent_type"`
	MaxDescriptionLength int           `mapstructure:"max_description_length" yaml:"max_description_length"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (AISTACK_*, ANTHROPIC_API_KEY)
// 2. Project config (.aistack.yaml in current directory or parent)
// 3. User config (~/.config/aistack/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Project config takes precedence
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// Watch reloads the config file at path whenever it changes, invoking
// onChange with the fresh configuration. Unparseable edits are
// reported to onError and the previous configuration stays in effect.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

// newViper returns a viper instance with defaults and env bindings set.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AISTACK")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", "AISTACK_ANTHROPIC_API_KEY")

	return v
}

// unmarshal decodes viper state into a Config and expands env
// references in the API key.
func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("storage.enabled", cfg.Storage.Enabled)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("queue.default_priority", cfg.Queue.DefaultPriority)
	v.Set("consensus.enabled", cfg.Consensus.Enabled)
	v.Set("consensus.checkpoint_timeout", cfg.Consensus.CheckpointTimeout.String())
	v.Set("consensus.max_depth", cfg.Consensus.MaxDepth)
	v.Set("consensus.gated_risk_levels", cfg.Consensus.GatedRiskLevels)
	v.Set("consensus.reviewer_agent_type", cfg.Consensus.ReviewerAgentType)
	v.Set("governor.enabled", cfg.Governor.Enabled)
	v.Set("governor.max_files_accessed", cfg.Governor.MaxFilesAccessed)
	v.Set("governor.max_api_calls", cfg.Governor.MaxApiCalls)
	v.Set("governor.max_subtasks", cfg.Governor.MaxSubtasks)
	v.Set("governor.max_tokens", cfg.Governor.MaxTokens)
	v.Set("governor.max_time_without_deliverable", cfg.Governor.MaxTimeWithoutDeliverable.String())
	v.Set("governor.warning_fraction", cfg.Governor.WarningFraction)
	v.Set("governor.check_interval", cfg.Governor.CheckInterval.String())
	v.Set("governor.auto_terminate", cfg.Governor.AutoTerminate)
	v.Set("governor.pause_on_intervention", cfg.Governor.PauseOnIntervention)
	v.Set("dispatch.enabled", cfg.Dispatch.Enabled)
	v.Set("dispatch.model", cfg.Dispatch.Model)
	v.Set("dispatch.confidence_threshold", cfg.Dispatch.ConfidenceThreshold)
	v.Set("dispatch.fallback_agent_type", cfg.Dispatch.FallbackAgentType)
	v.Set("dispatch.max_description_length", cfg.Dispatch.MaxDescriptionLength)
	v.Set("dispatch.cache_ttl", cfg.Dispatch.CacheTTL.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if
// it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.path", "")

	v.SetDefault("queue.default_priority", queue.DefaultPriority)

	v.SetDefault("consensus.enabled", true)
	v.SetDefault("consensus.checkpoint_timeout", "30m")
	v.SetDefault("consensus.max_depth", consensus.DefaultMaxDepth)
	v.SetDefault("consensus.gated_risk_levels", []string{"high"})
	v.SetDefault("consensus.reviewer_agent_type", "reviewer")

	v.SetDefault("governor.enabled", true)
	v.SetDefault("governor.max_files_accessed", 200)
	v.SetDefault("governor.max_api_calls", 100)
	v.SetDefault("governor.max_subtasks", 10)
	v.SetDefault("governor.max_tokens", 500000)
	v.SetDefault("governor.max_time_without_deliverable", "15m")
	v.SetDefault("governor.warning_fraction", governor.DefaultWarningFraction)
	v.SetDefault("governor.check_interval", "30s")
	v.SetDefault("governor.auto_terminate", false)
	v.SetDefault("governor.pause_on_intervention", true)

	v.SetDefault("dispatch.enabled", true)
	v.SetDefault("dispatch.model", "")
	v.SetDefault("dispatch.confidence_threshold", dispatch.DefaultConfidenceThreshold)
	v.SetDefault("dispatch.fallback_agent_type", "developer")
	v.SetDefault("dispatch.max_description_length", dispatch.DefaultMaxDescriptionLength)
	v.SetDefault("dispatch.cache_ttl", "1h")
}

// getUserConfigDir returns the XDG config directory.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "aistack")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "aistack")
	}
	return filepath.Join(home, ".config", "aistack")
}

// findProjectConfig searches for .aistack.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".aistack.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Enabled: true},
		Queue:   QueueConfig{DefaultPriority: queue.DefaultPriority},
		Consensus: ConsensusConfig{
			Enabled:           true,
			CheckpointTimeout: consensus.DefaultCheckpointTimeout,
			MaxDepth:          consensus.DefaultMaxDepth,
			GatedRiskLevels:   []string{"high"},
			ReviewerAgentType: "reviewer",
		},
		Governor: GovernorConfig{
			Enabled:                   true,
			MaxFilesAccessed:          200,
			MaxApiCalls:               100,
			MaxSubtasks:               10,
			MaxTokens:                 500000,
			MaxTimeWithoutDeliverable: 15 * time.Minute,
			WarningFraction:           governor.DefaultWarningFraction,
			CheckInterval:             30 * time.Second,
			PauseOnIntervention:       true,
		},
		Dispatch: DispatchConfig{
			Enabled:              true,
			ConfidenceThreshold:  dispatch.DefaultConfidenceThreshold,
			FallbackAgentType:    "developer",
			MaxDescriptionLength: dispatch.DefaultMaxDescriptionLength,
			CacheTTL:             dispatch.DefaultCacheTTL,
		},
	}
}

// ToConsensus converts to the consensus package's configuration.
func (c *Config) ToConsensus() consensus.Config {
	var gated []models.RiskLevel
	for _, level := range c.Consensus.GatedRiskLevels {
		gated = append(gated, models.RiskLevel(level))
	}
	return consensus.Config{
		Enabled:           c.Consensus.Enabled,
		CheckpointTimeout: c.Consensus.CheckpointTimeout,
		MaxDepth:          c.Consensus.MaxDepth,
		GatedRiskLevels:   gated,
		ReviewerAgentType: models.AgentType(c.Consensus.ReviewerAgentType),
	}
}

// ToGovernor converts to the governor package's configuration.
func (c *Config) ToGovernor() governor.Config {
	return governor.Config{
		Enabled: c.Governor.Enabled,
		Thresholds: governor.Thresholds{
			MaxFilesAccessed:          c.Governor.MaxFilesAccessed,
			MaxApiCalls:               c.Governor.MaxApiCalls,
			MaxSubtasks:               c.Governor.MaxSubtasks,
			MaxTokens:                 c.Governor.MaxTokens,
			MaxTimeWithoutDeliverable: c.Governor.MaxTimeWithoutDeliverable,
		},
		WarningFraction:     c.Governor.WarningFraction,
		CheckInterval:       c.Governor.CheckInterval,
		AutoTerminate:       c.Governor.AutoTerminate,
		PauseOnIntervention: c.Governor.PauseOnIntervention,
	}
}

// ToDispatch converts to the dispatch package's configuration.
func (c *Config) ToDispatch() dispatch.Config {
	fallback, ok := models.NormalizeAgentType(c.Dispatch.FallbackAgentType)
	if !ok {
		fallback = models.AgentTypeDeveloper
	}
	return dispatch.Config{
		Enabled:              c.Dispatch.Enabled,
		Model:                c.Dispatch.Model,
		ConfidenceThreshold:  c.Dispatch.ConfidenceThreshold,
		FallbackAgentType:    fallback,
		MaxDescriptionLength: c.Dispatch.MaxDescriptionLength,
		CacheTTL:             c.Dispatch.CacheTTL,
	}
}

// ToClient converts to the API client's configuration.
func (c *Config) ToClient() api.ClientConfig {
	return api.ClientConfig{
		Model:         anthropic.Model(c.Anthropic.Model),
		APIKey:        c.Anthropic.APIKey,
		UseAWSBedrock: c.Anthropic.UseBedrock,
		AWSRegion:     c.Anthropic.AWSRegion,
		AWSProfile:    c.Anthropic.AWSProfile,
	}
}

// StoragePath returns the effective database path, falling back to
// the global database location when none is configured.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return state.GlobalDBPath()
}
