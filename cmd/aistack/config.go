package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blackms/aistack-sub001/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify configuration.

Without arguments, displays current configuration as YAML.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/aistack/config.yaml
Project-specific overrides can be placed in .aistack.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a project config template",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

// displayAllConfig prints the configuration as YAML, masking the API key.
func displayAllConfig(cfg *config.Config) {
	masked := *cfg
	masked.Anthropic.APIKey = config.MaskAPIKey(cfg.Anthropic.APIKey)

	out, err := yaml.Marshal(&masked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering config: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(out))
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "storage.enabled":
		return strconv.FormatBool(cfg.Storage.Enabled), nil
	case "storage.path":
		return cfg.Storage.Path, nil
	case "queue.default_priority":
		return strconv.Itoa(cfg.Queue.DefaultPriority), nil
	case "consensus.enabled":
		return strconv.FormatBool(cfg.Consensus.Enabled), nil
	case "consensus.checkpoint_timeout":
		return cfg.Consensus.CheckpointTimeout.String(), nil
	case "consensus.max_depth":
		return strconv.Itoa(cfg.Consensus.MaxDepth), nil
	case "governor.enabled":
		return strconv.FormatBool(cfg.Governor.Enabled), nil
	case "governor.max_api_calls":
		return strconv.Itoa(cfg.Governor.MaxApiCalls), nil
	case "governor.auto_terminate":
		return strconv.FormatBool(cfg.Governor.AutoTerminate), nil
	case "governor.pause_on_intervention":
		return strconv.FormatBool(cfg.Governor.PauseOnIntervention), nil
	case "dispatch.enabled":
		return strconv.FormatBool(cfg.Dispatch.Enabled), nil
	case "dispatch.confidence_threshold":
		return strconv.FormatFloat(cfg.Dispatch.ConfidenceThreshold, 'f', -1, 64), nil
	case "dispatch.fallback_agent_type":
		return cfg.Dispatch.FallbackAgentType, nil
	case "dispatch.cache_ttl":
		return cfg.Dispatch.CacheTTL.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "storage.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for storage.enabled: %w", err)
		}
		cfg.Storage.Enabled = b
	case "storage.path":
		cfg.Storage.Path = value
	case "queue.default_priority":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for default_priority: %w", err)
		}
		cfg.Queue.DefaultPriority = n
	case "consensus.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for consensus.enabled: %w", err)
		}
		cfg.Consensus.Enabled = b
	case "consensus.checkpoint_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for checkpoint_timeout: %w", err)
		}
		cfg.Consensus.CheckpointTimeout = d
	case "consensus.max_depth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_depth: %w", err)
		}
		cfg.Consensus.MaxDepth = n
	case "governor.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for governor.enabled: %w", err)
		}
		cfg.Governor.Enabled = b
	case "governor.max_api_calls":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_api_calls: %w", err)
		}
		cfg.Governor.MaxApiCalls = n
	case "governor.auto_terminate":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for auto_terminate: %w", err)
		}
		cfg.Governor.AutoTerminate = b
	case "governor.pause_on_intervention":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for pause_on_intervention: %w", err)
		}
		cfg.Governor.PauseOnIntervention = b
	case "dispatch.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for dispatch.enabled: %w", err)
		}
		cfg.Dispatch.Enabled = b
	case "dispatch.confidence_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for confidence_threshold: %w", err)
		}
		cfg.Dispatch.ConfidenceThreshold = f
	case "dispatch.fallback_agent_type":
		cfg.Dispatch.FallbackAgentType = value
	case "dispatch.cache_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for cache_ttl: %w", err)
		}
		cfg.Dispatch.CacheTTL = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// runConfigInit creates a .aistack.yaml template in the current
// directory.
func runConfigInit(cmd *cobra.Command, args []string) error {
	const path = ".aistack.yaml"
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists, not overwriting.\n", path)
		return nil
	}

	template := `# aistack project configuration
# Overrides defaults from ~/.config/aistack/config.yaml

# anthropic:
#   model: claude-haiku-4-5-20251001

# consensus:
#   enabled: true
#   checkpoint_timeout: 30m
#   max_depth: 3
#   gated_risk_levels:
#     - high

# governor:
#   max_api_calls: 100
#   max_tokens: 500000
#   pause_on_intervention: true

# dispatch:
#   confidence_threshold: 0.7
#   fallback_agent_type: developer
`
	if err := os.WriteFile(path, []byte(template), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("Created %s\n", path)
	return nil
}
