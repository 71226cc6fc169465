package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blackms/aistack-sub001/internal/config"
	"github.com/blackms/aistack-sub001/internal/registry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aistack",
	Short: "Agent coordination and governance control plane",
	Long: `aistack coordinates multi-agent work: a priority task queue,
inter-agent messaging, risk-gated approval checkpoints, per-agent
resource governance, and LLM-backed task routing.

Core capabilities:
- Queues tasks by priority and hands them to typed agents
- Routes messages between agents with broadcast support
- Gates risky subtask creation behind approval checkpoints
- Tracks per-agent resource consumption and pauses runaways
- Classifies free-text tasks into agent types via Claude`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (overrides discovery)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(consensusCmd)
	rootCmd.AddCommand(governorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// components loads configuration and returns the wired component set.
func components() (*registry.Components, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return registry.Get(cfg)
}
