package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackms/aistack-sub001/internal/config"
	"github.com/blackms/aistack-sub001/internal/governor"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show coordination core status",
	Long: `Display the current state of the coordination core.

Shows:
  - Queue depth and in-flight tasks
  - Pending approval checkpoints
  - Governor phase distribution and recent escalations
  - Dispatcher cache statistics
  - API key and storage configuration`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, err := components()
	if err != nil {
		return err
	}

	key, keyErr := config.ResolveAPIKey(cfg)
	if keyErr != nil {
		printStatus("⚠", "Anthropic API key not configured", color.FgYellow)
	} else {
		printStatus("✓", fmt.Sprintf("Anthropic API key: %s", config.MaskAPIKey(key)), color.FgGreen)
	}

	if c.Store != nil {
		printStatus("✓", fmt.Sprintf("Storage: %s", c.Store.Path()), color.FgGreen)
	} else {
		printStatus("⚠", "Storage disabled (memory only)", color.FgYellow)
	}
	fmt.Println()

	qs := c.Queue.Status()
	fmt.Printf("Queue: %d queued, %d processing\n", qs.Queued, qs.Processing)

	pending := c.Consensus.CountPendingCheckpoints()
	if pending > 0 {
		fmt.Printf("Checkpoints: %s pending approval\n", color.YellowString("%d", pending))
	} else {
		fmt.Println("Checkpoints: none pending")
	}

	report, err := c.Governor.ResourceMetrics(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return fmt.Errorf("governor report: %w", err)
	}
	fmt.Printf("Agents: %d tracked", report.TotalAgents)
	if report.PausedAgents > 0 {
		fmt.Printf(", %s paused", color.YellowString("%d", report.PausedAgents))
	}
	fmt.Println()
	displayPhases(report)

	stats := c.Dispatcher.Stats()
	fmt.Printf("Dispatch cache: %d decisions (TTL %s)\n", stats.Size, stats.TTL)

	return nil
}

func displayPhases(report *governor.Report) {
	phases := []struct {
		phase governor.Phase
		paint func(format string, a ...interface{}) string
	}{
		{governor.PhaseNormal, color.GreenString},
		{governor.PhaseWarning, color.YellowString},
		{governor.PhaseIntervention, color.RedString},
		{governor.PhaseTermination, color.RedString},
	}
	for _, p := range phases {
		n := report.AgentsByPhase[p.phase]
		if n == 0 {
			continue
		}
		fmt.Printf("  %s: %d\n", p.paint(string(p.phase)), n)
	}
	if report.TotalEvents > 0 {
		fmt.Printf("  escalations (24h): %d warnings, %d interventions, %d terminations\n",
			report.Warnings, report.Interventions, report.Terminations)
	}
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
