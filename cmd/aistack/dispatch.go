package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dispatchClearCache bool

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <description>",
	Short: "Classify a task description into an agent type",
	Long: `Classify a free-text task description into the agent type best
suited to execute it, using a Claude call with decision caching.

Examples:
  aistack dispatch "investigate flaky login failures"
  aistack dispatch --clear-cache "fix the pagination bug"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().BoolVar(&dispatchClearCache, "clear-cache", false, "Drop cached decisions before dispatching")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}

	if dispatchClearCache {
		c.Dispatcher.ClearCache()
	}

	description := strings.Join(args, " ")
	decision, err := c.Dispatcher.Dispatch(cmd.Context(), description)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	fmt.Printf("Agent type: %s\n", color.CyanString(decision.AgentType.String()))
	fmt.Printf("Confidence: %.2f\n", decision.Confidence)
	fmt.Printf("Reasoning:  %s\n", decision.Reasoning)
	if decision.Cached {
		fmt.Println(color.YellowString("(served from cache)"))
	}
	return nil
}
