package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	governorReportSince time.Duration
	governorPauseReason string
	governorTermReason  string
)

var governorCmd = &cobra.Command{
	Use:   "governor",
	Short: "Inspect and control the resource governor",
}

var governorReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show resource consumption and escalations",
	RunE:  runGovernorReport,
}

var governorPauseCmd = &cobra.Command{
	Use:   "pause <agent-id>",
	Short: "Pause a tracked agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runGovernorPause,
}

var governorResumeCmd = &cobra.Command{
	Use:   "resume <agent-id>",
	Short: "Resume a paused agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runGovernorResume,
}

var governorTerminateCmd = &cobra.Command{
	Use:   "terminate <agent-id>",
	Short: "Forcibly stop a tracked agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runGovernorTerminate,
}

func init() {
	governorReportCmd.Flags().DurationVar(&governorReportSince, "since", 24*time.Hour, "Report window")
	governorPauseCmd.Flags().StringVar(&governorPauseReason, "reason", "manual pause", "Pause reason")
	governorTerminateCmd.Flags().StringVar(&governorTermReason, "reason", "manual termination", "Termination reason")

	governorCmd.AddCommand(governorReportCmd)
	governorCmd.AddCommand(governorPauseCmd)
	governorCmd.AddCommand(governorResumeCmd)
	governorCmd.AddCommand(governorTerminateCmd)
}

func runGovernorReport(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}

	report, err := c.Governor.ResourceMetrics(time.Now().Add(-governorReportSince))
	if err != nil {
		return err
	}

	fmt.Printf("Tracked agents: %d (%d paused)\n", report.TotalAgents, report.PausedAgents)
	displayPhases(report)
	if report.TotalEvents == 0 {
		fmt.Printf("No escalations in the last %s.\n", governorReportSince)
	}
	return nil
}

func runGovernorPause(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}
	if err := c.Governor.PauseAgent(args[0], governorPauseReason); err != nil {
		return err
	}
	fmt.Printf("%s Paused %s\n", color.YellowString("⏸"), args[0])
	return nil
}

func runGovernorResume(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}
	if err := c.Governor.ResumeAgent(args[0]); err != nil {
		return err
	}
	fmt.Printf("%s Resumed %s\n", color.GreenString("▶"), args[0])
	return nil
}

func runGovernorTerminate(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}
	if err := c.Governor.TerminateAgent(args[0], governorTermReason); err != nil {
		return err
	}
	fmt.Printf("%s Terminated %s\n", color.RedString("✗"), args[0])
	return nil
}
