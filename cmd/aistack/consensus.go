package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	consensusDecidedBy      string
	consensusFeedback       string
	consensusRejectSubtasks []string
	consensusListLimit      int
)

var consensusCmd = &cobra.Command{
	Use:   "consensus",
	Short: "Review and decide approval checkpoints",
}

var consensusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending checkpoints",
	RunE:  runConsensusList,
}

var consensusApproveCmd = &cobra.Command{
	Use:   "approve <checkpoint-id>",
	Short: "Approve a pending checkpoint",
	Long: `Approve a pending checkpoint, optionally rejecting individual
subtasks while approving the rest.

Examples:
  aistack consensus approve 4f7c... --by alice
  aistack consensus approve 4f7c... --reject-subtask sub-2 --feedback "skip the deploy step"`,
	Args: cobra.ExactArgs(1),
	RunE: runConsensusApprove,
}

var consensusRejectCmd = &cobra.Command{
	Use:   "reject <checkpoint-id>",
	Short: "Reject a pending checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsensusReject,
}

var consensusEventsCmd = &cobra.Command{
	Use:   "events <checkpoint-id>",
	Short: "Show a checkpoint's audit trail",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsensusEvents,
}

func init() {
	for _, c := range []*cobra.Command{consensusApproveCmd, consensusRejectCmd} {
		c.Flags().StringVar(&consensusDecidedBy, "by", "operator", "Who is recording the decision")
		c.Flags().StringVar(&consensusFeedback, "feedback", "", "Decision feedback")
	}
	consensusApproveCmd.Flags().StringSliceVar(&consensusRejectSubtasks, "reject-subtask", nil, "Subtask IDs to reject while approving the rest")
	consensusListCmd.Flags().IntVar(&consensusListLimit, "limit", 20, "Maximum checkpoints to show")

	consensusCmd.AddCommand(consensusListCmd)
	consensusCmd.AddCommand(consensusApproveCmd)
	consensusCmd.AddCommand(consensusRejectCmd)
	consensusCmd.AddCommand(consensusEventsCmd)
}

func runConsensusList(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}

	expired := c.Consensus.ExpireCheckpoints()
	if expired > 0 {
		fmt.Printf("Expired %d overdue checkpoint(s)\n", expired)
	}

	pending := c.Consensus.ListPendingCheckpoints(consensusListLimit, 0)
	if len(pending) == 0 {
		fmt.Println("No pending checkpoints.")
		return nil
	}

	for _, cp := range pending {
		deadline := time.Until(cp.ExpiresAt).Round(time.Second)
		fmt.Printf("%s  task=%s  risk=%s  expires in %s\n",
			color.CyanString(cp.ID), cp.TaskID, riskString(string(cp.RiskLevel)), deadline)
		for _, sub := range cp.ProposedSubtasks {
			fmt.Printf("    %s [%s, %s]: %s\n", sub.ID, sub.AgentType, sub.EstimatedRisk, sub.Input)
		}
	}
	return nil
}

func runConsensusApprove(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}

	id := args[0]
	if err := c.Consensus.SubmitDecision(id, true, consensusDecidedBy, consensusFeedback, consensusRejectSubtasks); err != nil {
		return err
	}

	approved, err := c.Consensus.ApprovedSubtasks(id)
	if err != nil {
		return err
	}
	fmt.Printf("%s Approved %s (%d subtask(s) cleared)\n", color.GreenString("✓"), id, len(approved))
	return nil
}

func runConsensusReject(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}

	if err := c.Consensus.RejectCheckpoint(args[0], consensusDecidedBy, consensusFeedback); err != nil {
		return err
	}
	fmt.Printf("%s Rejected %s\n", color.RedString("✗"), args[0])
	return nil
}

func runConsensusEvents(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}

	events, err := c.Consensus.CheckpointEvents(args[0])
	if err != nil {
		return err
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %s", ev.Timestamp.Format(time.RFC3339), ev.Type)
		if ev.Actor != "" {
			line += fmt.Sprintf("  by %s", ev.Actor)
		}
		if ev.Feedback != "" {
			line += fmt.Sprintf("  (%s)", ev.Feedback)
		}
		fmt.Println(line)
	}
	return nil
}

// riskString colors a risk level for display.
func riskString(level string) string {
	switch level {
	case "high":
		return color.RedString(level)
	case "medium":
		return color.YellowString(level)
	default:
		return color.GreenString(level)
	}
}
