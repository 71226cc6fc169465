package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/blackms/aistack-sub001/internal/queue"
	"github.com/blackms/aistack-sub001/pkg/models"
)

var (
	queueAddPriority  int
	queueAddAgentType string
	queueAddParent    string
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and feed the task queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show queued and in-flight tasks",
	RunE:  runQueueList,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Enqueue a task",
	Long: `Enqueue a task for execution.

When --agent-type is omitted, the smart dispatcher classifies the
description to pick one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQueueAdd,
}

func init() {
	queueAddCmd.Flags().IntVar(&queueAddPriority, "priority", 0, "Priority (higher first, 0 uses the default)")
	queueAddCmd.Flags().StringVar(&queueAddAgentType, "agent-type", "", "Agent type for the task")
	queueAddCmd.Flags().StringVar(&queueAddParent, "parent", "", "Parent task ID")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueAddCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}

	qs := c.Queue.Status()
	fmt.Printf("Queued: %d  Processing: %d\n", qs.Queued, qs.Processing)

	queued := c.Queue.Peek(20)
	if len(queued) > 0 {
		fmt.Println("\nQueued tasks:")
		for _, qt := range queued {
			fmt.Printf("  [p%d] %s (%s): %s\n", qt.Priority, qt.Task.ID, qt.Task.AgentType, qt.Task.Description)
		}
	}

	processing := c.Queue.Processing()
	if len(processing) > 0 {
		fmt.Println("\nProcessing:")
		for _, qt := range processing {
			fmt.Printf("  %s -> %s: %s\n", qt.Task.ID, qt.AssignedTo, qt.Task.Description)
		}
	}
	return nil
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	c, err := components()
	if err != nil {
		return err
	}

	description := strings.Join(args, " ")

	agentType := models.AgentType(queueAddAgentType)
	if queueAddAgentType == "" {
		decision, err := c.Dispatcher.Dispatch(cmd.Context(), description)
		if err != nil {
			return fmt.Errorf("classify task: %w", err)
		}
		agentType = decision.AgentType
		fmt.Printf("Classified as %s (confidence %.2f)\n", agentType, decision.Confidence)
	} else {
		normalized, ok := models.NormalizeAgentType(queueAddAgentType)
		if !ok {
			return fmt.Errorf("unknown agent type %q", queueAddAgentType)
		}
		agentType = normalized
	}

	task := &models.Task{
		ID:          uuid.New().String(),
		ParentID:    queueAddParent,
		AgentType:   agentType,
		Description: description,
		Status:      models.TaskStatusPending,
		CreatedAt:   time.Now(),
	}

	var qt *queue.QueuedTask
	if queueAddPriority > 0 {
		qt = c.Queue.EnqueueWithPriority(task, queueAddPriority)
	} else {
		qt = c.Queue.Enqueue(task)
	}

	if c.Store != nil {
		if err := c.Store.SaveTask(task); err != nil {
			return fmt.Errorf("persist task: %w", err)
		}
	}

	fmt.Printf("Enqueued %s at priority %d\n", task.ID, qt.Priority)
	return nil
}
