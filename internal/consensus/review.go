package consensus

import (
	"fmt"
	"strings"
)

// ReviewRequest is the configuration handed to an external agent asked
// to review a pending checkpoint on a human's behalf.
type ReviewRequest struct {
	// CheckpointID is the checkpoint under review.
	CheckpointID string
	// ReviewerAgentType is the agent type that should perform the review.
	ReviewerAgentType string
	// Prompt is the review prompt embedding the risk level and subtask
	// details.
	Prompt string
}

// reviewPromptHeader frames the reviewer's job. The reviewer is expected
// to respond through SubmitDecision, not by mutating the checkpoint.
const reviewPromptHeader = `You are reviewing a request to spawn subtasks on behalf of a human operator.
Assess whether each proposed subtask is safe and necessary. Approve the
checkpoint, reject it, or approve it while rejecting individual subtasks.`

// StartAgentReview prepares a reviewer configuration for a pending
// checkpoint. It fails for unknown or already-decided checkpoints.
func (s *Service) StartAgentReview(id string) (*ReviewRequest, error) {
	cp, err := s.GetCheckpoint(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if cp.Status.Terminal() {
		return nil, fmt.Errorf("Checkpoint is already %s", cp.Status)
	}

	var b strings.Builder
	b.WriteString(reviewPromptHeader)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Checkpoint: %s\n", cp.ID)
	fmt.Fprintf(&b, "Task: %s\n", cp.TaskID)
	if cp.ParentTaskID != "" {
		fmt.Fprintf(&b, "Parent task: %s\n", cp.ParentTaskID)
	}
	fmt.Fprintf(&b, "Overall risk level: %s\n\n", cp.RiskLevel)
	fmt.Fprintf(&b, "Proposed subtasks (%d):\n", len(cp.ProposedSubtasks))
	for i, st := range cp.ProposedSubtasks {
		fmt.Fprintf(&b, "%d. [%s] agent=%s risk=%s\n   input: %s\n",
			i+1, st.ID, st.AgentType, st.EstimatedRisk, st.Input)
	}

	return &ReviewRequest{
		CheckpointID:      cp.ID,
		ReviewerAgentType: string(s.cfg.reviewerAgentType()),
		Prompt:            b.String(),
	}, nil
}
