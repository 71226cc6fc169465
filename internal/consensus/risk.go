package consensus

import (
	"strings"

	"github.com/blackms/aistack-sub001/pkg/models"
)

// EstimateRiskLevel estimates the risk of a proposed subtask from its
// agent type and optional input text. Agent type is checked first; when
// the type alone does not resolve the risk, the input is scanned against
// the configured keyword patterns. The default is low.
func (s *Service) EstimateRiskLevel(agentType models.AgentType, input string) models.RiskLevel {
	for _, at := range s.cfg.highRiskAgentTypes() {
		if agentType == at {
			return models.RiskHigh
		}
	}
	for _, at := range s.cfg.mediumRiskAgentTypes() {
		if agentType == at {
			return models.RiskMedium
		}
	}

	lowered := strings.ToLower(input)
	for _, pattern := range s.cfg.highRiskPatterns() {
		if strings.Contains(lowered, strings.ToLower(pattern)) {
			return models.RiskHigh
		}
	}
	for _, pattern := range s.cfg.mediumRiskPatterns() {
		if strings.Contains(lowered, strings.ToLower(pattern)) {
			return models.RiskMedium
		}
	}

	return models.RiskLow
}

// RequiresConsensus decides whether a proposed subtask at the given
// risk and depth needs approval before it can run.
//
// Root-level work (depth 0) is never gated, regardless of risk. Depth
// beyond the configured maximum is always gated, regardless of risk -
// a depth-limit escape valve bounding recursive subtask spawning.
// Otherwise the decision is membership of the risk level in the
// configured gated set.
func (s *Service) RequiresConsensus(risk models.RiskLevel, depth int, parentTaskID string) bool {
	if !s.cfg.Enabled {
		return false
	}
	if depth == 0 {
		return false
	}
	if depth > s.cfg.MaxDepth {
		return true
	}
	for _, gated := range s.cfg.GatedRiskLevels {
		if risk == gated {
			return true
		}
	}
	return false
}

// CalculateTaskDepth returns the depth a hypothetical new child of the
// given task would have. With no task ID the depth is 0 (a root task).
// Ancestors are resolved through the external task collaborator.
func (s *Service) CalculateTaskDepth(taskID string) (int, error) {
	if taskID == "" {
		return 0, nil
	}

	depth := 1
	current := taskID
	// Bound the walk so a corrupt parent chain cannot loop forever.
	for i := 0; i < maxAncestorWalk; i++ {
		if s.tasks == nil {
			return depth, nil
		}
		task, err := s.tasks.Task(current)
		if err != nil {
			return depth, err
		}
		if task == nil || task.ParentID == "" {
			return depth, nil
		}
		depth++
		current = task.ParentID
	}
	return depth, nil
}

// maxAncestorWalk bounds parent-chain traversal.
const maxAncestorWalk = 100
