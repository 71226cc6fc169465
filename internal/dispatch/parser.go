package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blackms/aistack-sub001/pkg/models"
)

// parsedReply is the validated result of decoding a classification
// reply. The external payload's shape is never trusted: every field is
// presence- and type-checked, with the stated defaults.
type parsedReply struct {
	// AgentType is the normalized agent type, empty when missing or
	// unrecognized.
	AgentType models.AgentType
	// AgentTypeValid reports whether the reply named a recognized type.
	AgentTypeValid bool
	// Confidence is the clamped confidence, defaulting to 0.5.
	Confidence float64
	// Reasoning is the model's reasoning, defaulting to
	// "no reasoning provided".
	Reasoning string
}

// parseReply decodes a model reply, accepting either raw JSON or JSON
// fenced in a markdown code block. It returns an error only when no
// JSON object can be decoded at all; an unrecognized agent type is a
// successful parse with AgentTypeValid false.
func parseReply(response string) (*parsedReply, error) {
	payload, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	parsed := &parsedReply{
		Confidence: 0.5,
		Reasoning:  "no reasoning provided",
	}

	if raw, ok := stringField(fields, "agentType", "agent_type"); ok {
		if at, recognized := models.NormalizeAgentType(raw); recognized {
			parsed.AgentType = at
			parsed.AgentTypeValid = true
		}
	}

	if raw, ok := fields["confidence"]; ok {
		if num, isNum := raw.(float64); isNum {
			parsed.Confidence = clamp(num, 0, 1)
		}
	}

	if raw, ok := stringField(fields, "reasoning"); ok && raw != "" {
		parsed.Reasoning = raw
	}

	return parsed, nil
}

// stringField returns the first of the named fields that is a string.
func stringField(fields map[string]any, names ...string) (string, bool) {
	for _, name := range names {
		if raw, ok := fields[name]; ok {
			if s, isStr := raw.(string); isStr {
				return s, true
			}
		}
	}
	return "", false
}

// extractJSON strips markdown code fences and returns the outermost
// JSON object in the response.
func extractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
		if idx := strings.LastIndex(response, "```"); idx != -1 {
			response = response[:idx]
		}
		response = strings.TrimSpace(response)
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		if idx := strings.LastIndex(response, "```"); idx != -1 {
			response = response[:idx]
		}
		response = strings.TrimSpace(response)
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no valid JSON object found in response")
	}
	return response[start : end+1], nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
