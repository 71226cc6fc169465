package models

import "strings"

// AgentType classifies the kind of agent a task should be routed to.
type AgentType string

const (
	// AgentTypeCoordinator manages other agents and decomposes work.
	AgentTypeCoordinator AgentType = "coordinator"
	// AgentTypeDeveloper writes and modifies code.
	AgentTypeDeveloper AgentType = "developer"
	// AgentTypeResearcher explores codebases and gathers information.
	AgentTypeResearcher AgentType = "researcher"
	// AgentTypeAnalyst analyzes data and produces reports.
	AgentTypeAnalyst AgentType = "analyst"
	// AgentTypeSecurityAuditor reviews code and configuration for security issues.
	AgentTypeSecurityAuditor AgentType = "security-auditor"
	// AgentTypeReviewer reviews proposed changes.
	AgentTypeReviewer AgentType = "reviewer"
	// AgentTypeTester writes and runs tests.
	AgentTypeTester AgentType = "tester"
	// AgentTypeDocumenter writes documentation.
	AgentTypeDocumenter AgentType = "documenter"
)

// AllAgentTypes lists every recognized agent type.
var AllAgentTypes = []AgentType{
	AgentTypeCoordinator,
	AgentTypeDeveloper,
	AgentTypeResearcher,
	AgentTypeAnalyst,
	AgentTypeSecurityAuditor,
	AgentTypeReviewer,
	AgentTypeTester,
	AgentTypeDocumenter,
}

// Valid returns true if the agent type is a known value.
func (t AgentType) Valid() bool {
	for _, known := range AllAgentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the agent type as a string.
func (t AgentType) String() string {
	return string(t)
}

// NormalizeAgentType canonicalizes an agent type string, accepting
// underscore variants (e.g. "security_auditor" -> "security-auditor").
// Returns the normalized type and true if it is recognized.
func NormalizeAgentType(s string) (AgentType, bool) {
	normalized := AgentType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	return normalized, normalized.Valid()
}
