package models

import "testing"

func TestAgentTypeValid(t *testing.T) {
	for _, at := range AllAgentTypes {
		if !at.Valid() {
			t.Errorf("expected agent type %q to be valid", at)
		}
	}

	invalid := []AgentType{"", "wizard", "security_auditor", "Developer"}
	for _, at := range invalid {
		if at.Valid() {
			t.Errorf("expected agent type %q to be invalid", at)
		}
	}
}

func TestNormalizeAgentType(t *testing.T) {
	tests := []struct {
		input  string
		want   AgentType
		wantOK bool
	}{
		{"developer", AgentTypeDeveloper, true},
		{"security_auditor", AgentTypeSecurityAuditor, true},
		{"security-auditor", AgentTypeSecurityAuditor, true},
		{"  Researcher ", AgentTypeResearcher, true},
		{"ANALYST", AgentTypeAnalyst, true},
		{"wizard", "wizard", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeAgentType(tt.input)
		if ok != tt.wantOK {
			t.Errorf("NormalizeAgentType(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
		}
		if ok && got != tt.want {
			t.Errorf("NormalizeAgentType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
