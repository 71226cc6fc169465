package api

import "testing"

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Add(200, 75)

	input, output := tracker.Total()
	if input != 300 {
		t.Errorf("expected 300 input tokens, got %d", input)
	}
	if output != 125 {
		t.Errorf("expected 125 output tokens, got %d", output)
	}
	if tracker.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", tracker.Calls())
	}

	tracker.Reset()
	input, output = tracker.Total()
	if input != 0 || output != 0 || tracker.Calls() != 0 {
		t.Error("expected tracker cleared after reset")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestNewClientDefaultModel(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	client, err := NewClient(ClientConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Model() == "" {
		t.Error("expected a default model")
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	got := translateModelForBedrock("claude-haiku-4-5-20251001")
	if got != "us.anthropic.claude-haiku-4-5-20251001-v1:0" {
		t.Errorf("unexpected translation: %s", got)
	}

	// Unknown models pass through untouched.
	if got := translateModelForBedrock("custom-model"); got != "custom-model" {
		t.Errorf("unexpected translation: %s", got)
	}
}
