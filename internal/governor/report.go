package governor

import (
	"time"
)

// Report aggregates governor state for operational visibility.
type Report struct {
	// TotalAgents is the number of tracked agents.
	TotalAgents int
	// AgentsByPhase counts tracked agents per phase.
	AgentsByPhase map[Phase]int
	// PausedAgents is the number of currently paused agents.
	PausedAgents int
	// TotalEvents is the number of exhaustion events in range.
	TotalEvents int
	// Warnings counts warning transitions in range.
	Warnings int
	// Interventions counts intervention transitions in range.
	Interventions int
	// Terminations counts termination transitions in range.
	Terminations int
}

// ResourceMetrics aggregates phase counts, paused agents, and
// event-derived totals. A zero since includes all recorded events;
// otherwise only events at or after since are counted.
func (g *Governor) ResourceMetrics(since time.Time) (*Report, error) {
	report := &Report{AgentsByPhase: make(map[Phase]int)}

	g.mu.RLock()
	report.TotalAgents = len(g.agents)
	for _, m := range g.agents {
		report.AgentsByPhase[m.Phase]++
		if m.Paused() {
			report.PausedAgents++
		}
	}
	memEvents := make([]*ExhaustionEvent, len(g.events))
	copy(memEvents, g.events)
	g.mu.RUnlock()

	events := memEvents
	if g.store != nil {
		stored, err := g.store.ListExhaustionEvents(since)
		if err != nil {
			return nil, err
		}
		events = stored
	}

	for _, ev := range events {
		if !since.IsZero() && ev.Timestamp.Before(since) {
			continue
		}
		report.TotalEvents++
		switch ev.Phase {
		case PhaseWarning:
			report.Warnings++
		case PhaseIntervention:
			report.Interventions++
		case PhaseTermination:
			report.Terminations++
		}
	}
	return report, nil
}
