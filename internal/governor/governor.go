package governor

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackms/aistack-sub001/pkg/models"
)

// Governor monitors per-agent resource consumption against configured
// thresholds. Record calls only increment counters; phase transitions
// happen in EvaluateAgent and in the periodic background check, which
// is safe to run concurrently with in-flight record calls.
type Governor struct {
	cfg Config

	mu           sync.RWMutex
	agents       map[string]*AgentMetrics
	pauseSignals map[string]chan struct{}
	deliverables map[string][]*Deliverable
	events       []*ExhaustionEvent

	store Store

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a resource governor. A nil store keeps it memory-only.
func New(cfg Config, store Store) *Governor {
	return &Governor{
		cfg:          cfg,
		agents:       make(map[string]*AgentMetrics),
		pauseSignals: make(map[string]chan struct{}),
		deliverables: make(map[string][]*Deliverable),
		store:        store,
	}
}

// Config returns the governor configuration.
func (g *Governor) Config() Config {
	return g.cfg
}

// InitAgent begins tracking an agent. Re-initializing a tracked agent
// is a no-op returning the existing record.
func (g *Governor) InitAgent(agentID string, agentType models.AgentType) *AgentMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()

	if m, ok := g.agents[agentID]; ok {
		return m
	}

	now := time.Now()
	m := &AgentMetrics{
		AgentID:           agentID,
		AgentType:         agentType,
		StartedAt:         now,
		LastDeliverableAt: now,
		LastActivityAt:    now,
		Phase:             PhaseNormal,
	}
	g.agents[agentID] = m
	g.persistLocked(m)
	return m
}

// getLocked returns a tracked agent, lazily reloading from the store on
// a cache miss. Caller must hold the write lock.
func (g *Governor) getLocked(agentID string) (*AgentMetrics, error) {
	if m, ok := g.agents[agentID]; ok {
		return m, nil
	}
	if g.store != nil {
		m, err := g.store.GetAgentMetrics(agentID)
		if err != nil {
			return nil, fmt.Errorf("load metrics for agent %s: %w", agentID, err)
		}
		if m != nil {
			g.agents[agentID] = m
			return m, nil
		}
	}
	return nil, fmt.Errorf("agent %s is not tracked", agentID)
}

// Metrics returns a copy of an agent's current metrics.
func (g *Governor) Metrics(agentID string) (AgentMetrics, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := g.getLocked(agentID)
	if err != nil {
		return AgentMetrics{}, err
	}
	return *m, nil
}

// RecordFileOperation records one file access. It does not evaluate phase.
func (g *Governor) RecordFileOperation(agentID string, op FileOperation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := g.getLocked(agentID)
	if err != nil {
		return err
	}
	switch op {
	case FileOpWrite:
		m.FilesWritten++
	case FileOpModify:
		m.FilesModified++
	default:
		m.FilesRead++
	}
	m.LastActivityAt = time.Now()
	g.persistLocked(m)
	return nil
}

// RecordApiCall records one API call and any tokens it consumed.
// It does not evaluate phase.
func (g *Governor) RecordApiCall(agentID string, tokens int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := g.getLocked(agentID)
	if err != nil {
		return err
	}
	m.ApiCalls++
	m.TokensConsumed += tokens
	m.LastActivityAt = time.Now()
	g.persistLocked(m)
	return nil
}

// RecordSubtaskSpawn records one spawned subtask. It does not evaluate phase.
func (g *Governor) RecordSubtaskSpawn(agentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := g.getLocked(agentID)
	if err != nil {
		return err
	}
	m.SubtasksSpawned++
	m.LastActivityAt = time.Now()
	g.persistLocked(m)
	return nil
}

// RecordDeliverable marks that the agent produced something, resetting
// the idle-time clock. Evidence of progress clears a soft warning but
// not a hard intervention: the phase demotes warning -> normal only.
func (g *Governor) RecordDeliverable(agentID, deliverableType, description string, artifacts ...string) (*Deliverable, error) {
	g.mu.Lock()
	m, err := g.getLocked(agentID)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}

	now := time.Now()
	m.LastDeliverableAt = now
	m.LastActivityAt = now
	if m.Phase == PhaseWarning {
		m.Phase = PhaseNormal
	}

	d := &Deliverable{
		ID:          uuid.New().String(),
		AgentID:     agentID,
		Type:        deliverableType,
		Description: description,
		Artifacts:   artifacts,
		Timestamp:   now,
	}
	g.deliverables[agentID] = append(g.deliverablesLocked(agentID), d)
	g.persistLocked(m)
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.AppendDeliverable(d); err != nil {
			log.Printf("[governor] persist deliverable for agent %s: %v", agentID, err)
		}
	}
	return d, nil
}

// Deliverables returns the deliverable checkpoints recorded for an
// agent, including history persisted by earlier processes.
func (g *Governor) Deliverables(agentID string) []*Deliverable {
	g.mu.Lock()
	defer g.mu.Unlock()

	list := g.deliverablesLocked(agentID)
	out := make([]*Deliverable, len(list))
	copy(out, list)
	return out
}

// deliverablesLocked returns an agent's deliverable history, lazily
// loading it from the store on a cache miss. Caller must hold the
// write lock.
func (g *Governor) deliverablesLocked(agentID string) []*Deliverable {
	if list, ok := g.deliverables[agentID]; ok {
		return list
	}
	if g.store != nil {
		loaded, err := g.store.ListDeliverables(agentID)
		if err != nil {
			log.Printf("[governor] load deliverables for agent %s: %v", agentID, err)
		} else if len(loaded) > 0 {
			g.deliverables[agentID] = loaded
			return loaded
		}
	}
	return nil
}

// breach describes one threshold's usage ratio.
type breach struct {
	threshold string
	ratio     float64
}

// usageRatios computes the usage/limit ratio for every configured
// threshold. Limits of zero are unenforced.
func (g *Governor) usageRatios(m *AgentMetrics) []breach {
	t := g.cfg.Thresholds
	var out []breach
	if t.MaxFilesAccessed > 0 {
		out = append(out, breach{"max_files_accessed", float64(m.FilesAccessed()) / float64(t.MaxFilesAccessed)})
	}
	if t.MaxApiCalls > 0 {
		out = append(out, breach{"max_api_calls", float64(m.ApiCalls) / float64(t.MaxApiCalls)})
	}
	if t.MaxSubtasks > 0 {
		out = append(out, breach{"max_subtasks", float64(m.SubtasksSpawned) / float64(t.MaxSubtasks)})
	}
	if t.MaxTokens > 0 {
		out = append(out, breach{"max_tokens", float64(m.TokensConsumed) / float64(t.MaxTokens)})
	}
	if t.MaxTimeWithoutDeliverable > 0 {
		idle := time.Since(m.LastDeliverableAt)
		out = append(out, breach{"max_time_without_deliverable", float64(idle) / float64(t.MaxTimeWithoutDeliverable)})
	}
	return out
}

// EvaluateAgent recomputes an agent's phase from its usage ratios.
// Any ratio at or above 1.0 moves the agent to intervention; otherwise
// any ratio at or above the warning fraction moves it to warning.
// Evaluation never demotes: an agent already at intervention stays
// there, and termination is never entered here unless AutoTerminate is
// set, in which case a hard breach terminates the agent immediately
// after the intervention is recorded.
func (g *Governor) EvaluateAgent(agentID string) (Phase, error) {
	if !g.cfg.Enabled {
		g.mu.RLock()
		defer g.mu.RUnlock()
		if m, ok := g.agents[agentID]; ok {
			return m.Phase, nil
		}
		return "", fmt.Errorf("agent %s is not tracked", agentID)
	}

	g.mu.Lock()
	m, err := g.getLocked(agentID)
	if err != nil {
		g.mu.Unlock()
		return "", err
	}

	if m.Phase == PhaseTermination {
		g.mu.Unlock()
		return PhaseTermination, nil
	}

	var hard, soft *breach
	for _, b := range g.usageRatios(m) {
		b := b
		if b.ratio >= 1.0 && hard == nil {
			hard = &b
		} else if b.ratio >= g.cfg.warningFraction() && soft == nil {
			soft = &b
		}
	}

	var pauseReason, terminateReason string
	switch {
	case hard != nil && m.Phase.rank() < PhaseIntervention.rank():
		m.Phase = PhaseIntervention
		g.recordEventLocked(m, PhaseIntervention, "intervened", hard.threshold)
		if g.cfg.PauseOnIntervention {
			pauseReason = fmt.Sprintf("threshold %s exceeded", hard.threshold)
		}
		if g.cfg.AutoTerminate {
			terminateReason = fmt.Sprintf("auto-terminate: threshold %s exceeded", hard.threshold)
		}
	case hard == nil && soft != nil && m.Phase.rank() < PhaseWarning.rank():
		m.Phase = PhaseWarning
		g.recordEventLocked(m, PhaseWarning, "warned", soft.threshold)
	}
	phase := m.Phase
	g.persistLocked(m)
	g.mu.Unlock()

	if terminateReason != "" {
		if err := g.TerminateAgent(agentID, terminateReason); err != nil {
			return phase, err
		}
		return PhaseTermination, nil
	}
	if pauseReason != "" {
		if err := g.PauseAgent(agentID, pauseReason); err != nil {
			return phase, err
		}
	}
	return phase, nil
}

// PauseAgent pauses an agent and fires any outstanding WaitForResume
// signal so a caller driving the agent stops at its next suspension
// point.
func (g *Governor) PauseAgent(agentID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := g.getLocked(agentID)
	if err != nil {
		return err
	}
	if m.Paused() {
		return nil
	}

	now := time.Now()
	m.PausedAt = &now
	m.PauseReason = reason
	if ch, ok := g.pauseSignals[agentID]; ok {
		close(ch)
	} else {
		closed := make(chan struct{})
		close(closed)
		g.pauseSignals[agentID] = closed
	}
	g.persistLocked(m)
	log.Printf("[governor] paused agent %s: %s", agentID, reason)
	return nil
}

// ResumeAgent clears pause state and demotes the phase exactly one
// level (intervention -> warning): a paused-then-resumed agent is
// watched more closely, not reset to normal. It fails if the agent is
// unknown or was not paused.
func (g *Governor) ResumeAgent(agentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := g.getLocked(agentID)
	if err != nil {
		return err
	}
	if !m.Paused() {
		return fmt.Errorf("agent %s is not paused", agentID)
	}

	m.PausedAt = nil
	m.PauseReason = ""
	switch m.Phase {
	case PhaseIntervention:
		m.Phase = PhaseWarning
	case PhaseWarning:
		m.Phase = PhaseNormal
	}
	delete(g.pauseSignals, agentID)
	g.persistLocked(m)
	log.Printf("[governor] resumed agent %s, phase now %s", agentID, m.Phase)
	return nil
}

// WaitForResume returns a one-shot signal channel for the given agent.
// The channel is closed the moment the agent is paused (or immediately
// if it already is), telling the caller's execution loop to stop at
// its next suspension point.
func (g *Governor) WaitForResume(agentID string) (<-chan struct{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := g.getLocked(agentID)
	if err != nil {
		return nil, err
	}

	ch, ok := g.pauseSignals[agentID]
	if !ok {
		ch = make(chan struct{})
		if m.Paused() {
			close(ch)
		}
		g.pauseSignals[agentID] = ch
	}
	return ch, nil
}

// TerminateAgent moves an agent to the terminal termination phase and
// logs a termination event. This is the only entry point to
// termination; the outstanding pause signal fires so execution loops
// stop promptly.
func (g *Governor) TerminateAgent(agentID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := g.getLocked(agentID)
	if err != nil {
		return err
	}
	if m.Phase == PhaseTermination {
		return fmt.Errorf("agent %s is already terminated", agentID)
	}

	m.Phase = PhaseTermination
	g.recordEventLocked(m, PhaseTermination, "terminated", "")
	if ch, ok := g.pauseSignals[agentID]; ok && !m.Paused() {
		close(ch)
	}
	g.persistLocked(m)
	log.Printf("[governor] terminated agent %s: %s", agentID, reason)
	return nil
}

// CheckAllAgents evaluates every tracked agent. A no-op when disabled.
func (g *Governor) CheckAllAgents() {
	if !g.cfg.Enabled {
		return
	}

	g.mu.RLock()
	ids := make([]string, 0, len(g.agents))
	for id := range g.agents {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	for _, id := range ids {
		if _, err := g.EvaluateAgent(id); err != nil {
			log.Printf("[governor] evaluate agent %s: %v", id, err)
		}
	}
}

// Start runs the periodic background check. Starting twice is a no-op.
func (g *Governor) Start() {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.stopCh = make(chan struct{})
	stopCh := g.stopCh
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(g.cfg.checkInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.CheckAllAgents()
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop halts the periodic background check.
func (g *Governor) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.stopCh)
	g.mu.Unlock()
	g.wg.Wait()
}

// CleanupAgent removes all in-memory and persisted state for an agent,
// including its deliverable checkpoints.
func (g *Governor) CleanupAgent(agentID string) error {
	g.mu.Lock()
	delete(g.agents, agentID)
	delete(g.pauseSignals, agentID)
	delete(g.deliverables, agentID)
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.DeleteAgentMetrics(agentID); err != nil {
			return fmt.Errorf("delete metrics for agent %s: %w", agentID, err)
		}
		if err := g.store.DeleteDeliverables(agentID); err != nil {
			return fmt.Errorf("delete deliverables for agent %s: %w", agentID, err)
		}
	}
	return nil
}

// recordEventLocked appends an exhaustion event with metric and
// threshold snapshots. Caller must hold the write lock.
func (g *Governor) recordEventLocked(m *AgentMetrics, phase Phase, action, threshold string) {
	ev := &ExhaustionEvent{
		ID:        uuid.New().String(),
		AgentID:   m.AgentID,
		AgentType: m.AgentType,
		Phase:     phase,
		Action:    action,
		Threshold: threshold,
		Metrics:   *m,
		Limits:    g.cfg.Thresholds,
		Timestamp: time.Now(),
	}
	g.events = append(g.events, ev)
	if g.store != nil {
		if err := g.store.AppendExhaustionEvent(ev); err != nil {
			log.Printf("[governor] persist exhaustion event for agent %s: %v", m.AgentID, err)
		}
	}
}

// persistLocked saves an agent's metrics, logging failures. The
// in-memory record stays authoritative for this single-writer process.
func (g *Governor) persistLocked(m *AgentMetrics) {
	if g.store == nil {
		return
	}
	if err := g.store.SaveAgentMetrics(m); err != nil {
		log.Printf("[governor] persist metrics for agent %s: %v", m.AgentID, err)
	}
}
