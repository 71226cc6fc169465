package consensus

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackms/aistack-sub001/pkg/models"
)

// Service manages the approval lifecycle for risky subtask creation.
// Checkpoint state is owned exclusively by the service instance; the
// store is the serialization boundary for surviving restarts and is
// assumed single-writer.
type Service struct {
	cfg Config

	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
	events      map[string][]*Event

	store Store
	tasks TaskResolver
}

// NewService creates a consensus service. Both store and tasks may be
// nil; a nil store keeps the service memory-only and a nil resolver
// makes every task look like a root task.
func NewService(cfg Config, store Store, tasks TaskResolver) *Service {
	return &Service{
		cfg:         cfg,
		checkpoints: make(map[string]*Checkpoint),
		events:      make(map[string][]*Event),
		store:       store,
		tasks:       tasks,
	}
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// CreateCheckpointParams are the inputs to CreateCheckpoint.
type CreateCheckpointParams struct {
	// TaskID is the task proposing the subtasks.
	TaskID string
	// ParentTaskID is the parent of TaskID, if any.
	ParentTaskID string
	// ProposedSubtasks lists the subtasks awaiting approval.
	ProposedSubtasks []ProposedSubtask
	// RiskLevel is the overall risk level for the proposal.
	RiskLevel models.RiskLevel
}

// CreateCheckpoint creates a pending checkpoint expiring after the
// configured timeout.
func (s *Service) CreateCheckpoint(params CreateCheckpointParams) (*Checkpoint, error) {
	if !s.cfg.Enabled {
		return nil, fmt.Errorf("consensus service is not enabled")
	}
	if params.TaskID == "" {
		return nil, fmt.Errorf("task ID is required")
	}

	now := time.Now()
	cp := &Checkpoint{
		ID:               uuid.New().String(),
		TaskID:           params.TaskID,
		ParentTaskID:     params.ParentTaskID,
		ProposedSubtasks: params.ProposedSubtasks,
		RiskLevel:        params.RiskLevel,
		Status:           StatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.checkpointTimeout()),
	}

	s.mu.Lock()
	s.checkpoints[cp.ID] = cp
	s.mu.Unlock()

	s.appendEvent(cp.ID, EventCreated, "", "")
	s.persist(cp)
	return cp, nil
}

// GetCheckpoint returns a checkpoint by ID, lazily reloading it from
// the store on a cache miss so a cold-started process can keep serving
// decisions.
func (s *Service) GetCheckpoint(id string) (*Checkpoint, error) {
	s.mu.RLock()
	cp, ok := s.checkpoints[id]
	s.mu.RUnlock()
	if ok {
		return cp, nil
	}

	if s.store != nil {
		loaded, err := s.store.GetCheckpoint(id)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
		}
		if loaded != nil {
			s.mu.Lock()
			s.checkpoints[id] = loaded
			s.mu.Unlock()
			return loaded, nil
		}
	}
	return nil, fmt.Errorf("checkpoint %s not found", id)
}

// ApproveCheckpoint records an approval decision for a pending checkpoint.
func (s *Service) ApproveCheckpoint(id, decidedBy, feedback string) error {
	return s.decide(id, decidedBy, feedback, true, nil)
}

// RejectCheckpoint records a rejection decision for a pending checkpoint.
func (s *Service) RejectCheckpoint(id, decidedBy, feedback string) error {
	return s.decide(id, decidedBy, feedback, false, nil)
}

// SubmitDecision records a decision that may approve the checkpoint
// overall while rejecting a named subset of its subtasks.
func (s *Service) SubmitDecision(id string, approve bool, decidedBy, feedback string, rejectedSubtaskIDs []string) error {
	return s.decide(id, decidedBy, feedback, approve, rejectedSubtaskIDs)
}

// decide applies a decision, enforcing the pending-only invariant.
func (s *Service) decide(id, decidedBy, feedback string, approve bool, rejectedSubtaskIDs []string) error {
	cp, err := s.GetCheckpoint(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if cp.Status.Terminal() {
		status := cp.Status
		s.mu.Unlock()
		return fmt.Errorf("Checkpoint is already %s", status)
	}

	now := time.Now()
	cp.DecidedAt = &now
	cp.DecidedBy = decidedBy
	cp.Feedback = feedback
	if approve {
		cp.Status = StatusApproved
		cp.RejectedSubtasks = rejectedSubtaskIDs
	} else {
		cp.Status = StatusRejected
	}
	s.mu.Unlock()

	eventType := EventApproved
	if !approve {
		eventType = EventRejected
	}
	s.appendEvent(cp.ID, eventType, decidedBy, feedback)
	s.persist(cp)
	return nil
}

// ApprovedSubtasks returns the proposed subtasks that survived the
// decision: all of them minus any individually rejected, or none at
// all if the checkpoint itself was rejected.
func (s *Service) ApprovedSubtasks(id string) ([]ProposedSubtask, error) {
	cp, err := s.GetCheckpoint(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if cp.Status != StatusApproved {
		return nil, nil
	}

	rejected := make(map[string]bool, len(cp.RejectedSubtasks))
	for _, sid := range cp.RejectedSubtasks {
		rejected[sid] = true
	}

	approved := make([]ProposedSubtask, 0, len(cp.ProposedSubtasks))
	for _, st := range cp.ProposedSubtasks {
		if !rejected[st.ID] {
			approved = append(approved, st)
		}
	}
	return approved, nil
}

// ListPendingCheckpoints returns pending checkpoints ordered by
// creation time, applying limit and offset. A limit of 0 means no limit.
func (s *Service) ListPendingCheckpoints(limit, offset int) []*Checkpoint {
	pending := s.pendingCheckpoints()

	if offset >= len(pending) {
		return nil
	}
	pending = pending[offset:]
	if limit > 0 && limit < len(pending) {
		pending = pending[:limit]
	}
	return pending
}

// CountPendingCheckpoints returns the number of pending checkpoints.
func (s *Service) CountPendingCheckpoints() int {
	return len(s.pendingCheckpoints())
}

// pendingCheckpoints returns pending checkpoints ordered by creation time.
func (s *Service) pendingCheckpoints() []*Checkpoint {
	s.loadPendingFromStore()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*Checkpoint
	for _, cp := range s.checkpoints {
		if cp.Status == StatusPending {
			pending = append(pending, cp)
		}
	}
	// Insertion sort by CreatedAt; checkpoint counts are small.
	for i := 1; i < len(pending); i++ {
		for j := i; j > 0 && pending[j].CreatedAt.Before(pending[j-1].CreatedAt); j-- {
			pending[j], pending[j-1] = pending[j-1], pending[j]
		}
	}
	return pending
}

// loadPendingFromStore merges pending checkpoints from the store into
// the in-memory cache, so a cold-started process sees checkpoints
// created by earlier invocations. In-memory entries stay authoritative.
func (s *Service) loadPendingFromStore() {
	if s.store == nil {
		return
	}
	loaded, err := s.store.ListCheckpointsByStatus(StatusPending)
	if err != nil {
		log.Printf("[consensus] load pending checkpoints: %v", err)
		return
	}

	s.mu.Lock()
	for _, cp := range loaded {
		if _, ok := s.checkpoints[cp.ID]; !ok {
			s.checkpoints[cp.ID] = cp
		}
	}
	s.mu.Unlock()
}

// ExpireCheckpoints marks pending checkpoints past their deadline as
// expired and returns how many were expired.
func (s *Service) ExpireCheckpoints() int {
	s.loadPendingFromStore()
	now := time.Now()

	s.mu.Lock()
	var expired []*Checkpoint
	for _, cp := range s.checkpoints {
		if cp.Status == StatusPending && now.After(cp.ExpiresAt) {
			cp.Status = StatusExpired
			expired = append(expired, cp)
		}
	}
	s.mu.Unlock()

	for _, cp := range expired {
		s.appendEvent(cp.ID, EventExpired, "", "")
		s.persist(cp)
	}
	return len(expired)
}

// CheckpointEvents returns a checkpoint's audit trail in order,
// falling back to the store when the trail is not in memory.
func (s *Service) CheckpointEvents(id string) ([]*Event, error) {
	s.mu.RLock()
	events, ok := s.events[id]
	s.mu.RUnlock()
	if ok {
		out := make([]*Event, len(events))
		copy(out, events)
		return out, nil
	}

	if s.store != nil {
		loaded, err := s.store.ListCheckpointEvents(id)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint events %s: %w", id, err)
		}
		return loaded, nil
	}
	return nil, nil
}

// appendEvent records an audit event in memory and in the store.
func (s *Service) appendEvent(checkpointID string, eventType EventType, actor, feedback string) {
	ev := &Event{
		ID:           uuid.New().String(),
		CheckpointID: checkpointID,
		Type:         eventType,
		Actor:        actor,
		Feedback:     feedback,
		Timestamp:    time.Now(),
	}

	s.mu.Lock()
	s.events[checkpointID] = append(s.events[checkpointID], ev)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.AppendCheckpointEvent(ev); err != nil {
			log.Printf("[consensus] persist event for checkpoint %s: %v", checkpointID, err)
		}
	}
}

// persist writes a checkpoint to the store, logging failures. The
// in-memory copy stays authoritative for this single-writer process.
func (s *Service) persist(cp *Checkpoint) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveCheckpoint(cp); err != nil {
		log.Printf("[consensus] persist checkpoint %s: %v", cp.ID, err)
	}
}
