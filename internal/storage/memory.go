package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"claims-orchestrator/internal/domain"
	"claims-orchestrator/internal/workflow"
)

// MemoryStore is the in-process reference implementation of workflow.Store.
// Everything handed out is a copy, so callers can't mutate stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	claims   map[string]domain.Claim
	states   map[string]*domain.WorkflowState
	queue    map[string]domain.ReviewQueueItem
	resolved map[string]string
	audits   []domain.ReviewAuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims:   make(map[string]domain.Claim),
		states:   make(map[string]*domain.WorkflowState),
		queue:    make(map[string]domain.ReviewQueueItem),
		resolved: make(map[string]string),
	}
}

func cloneClaim(c domain.Claim) domain.Claim {
	out := c
	if c.Analysis != nil {
		analysis := *c.Analysis
		out.Analysis = &analysis
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	out.Submission.Documents = append([]string(nil), c.Submission.Documents...)
	return out
}

func (s *MemoryStore) CreateClaim(_ context.Context, claim domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[claim.ClaimID] = cloneClaim(claim)
	return nil
}

func (s *MemoryStore) GetClaim(_ context.Context, claimID string) (domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[claimID]
	if !ok {
		return domain.Claim{}, workflow.ErrClaimNotFound
	}
	return cloneClaim(claim), nil
}

func (s *MemoryStore) ListClaims(_ context.Context) ([]domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Claim, 0, len(s.claims))
	for _, claim := range s.claims {
		out = append(out, cloneClaim(claim))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateClaimStatus(_ context.Context, claimID string, status domain.ClaimStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[claimID]
	if !ok {
		return workflow.ErrClaimNotFound
	}
	claim.Status = status
	claim.UpdatedAt = time.Now()
	s.claims[claimID] = claim
	return nil
}

func (s *MemoryStore) SetClaimMetadata(_ context.Context, claimID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[claimID]
	if !ok {
		return workflow.ErrClaimNotFound
	}
	if claim.Metadata == nil {
		claim.Metadata = make(map[string]any)
	}
	claim.Metadata[key] = value
	claim.UpdatedAt = time.Now()
	s.claims[claimID] = claim
	return nil
}

func (s *MemoryStore) SaveAnalysis(_ context.Context, claimID string, analysis domain.ClaimAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[claimID]
	if !ok {
		return workflow.ErrClaimNotFound
	}
	claim.Analysis = &analysis
	claim.UpdatedAt = time.Now()
	s.claims[claimID] = claim
	return nil
}

func (s *MemoryStore) SaveWorkflowState(_ context.Context, state *domain.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ClaimID] = state.Clone()
	return nil
}

func (s *MemoryStore) GetWorkflowState(_ context.Context, claimID string) (*domain.WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[claimID]
	if !ok {
		return nil, workflow.ErrClaimNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryStore) QueueReview(_ context.Context, item domain.ReviewQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[item.ClaimID] = item
	return nil
}

func (s *MemoryStore) ResolveReview(_ context.Context, claimID, resolution string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queue, claimID)
	s.resolved[claimID] = resolution
	return nil
}

// ListPendingReviews returns the open queue, high priority first, oldest
// first within a priority.
func (s *MemoryStore) ListPendingReviews(_ context.Context) ([]domain.ReviewQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ReviewQueueItem, 0, len(s.queue))
	for _, item := range s.queue {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority == "high"
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) AppendReviewAudit(_ context.Context, entry domain.ReviewAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, entry)
	return nil
}

// ReviewAudit returns the audit trail for one claim, oldest first.
func (s *MemoryStore) ReviewAudit(_ context.Context, claimID string) ([]domain.ReviewAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ReviewAuditEntry, 0)
	for _, entry := range s.audits {
		if entry.ClaimID == claimID {
			out = append(out, entry)
		}
	}
	return out, nil
}
