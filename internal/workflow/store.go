package workflow

import (
	"context"
	"errors"

	"claims-orchestrator/internal/domain"
)

// ErrClaimNotFound is returned by Store implementations for unknown claim ids.
var ErrClaimNotFound = errors.New("claim not found")

// Store is the persistence boundary injected into the Executor. The reference
// implementation is in-memory; a durable backing store only has to honor the
// same per-operation contract, keyed by claim id.
type Store interface {
	CreateClaim(ctx context.Context, claim domain.Claim) error
	GetClaim(ctx context.Context, claimID string) (domain.Claim, error)
	ListClaims(ctx context.Context) ([]domain.Claim, error)
	UpdateClaimStatus(ctx context.Context, claimID string, status domain.ClaimStatus) error
	SetClaimMetadata(ctx context.Context, claimID, key string, value any) error
	SaveAnalysis(ctx context.Context, claimID string, analysis domain.ClaimAnalysis) error

	SaveWorkflowState(ctx context.Context, state *domain.WorkflowState) error
	GetWorkflowState(ctx context.Context, claimID string) (*domain.WorkflowState, error)

	QueueReview(ctx context.Context, item domain.ReviewQueueItem) error
	ResolveReview(ctx context.Context, claimID, resolution string) error
	ListPendingReviews(ctx context.Context) ([]domain.ReviewQueueItem, error)
	AppendReviewAudit(ctx context.Context, entry domain.ReviewAuditEntry) error
}
