package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"claims-orchestrator/internal/domain"
)

var (
	// ErrNotInReview is returned when a review decision targets a claim that
	// is not parked in the review stage.
	ErrNotInReview = errors.New("claim is not awaiting review")
	// ErrInvalidDecision is returned when a review decision is malformed or
	// missing the fields its action requires.
	ErrInvalidDecision = errors.New("invalid review decision")
)

// ReviewResult summarizes the outcome of one review decision.
type ReviewResult struct {
	ClaimID    string             `json:"claim_id"`
	Status     domain.ClaimStatus `json:"status"`
	Message    string             `json:"message"`
	NextStage  string             `json:"next_stage"`
	AuditLogID string             `json:"audit_log_id"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func newAuditID() string {
	return "AUDIT-" + strings.ToUpper(uuid.NewString()[:8])
}

// queueForReview places the claim on the pending-review queue. High fraud risk
// or a shaky final decision bumps the priority.
func (e *Executor) queueForReview(ctx context.Context, claimID string, sub domain.ClaimSubmission, state *domain.WorkflowState, analysis *domain.ClaimAnalysis) {
	item := domain.ReviewQueueItem{
		ClaimID:      claimID,
		Priority:     "standard",
		ReviewReason: "Manual review required",
		ClaimType:    sub.ClaimType,
		ClaimAmount:  sub.ClaimAmount,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if reason, ok := state.WorkflowData["review_reason"].(string); ok && reason != "" {
		item.ReviewReason = reason
	}
	if analysis.FinalDecision != nil {
		conf := analysis.FinalDecision.Confidence
		item.AIConfidence = &conf
		if conf < highPriorityConfidence {
			item.Priority = "high"
		}
	}
	if analysis.FraudResult != nil {
		risk := analysis.FraudResult.FraudRisk()
		item.RiskScore = &risk
		if risk >= reviewFraudRiskThreshold {
			item.Priority = "high"
		}
	}
	if err := e.store.QueueReview(ctx, item); err != nil {
		log.Printf("queue review claim_id=%s: %v", claimID, err)
	}
}

func validateDecision(decision domain.ReviewDecision) error {
	if decision.Reason == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidDecision)
	}
	switch decision.Action {
	case domain.ReviewActionApprove:
	case domain.ReviewActionModify:
		if decision.ModifiedPayout == nil || *decision.ModifiedPayout <= 0 {
			return fmt.Errorf("%w: modify requires a positive modified_payout", ErrInvalidDecision)
		}
	case domain.ReviewActionEscalate:
		if decision.EscalationReason == "" {
			return fmt.Errorf("%w: escalate requires an escalation_reason", ErrInvalidDecision)
		}
	case domain.ReviewActionRequestInfo:
		if len(decision.RequestedDocuments) == 0 {
			return fmt.Errorf("%w: request_info requires requested_documents", ErrInvalidDecision)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidDecision, decision.Action)
	}
	return nil
}

// SubmitReviewDecision applies an analyst's decision to a claim parked in the
// review stage. Approve and modify resume the pipeline through delivery,
// escalate hands the claim to a senior adjuster, and request_info sends it
// back to intake to wait for documents. Every decision leaves an audit entry.
func (e *Executor) SubmitReviewDecision(ctx context.Context, claimID string, decision domain.ReviewDecision, notify StatusFunc) (*ReviewResult, error) {
	if err := validateDecision(decision); err != nil {
		return nil, err
	}

	lock := e.lockFor(claimID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.store.GetWorkflowState(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("load workflow state: %w", err)
	}
	if state.CurrentStage != domain.StageReview || state.StageStatus != domain.StatusPending {
		return nil, fmt.Errorf("%w: claim %s is in %s/%s", ErrNotInReview, claimID, state.CurrentStage, state.StageStatus)
	}

	claim, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("load claim: %w", err)
	}
	previousStatus := claim.Status

	analysis := claim.Analysis
	if analysis == nil {
		analysis = &domain.ClaimAnalysis{ClaimID: claimID, OverallStatus: domain.ClaimReviewRequired}
	}

	decisionData := map[string]any{
		"action":  string(decision.Action),
		"reason":  decision.Reason,
		"analyst": decision.AnalystID,
	}

	var (
		message    string
		newStatus  domain.ClaimStatus
		nextStage  string
		resolution string
	)

	switch decision.Action {
	case domain.ReviewActionApprove:
		message = "Claim approved by analyst"
		newStatus = domain.ClaimApproved
		nextStage = string(domain.StageDeliver)
		resolution = "APPROVED"
		state.AddStageEvent(domain.StageReview, domain.StatusCompleted, message, decisionData)

		analysis.OverallStatus = domain.ClaimApproved
		e.saveAnalysis(ctx, claimID, analysis)
		e.resolveReview(ctx, claimID, resolution)
		e.runDeliver(ctx, claim.Submission, claimID, state, analysis, notify)

	case domain.ReviewActionModify:
		message = fmt.Sprintf("Claim modified by analyst. Payout changed to $%.2f", *decision.ModifiedPayout)
		newStatus = domain.ClaimApproved
		nextStage = string(domain.StageDeliver)
		resolution = "MODIFIED"
		decisionData["modified_payout"] = *decision.ModifiedPayout
		state.AddStageEvent(domain.StageReview, domain.StatusCompleted, message, decisionData)

		if err := e.store.SetClaimMetadata(ctx, claimID, "modified_payout", *decision.ModifiedPayout); err != nil {
			log.Printf("set modified payout claim_id=%s: %v", claimID, err)
		}
		analysis.OverallStatus = domain.ClaimApproved
		e.saveAnalysis(ctx, claimID, analysis)
		e.resolveReview(ctx, claimID, resolution)
		e.runDeliver(ctx, claim.Submission, claimID, state, analysis, notify)

	case domain.ReviewActionEscalate:
		message = "Claim escalated to senior adjuster: " + decision.EscalationReason
		newStatus = domain.ClaimEscalated
		nextStage = "senior_review"
		resolution = "ESCALATED"
		decisionData["escalation_reason"] = decision.EscalationReason
		// The claim stays in the review stage; only its pending-decision
		// status is cleared so the sweeper and queue stop tracking it.
		state.StageStatus = domain.StatusCompleted
		state.AddStageEvent(domain.StageReview, domain.StatusCompleted, message, decisionData)

		e.setStatus(ctx, claimID, domain.ClaimEscalated, notify)
		e.resolveReview(ctx, claimID, resolution)

	case domain.ReviewActionRequestInfo:
		message = "Additional information requested: " + strings.Join(decision.RequestedDocuments, ", ")
		newStatus = domain.ClaimNeedsInfo
		nextStage = string(domain.StageIntake)
		resolution = "INFO_REQUESTED"
		decisionData["requested_documents"] = decision.RequestedDocuments
		state.AddStageEvent(domain.StageReview, domain.StatusCompleted, message, decisionData)
		state.TransitionTo(domain.StageIntake, domain.StatusPending)

		if err := e.store.SetClaimMetadata(ctx, claimID, "requested_documents", decision.RequestedDocuments); err != nil {
			log.Printf("set requested documents claim_id=%s: %v", claimID, err)
		}
		e.setStatus(ctx, claimID, domain.ClaimNeedsInfo, notify)
		e.resolveReview(ctx, claimID, resolution)
	}

	if err := e.store.SaveWorkflowState(ctx, state); err != nil {
		return nil, fmt.Errorf("save workflow state: %w", err)
	}

	entry := domain.ReviewAuditEntry{
		AuditLogID:         newAuditID(),
		ClaimID:            claimID,
		Timestamp:          time.Now(),
		Action:             decision.Action,
		AnalystID:          decision.AnalystID,
		Reason:             decision.Reason,
		ModifiedPayout:     decision.ModifiedPayout,
		EscalationReason:   decision.EscalationReason,
		RequestedDocuments: decision.RequestedDocuments,
		PreviousStatus:     previousStatus,
		NewStatus:          newStatus,
		NextStage:          nextStage,
	}
	if err := e.store.AppendReviewAudit(ctx, entry); err != nil {
		log.Printf("append review audit claim_id=%s: %v", claimID, err)
	}

	return &ReviewResult{
		ClaimID:    claimID,
		Status:     newStatus,
		Message:    message,
		NextStage:  nextStage,
		AuditLogID: entry.AuditLogID,
		UpdatedAt:  state.LastUpdated,
	}, nil
}

func (e *Executor) resolveReview(ctx context.Context, claimID, resolution string) {
	if err := e.store.ResolveReview(ctx, claimID, resolution); err != nil {
		log.Printf("resolve review claim_id=%s resolution=%s: %v", claimID, resolution, err)
	}
}

// ListPendingReviews returns the open review queue.
func (e *Executor) ListPendingReviews(ctx context.Context) ([]domain.ReviewQueueItem, error) {
	return e.store.ListPendingReviews(ctx)
}
