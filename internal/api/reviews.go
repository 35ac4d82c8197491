package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"claims-orchestrator/internal/domain"
	"claims-orchestrator/internal/workflow"
)

type reviewFlag struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func (h *Handler) PendingReviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.executor.ListPendingReviews(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch pending reviews"})
		return
	}

	if priority := r.URL.Query().Get("priority"); priority != "" {
		filtered := make([]domain.ReviewQueueItem, 0, len(items))
		for _, item := range items {
			if item.Priority == priority {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// ReviewDetail returns everything an analyst needs to decide a claim: the
// submission, the AI recommendation, risk flags, and the per-agent verdicts.
func (h *Handler) ReviewDetail(w http.ResponseWriter, r *http.Request, claimID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	claim, err := h.store.GetClaim(ctx, claimID)
	if err != nil {
		h.writeClaimError(w, err, "failed to fetch claim")
		return
	}
	if claim.Status != domain.ClaimReviewRequired {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": fmt.Sprintf("claim is not awaiting review (status: %s)", claim.Status),
		})
		return
	}

	analysis := claim.Analysis
	flags := buildReviewFlags(analysis)

	aiRecommendation := map[string]any{}
	if analysis != nil && analysis.FinalDecision != nil {
		aiRecommendation = map[string]any{
			"status":          analysis.FinalDecision.Status,
			"confidence":      analysis.FinalDecision.Confidence,
			"findings":        analysis.FinalDecision.Findings,
			"recommendations": analysis.FinalDecision.Recommendations,
		}
		if analysis.FraudResult != nil {
			aiRecommendation["risk_score"] = analysis.FraudResult.FraudRisk()
		}
	}

	extractedFacts := map[string]any{}
	if analysis != nil {
		extractedFacts = map[string]any{
			"validation": analysis.ValidationResult,
			"fraud":      analysis.FraudResult,
			"policy":     analysis.PolicyResult,
			"documents":  analysis.DocumentResult,
		}
	}

	reviewReason := ""
	if state, err := h.executor.GetWorkflowState(ctx, claimID); err == nil {
		if reason, ok := state.WorkflowData["review_reason"].(string); ok {
			reviewReason = reason
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id":          claimID,
		"claim_summary":     claim.Submission,
		"created_at":        claim.CreatedAt,
		"updated_at":        claim.UpdatedAt,
		"ai_recommendation": aiRecommendation,
		"flags":             flags,
		"extracted_facts":   extractedFacts,
		"requires_review":   true,
		"review_reason":     reviewReason,
		"analysis":          analysis,
	})
}

func buildReviewFlags(analysis *domain.ClaimAnalysis) []reviewFlag {
	flags := make([]reviewFlag, 0)
	if analysis == nil {
		return flags
	}
	if vr := analysis.ValidationResult; vr != nil && vr.Status == domain.VerdictFailed {
		flags = append(flags, reviewFlag{
			Type:     "validation_failed",
			Severity: "high",
			Message:  "Claim validation failed",
		})
	}
	if fr := analysis.FraudResult; fr != nil && fr.Status == domain.VerdictWarning {
		risk := fr.FraudRisk()
		severity := "medium"
		if risk >= 0.8 {
			severity = "high"
		}
		flags = append(flags, reviewFlag{
			Type:     "fraud_risk",
			Severity: severity,
			Message:  fmt.Sprintf("Fraud risk detected: %.2f", risk),
		})
	}
	if fd := analysis.FinalDecision; fd != nil && fd.Confidence < 0.7 {
		flags = append(flags, reviewFlag{
			Type:     "low_confidence",
			Severity: "medium",
			Message:  fmt.Sprintf("Low AI confidence: %.2f", fd.Confidence),
		})
	}
	return flags
}

func (h *Handler) SubmitReviewDecision(w http.ResponseWriter, r *http.Request, claimID string) {
	var decision domain.ReviewDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	result, err := h.executor.SubmitReviewDecision(r.Context(), claimID, decision, func(status domain.ClaimStatus) {
		log.Printf("[%s] status updated to: %s", claimID, status)
	})
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrInvalidDecision):
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		case errors.Is(err, workflow.ErrNotInReview):
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		case errors.Is(err, workflow.ErrClaimNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "claim not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to apply review decision"})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
