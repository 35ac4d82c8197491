package workflow

import (
	"context"
	"fmt"
	"strings"

	"claims-orchestrator/internal/domain"
)

// runDeliver renders the final artifacts and closes the workflow. Delivery is
// best-effort: artifact generation must never fail the claim, so any panic is
// absorbed into the event data and the stage still completes.
func (e *Executor) runDeliver(ctx context.Context, sub domain.ClaimSubmission, claimID string, state *domain.WorkflowState, analysis *domain.ClaimAnalysis, notify StatusFunc) {
	state.TransitionTo(domain.StageDeliver, domain.StatusInProgress)

	deliverData := map[string]any{
		"final_status": string(analysis.OverallStatus),
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				deliverData["error"] = fmt.Sprintf("artifact generation failed: %v", r)
			}
		}()
		deliverData["adjuster_brief"] = GenerateAdjusterBrief(sub, analysis)
		deliverData["claimant_message"] = GenerateClaimantMessage(sub, analysis)
		if risk := fraudRisk(analysis); risk >= siuAlertThreshold {
			deliverData["siu_alert"] = map[string]any{
				"alert":      true,
				"reason":     "High fraud risk detected",
				"risk_score": risk,
			}
		}
	}()

	state.WorkflowData["deliver"] = deliverData
	state.AddStageEvent(domain.StageDeliver, domain.StatusCompleted,
		"Delivery completed: "+string(analysis.OverallStatus),
		map[string]any{"final_status": string(analysis.OverallStatus)})

	e.setStatus(ctx, claimID, analysis.OverallStatus, notify)

	state.CurrentStage = domain.StageCompleted
	state.StageStatus = domain.StatusCompleted
	state.AddStageEvent(domain.StageCompleted, domain.StatusCompleted, "Workflow completed successfully", nil)
}

func fraudRisk(analysis *domain.ClaimAnalysis) float64 {
	if analysis == nil || analysis.FraudResult == nil {
		return 0
	}
	return analysis.FraudResult.FraudRisk()
}

// GenerateAdjusterBrief renders the internal summary for the adjuster.
func GenerateAdjusterBrief(sub domain.ClaimSubmission, analysis *domain.ClaimAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim ID: %s\n", analysis.ClaimID)
	fmt.Fprintf(&b, "Policy: %s\n", sub.PolicyNumber)
	fmt.Fprintf(&b, "Type: %s\n", strings.ToUpper(string(sub.ClaimType)))
	fmt.Fprintf(&b, "Amount: $%.2f\n\n", sub.ClaimAmount)

	b.WriteString("Analysis Summary:\n")
	fmt.Fprintf(&b, "- Validation: %s\n", upperStatusOrNA(analysis.ValidationResult))
	if analysis.FraudResult != nil {
		fmt.Fprintf(&b, "- Fraud Risk: %.2f%%\n", analysis.FraudResult.FraudRisk()*100)
	}
	fmt.Fprintf(&b, "- Policy Compliance: %s\n", upperStatusOrNA(analysis.PolicyResult))
	if analysis.DocumentResult != nil {
		fmt.Fprintf(&b, "- Document Quality: %.2f%%\n", analysis.DocumentResult.Confidence*100)
	}

	fmt.Fprintf(&b, "\nFinal Decision: %s\n", strings.ToUpper(string(analysis.OverallStatus)))
	if fd := analysis.FinalDecision; fd != nil {
		fmt.Fprintf(&b, "Confidence: %.2f%%\n", fd.Confidence*100)
		fmt.Fprintf(&b, "\nFindings:\n%s\n", fd.Findings)
		if len(fd.Recommendations) > 0 {
			b.WriteString("\nRecommendations:\n")
			for _, rec := range fd.Recommendations {
				fmt.Fprintf(&b, "- %s\n", rec)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// GenerateClaimantMessage renders the claimant-facing notice, templated by
// the claim's terminal status.
func GenerateClaimantMessage(sub domain.ClaimSubmission, analysis *domain.ClaimAnalysis) string {
	details := fmt.Sprintf(`Claim Details:
- Policy Number: %s
- Claim Type: %s
- Claim Amount: $%.2f`, sub.PolicyNumber, sub.ClaimType, sub.ClaimAmount)

	switch analysis.OverallStatus {
	case domain.ClaimApproved:
		return fmt.Sprintf(`Dear %s,

Your claim (ID: %s) has been reviewed and approved.

%s
- Incident Date: %s

Status: APPROVED

Next Steps:
- Payment processing will begin within 5-7 business days
- You will receive confirmation via email

Thank you for your patience.

Best regards,
Claims Processing Team`, sub.ClaimantName, analysis.ClaimID, details, sub.IncidentDate)

	case domain.ClaimRejected:
		reason := "Policy coverage issue"
		if analysis.FinalDecision != nil && analysis.FinalDecision.Findings != "" {
			reason = analysis.FinalDecision.Findings
		}
		return fmt.Sprintf(`Dear %s,

Your claim (ID: %s) has been reviewed.

Unfortunately, we are unable to approve this claim at this time.

%s

Status: REJECTED

Reason: %s

If you have questions or would like to appeal this decision, please contact us.

Best regards,
Claims Processing Team`, sub.ClaimantName, analysis.ClaimID, details, reason)

	default:
		return fmt.Sprintf(`Dear %s,

Your claim (ID: %s) is currently under review.

%s

Status: %s

We will notify you once the review is complete.

Best regards,
Claims Processing Team`, sub.ClaimantName, analysis.ClaimID, details, strings.ToUpper(string(analysis.OverallStatus)))
	}
}

func upperStatusOrNA(r *domain.AgentResult) string {
	if r == nil {
		return "N/A"
	}
	return strings.ToUpper(r.Status)
}
