package workflow

import (
	"fmt"

	"claims-orchestrator/internal/domain"
)

const (
	reviewConfidenceThreshold = 0.70
	reviewFraudRiskThreshold  = 0.80
	highPriorityConfidence    = 0.50
	siuAlertThreshold         = 0.70
)

// RequiresReview applies the business rules deciding whether a claim needs a
// human before delivery. Every rule is evaluated; the boolean is true if any
// fires, and the surfaced reason comes from the first firing rule in
// priority order. A missing verdict means the rule does not fire — absence is
// not escalated, since Decide guards against producing an analysis without
// its verdicts.
func RequiresReview(analysis domain.ClaimAnalysis) (bool, string) {
	required := false
	reason := ""

	if fd := analysis.FinalDecision; fd != nil && fd.Confidence < reviewConfidenceThreshold {
		required = true
		reason = fmt.Sprintf("Low AI confidence (%.2f < %.2f)", fd.Confidence, reviewConfidenceThreshold)
	}

	if fr := analysis.FraudResult; fr != nil && fr.Status == domain.VerdictWarning {
		if risk := fr.FraudRisk(); risk >= reviewFraudRiskThreshold {
			required = true
			if reason == "" {
				reason = fmt.Sprintf("High fraud risk detected (%.2f)", risk)
			}
		}
	}

	if vr := analysis.ValidationResult; vr != nil && vr.Status == domain.VerdictFailed {
		required = true
		if reason == "" {
			reason = "Validation failed - requires manual review"
		}
	}

	return required, reason
}
