package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"claims-orchestrator/internal/domain"
)

func TestGenerateAdjusterBrief(t *testing.T) {
	sub := testSubmission()
	analysis := analysisWith(0.88, domain.VerdictPassed, 0.12, domain.VerdictPassed)
	analysis.FinalDecision.Findings = "Consistent damage report, policy in good standing."
	analysis.FinalDecision.Recommendations = []string{"Approve standard payout"}
	analysis.DocumentResult = &domain.AgentResult{AgentName: "document_analyzer", Status: domain.VerdictPassed, Confidence: 0.91}

	brief := GenerateAdjusterBrief(sub, &analysis)
	require.Contains(t, brief, "Claim ID: CLM-TEST0001")
	require.Contains(t, brief, "Policy: "+sub.PolicyNumber)
	require.Contains(t, brief, "Type: AUTO")
	require.Contains(t, brief, "Amount: $2500.00")
	require.Contains(t, brief, "- Validation: PASSED")
	require.Contains(t, brief, "- Fraud Risk: 12.00%")
	require.Contains(t, brief, "- Document Quality: 91.00%")
	require.Contains(t, brief, "Final Decision: APPROVED")
	require.Contains(t, brief, "Confidence: 88.00%")
	require.Contains(t, brief, "- Approve standard payout")
}

func TestGenerateAdjusterBriefPartialAnalysis(t *testing.T) {
	analysis := domain.ClaimAnalysis{
		ClaimID:          "CLM-TEST0003",
		ValidationResult: &domain.AgentResult{Status: domain.VerdictFailed, Confidence: 0.2},
		OverallStatus:    domain.ClaimReviewRequired,
	}

	brief := GenerateAdjusterBrief(testSubmission(), &analysis)
	require.Contains(t, brief, "- Validation: FAILED")
	require.Contains(t, brief, "- Policy Compliance: N/A")
	require.Contains(t, brief, "Final Decision: REVIEW_REQUIRED")
	require.NotContains(t, brief, "Fraud Risk")
}

func TestGenerateClaimantMessage(t *testing.T) {
	sub := testSubmission()

	t.Run("approved", func(t *testing.T) {
		analysis := analysisWith(0.9, domain.VerdictPassed, 0.1, domain.VerdictPassed)
		msg := GenerateClaimantMessage(sub, &analysis)
		require.True(t, strings.HasPrefix(msg, "Dear Jordan Smith,"))
		require.Contains(t, msg, "Status: APPROVED")
		require.Contains(t, msg, "Payment processing will begin within 5-7 business days")
		require.Contains(t, msg, "Claims Processing Team")
	})

	t.Run("rejected carries findings as reason", func(t *testing.T) {
		analysis := analysisWith(0.9, domain.VerdictPassed, 0.1, domain.VerdictPassed)
		analysis.OverallStatus = domain.ClaimRejected
		analysis.FinalDecision.Findings = "Incident predates policy start date."
		msg := GenerateClaimantMessage(sub, &analysis)
		require.Contains(t, msg, "Status: REJECTED")
		require.Contains(t, msg, "Reason: Incident predates policy start date.")
	})

	t.Run("rejected without findings falls back", func(t *testing.T) {
		analysis := domain.ClaimAnalysis{ClaimID: "CLM-TEST0004", OverallStatus: domain.ClaimRejected}
		msg := GenerateClaimantMessage(sub, &analysis)
		require.Contains(t, msg, "Reason: Policy coverage issue")
	})

	t.Run("other statuses get the review template", func(t *testing.T) {
		analysis := domain.ClaimAnalysis{ClaimID: "CLM-TEST0005", OverallStatus: domain.ClaimNeedsInfo}
		msg := GenerateClaimantMessage(sub, &analysis)
		require.Contains(t, msg, "currently under review")
		require.Contains(t, msg, "Status: NEEDS_INFO")
	})
}
