package agents

import (
	"context"
	"fmt"

	"claims-orchestrator/internal/domain"
)

// decisionStatusMap is the closed vocabulary the synthesis output is matched
// against. Unrecognized output maps to decision_pending rather than failing
// the workflow.
var decisionStatusMap = map[string]domain.ClaimStatus{
	domain.VerdictApproved:  domain.ClaimApproved,
	domain.VerdictPassed:    domain.ClaimApproved,
	domain.VerdictRejected:  domain.ClaimRejected,
	domain.VerdictNeedsInfo: domain.ClaimNeedsInfo,
}

// MapDecisionStatus maps a synthesis verdict word onto the claim's terminal
// status.
func MapDecisionStatus(status string) domain.ClaimStatus {
	if mapped, ok := decisionStatusMap[status]; ok {
		return mapped
	}
	return domain.ClaimDecisionPending
}

// DecisionMaker synthesizes the four analysis verdicts into a final decision.
type DecisionMaker struct {
	llm  Client
	opts Options
}

func NewDecisionMaker(llm Client, opts Options) *DecisionMaker {
	return &DecisionMaker{llm: llm, opts: opts}
}

func (d *DecisionMaker) Decide(
	ctx context.Context,
	sub domain.ClaimSubmission,
	validation, fraud, policy, documents domain.AgentResult,
) (domain.AgentResult, domain.ClaimStatus, error) {
	prompt := fmt.Sprintf(`Make final decision for this claim:

Claim Information:
- Policy: %s
- Type: %s
- Amount: $%.2f

Agent Analyses:

1. %s

2. %s

3. %s

4. %s

Respond in this format:
STATUS: [APPROVED/REJECTED/NEEDS_INFO]
CONFIDENCE: [0.0-1.0]
FINDINGS: [Your comprehensive final decision reasoning]
RECOMMENDATIONS: [Comma-separated list of next steps or actions]`,
		sub.PolicyNumber,
		sub.ClaimType,
		sub.ClaimAmount,
		formatAgentSummary("Validation", validation),
		formatAgentSummary("Fraud Detection", fraud),
		formatAgentSummary("Policy Check", policy),
		formatAgentSummary("Document Analysis", documents),
	)

	raw, err := d.llm.Complete(ctx, CompletionRequest{
		Model:        d.opts.Model,
		SystemPrompt: decisionSystem,
		UserPrompt:   prompt,
		Timeout:      d.opts.Timeout,
	})
	if err != nil {
		return domain.AgentResult{}, "", fmt.Errorf("decision maker: %w", err)
	}

	result := ParseAgentResponse("Decision Maker", raw, domain.VerdictNeedsInfo)
	claimStatus := MapDecisionStatus(result.Status)

	result.Metadata = map[string]any{
		"validation_score": validation.Confidence,
		"fraud_risk":       fraud.FraudRisk(),
		"policy_compliance": policy.Confidence,
		"document_quality": documents.Confidence,
		"final_decision":   result.Status,
	}

	return result, claimStatus, nil
}
