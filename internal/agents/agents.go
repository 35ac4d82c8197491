package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"claims-orchestrator/internal/domain"
)

// Options shared by the LLM-backed agents.
type Options struct {
	Model   string
	Timeout time.Duration
}

// Validator checks claim completeness and data integrity (the Understand
// stage collaborator).
type Validator struct {
	llm  Client
	opts Options
}

func NewValidator(llm Client, opts Options) *Validator {
	return &Validator{llm: llm, opts: opts}
}

func (v *Validator) Analyze(ctx context.Context, sub domain.ClaimSubmission) (domain.AgentResult, error) {
	prompt := buildClaimPrompt(
		"Validate this claim:",
		sub,
		"",
		"PASSED/FAILED/WARNING",
		"",
		"Your detailed analysis",
		"recommendations",
	)
	raw, err := v.llm.Complete(ctx, CompletionRequest{
		Model:        v.opts.Model,
		SystemPrompt: validatorSystem,
		UserPrompt:   prompt,
		Timeout:      v.opts.Timeout,
	})
	if err != nil {
		return domain.AgentResult{}, fmt.Errorf("claim validator: %w", err)
	}
	return ParseAgentResponse("Claim Validator", raw, domain.VerdictWarning), nil
}

// FraudDetector scores fraud risk, informed by similar historical claims.
type FraudDetector struct {
	llm  Client
	opts Options
}

func NewFraudDetector(llm Client, opts Options) *FraudDetector {
	return &FraudDetector{llm: llm, opts: opts}
}

func (f *FraudDetector) Analyze(ctx context.Context, sub domain.ClaimSubmission, similar []domain.SimilarClaim) (domain.AgentResult, error) {
	prompt := buildClaimPrompt(
		"Analyze this claim for fraud indicators:",
		sub,
		"\n"+formatSimilarClaims(similar)+"\n",
		"PASSED/FAILED/WARNING",
		" (fraud risk score)",
		"Your detailed fraud analysis",
		"actions to take",
	)
	raw, err := f.llm.Complete(ctx, CompletionRequest{
		Model:        f.opts.Model,
		SystemPrompt: fraudSystem,
		UserPrompt:   prompt,
		Timeout:      f.opts.Timeout,
	})
	if err != nil {
		return domain.AgentResult{}, fmt.Errorf("fraud detector: %w", err)
	}
	result := ParseAgentResponse("Fraud Detector", raw, domain.VerdictWarning)
	// For the fraud agent the confidence line is the risk score itself.
	result.Metadata = map[string]any{"fraud_risk": result.Confidence}
	return result, nil
}

// PolicyChecker verifies coverage against the policy terms.
type PolicyChecker struct {
	llm  Client
	opts Options
}

func NewPolicyChecker(llm Client, opts Options) *PolicyChecker {
	return &PolicyChecker{llm: llm, opts: opts}
}

func (p *PolicyChecker) Analyze(ctx context.Context, sub domain.ClaimSubmission) (domain.AgentResult, error) {
	prompt := buildClaimPrompt(
		"Verify policy coverage for this claim:",
		sub,
		"",
		"PASSED/FAILED/WARNING",
		"",
		"Your coverage analysis citing relevant terms",
		"recommendations",
	)
	raw, err := p.llm.Complete(ctx, CompletionRequest{
		Model:        p.opts.Model,
		SystemPrompt: policySystem,
		UserPrompt:   prompt,
		Timeout:      p.opts.Timeout,
	})
	if err != nil {
		return domain.AgentResult{}, fmt.Errorf("policy checker: %w", err)
	}
	return ParseAgentResponse("Policy Checker", raw, domain.VerdictWarning), nil
}

// DocumentAnalyzer assesses supporting documents.
type DocumentAnalyzer struct {
	llm  Client
	opts Options
}

func NewDocumentAnalyzer(llm Client, opts Options) *DocumentAnalyzer {
	return &DocumentAnalyzer{llm: llm, opts: opts}
}

func (d *DocumentAnalyzer) Analyze(ctx context.Context, sub domain.ClaimSubmission) (domain.AgentResult, error) {
	extra := ""
	if len(sub.Documents) > 0 {
		extra = "\nDocument names: " + strings.Join(sub.Documents, ", ") + "\n"
	}
	prompt := buildClaimPrompt(
		"Analyze the supporting documents for this claim:",
		sub,
		extra,
		"PASSED/FAILED/WARNING",
		"",
		"Your document quality assessment",
		"missing or additional documents to request",
	)
	raw, err := d.llm.Complete(ctx, CompletionRequest{
		Model:        d.opts.Model,
		SystemPrompt: documentSystem,
		UserPrompt:   prompt,
		Timeout:      d.opts.Timeout,
	})
	if err != nil {
		return domain.AgentResult{}, fmt.Errorf("document analyzer: %w", err)
	}
	return ParseAgentResponse("Document Analyzer", raw, domain.VerdictWarning), nil
}
