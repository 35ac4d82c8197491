package agents

import (
	"fmt"
	"strings"

	"claims-orchestrator/internal/domain"
)

const responseFormat = `Respond in this format:
STATUS: [%s]
CONFIDENCE: [0.0-1.0]%s
FINDINGS: [%s]
RECOMMENDATIONS: [Comma-separated list of %s]`

const validatorSystem = `You are a claims validation expert. Analyze the claim submission for:
1. Completeness of required information
2. Data format correctness
3. Reasonable claim amount for the incident type
4. Incident date validity

Provide a confidence score (0-1) and specific findings.`

const fraudSystem = `You are a fraud detection specialist for insurance claims. Analyze for:
1. Suspicious patterns or inconsistencies
2. Unusually high claim amounts
3. Vague or generic descriptions
4. Red flags in timing or circumstances
5. Similarities with known fraudulent claims

Provide a risk score (0-1, where 1 is highest fraud risk).`

const policySystem = `You are a policy verification specialist. Check the claim against policy terms:
1. Coverage applicability for the claim type
2. Claim amount within coverage limits
3. Incident within the policy period
4. Exclusions that may apply

Provide a confidence score (0-1) and cite the relevant terms in your findings.`

const documentSystem = `You are a document analysis specialist for insurance claims. Assess the supporting documents:
1. Presence of expected document types for this claim type
2. Consistency between documents and the claim description
3. Signs of tampering or missing evidence

Provide a confidence score (0-1) reflecting document quality and completeness.`

const decisionSystem = `You are the final decision maker for insurance claims. Based on all agent analyses, make a final decision.

Decision Guidelines:
- APPROVE: All checks passed with high confidence
- REJECT: Critical failures or high fraud risk
- NEEDS_INFO: Missing documents or information

Consider all factors holistically and provide clear reasoning.`

const claimUserTemplate = `{{TASK}}

Policy Number: {{POLICY_NUMBER}}
Claim Type: {{CLAIM_TYPE}}
Claim Amount: ${{CLAIM_AMOUNT}}
Incident Date: {{INCIDENT_DATE}}
Description: {{DESCRIPTION}}
Claimant: {{CLAIMANT_NAME}}
Documents: {{DOCUMENT_COUNT}} files
{{EXTRA}}
{{RESPONSE_FORMAT}}`

func RenderTemplate(tpl string, vars map[string]string) string {
	rendered := tpl
	for k, v := range vars {
		rendered = strings.ReplaceAll(rendered, "{{"+k+"}}", v)
	}
	return rendered
}

func buildClaimPrompt(task string, sub domain.ClaimSubmission, extra, statusVocab, confidenceNote, findingsHint, recommendationsHint string) string {
	format := fmt.Sprintf(responseFormat, statusVocab, confidenceNote, findingsHint, recommendationsHint)
	return RenderTemplate(claimUserTemplate, map[string]string{
		"TASK":            task,
		"POLICY_NUMBER":   sub.PolicyNumber,
		"CLAIM_TYPE":      string(sub.ClaimType),
		"CLAIM_AMOUNT":    fmt.Sprintf("%.2f", sub.ClaimAmount),
		"INCIDENT_DATE":   sub.IncidentDate,
		"DESCRIPTION":     sub.Description,
		"CLAIMANT_NAME":   sub.ClaimantName,
		"DOCUMENT_COUNT":  fmt.Sprintf("%d", len(sub.Documents)),
		"EXTRA":           extra,
		"RESPONSE_FORMAT": format,
	})
}

func formatSimilarClaims(similar []domain.SimilarClaim) string {
	if len(similar) == 0 {
		return "Similar Historical Claims:\nNo similar claims found in history."
	}
	var b strings.Builder
	b.WriteString("Similar Historical Claims:\n")
	for i, sc := range similar {
		if i >= 3 {
			break
		}
		desc := sc.Description
		if len(desc) > 100 {
			desc = desc[:100] + "..."
		}
		fmt.Fprintf(&b, "- Claim #%d: %s Amount: $%.2f Status: %s\n", i+1, desc, sc.Amount, sc.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAgentSummary(label string, r domain.AgentResult) string {
	return fmt.Sprintf("%s: %s (Confidence: %.2f)\n   %s", label, strings.ToUpper(r.Status), r.Confidence, r.Findings)
}
