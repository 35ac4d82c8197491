package domain

import "time"

type ClaimType string

const (
	ClaimTypeHealth ClaimType = "health"
	ClaimTypeAuto   ClaimType = "auto"
	ClaimTypeHome   ClaimType = "home"
	ClaimTypeLife   ClaimType = "life"
)

var knownClaimTypes = map[ClaimType]bool{
	ClaimTypeHealth: true,
	ClaimTypeAuto:   true,
	ClaimTypeHome:   true,
	ClaimTypeLife:   true,
}

func (t ClaimType) Valid() bool {
	return knownClaimTypes[t]
}

type ClaimSubmission struct {
	PolicyNumber  string    `json:"policy_number"`
	ClaimType     ClaimType `json:"claim_type"`
	ClaimAmount   float64   `json:"claim_amount"`
	IncidentDate  string    `json:"incident_date"`
	Description   string    `json:"description"`
	ClaimantName  string    `json:"claimant_name"`
	ClaimantEmail string    `json:"claimant_email"`
	Documents     []string  `json:"documents,omitempty"`
}

// AgentResult is the normalized verdict of one analysis agent. Confidence is
// clamped to [0,1] at construction; see agents.ParseAgentResponse.
type AgentResult struct {
	AgentName       string         `json:"agent_name"`
	Status          string         `json:"status"`
	Confidence      float64        `json:"confidence"`
	Findings        string         `json:"findings"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// FraudRisk reads the fraud_risk metadata entry, defaulting to 0 when the
// entry is absent or not numeric.
func (r AgentResult) FraudRisk() float64 {
	if r.Metadata == nil {
		return 0
	}
	switch v := r.Metadata["fraud_risk"].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

type ClaimAnalysis struct {
	ClaimID          string       `json:"claim_id"`
	ValidationResult *AgentResult `json:"validation_result,omitempty"`
	FraudResult      *AgentResult `json:"fraud_result,omitempty"`
	PolicyResult     *AgentResult `json:"policy_result,omitempty"`
	DocumentResult   *AgentResult `json:"document_result,omitempty"`
	FinalDecision    *AgentResult `json:"final_decision,omitempty"`
	OverallStatus    ClaimStatus  `json:"overall_status"`
	ProcessingTime   float64      `json:"processing_time,omitempty"`
}

type Claim struct {
	ClaimID    string          `json:"claim_id"`
	Submission ClaimSubmission `json:"submission"`
	Status     ClaimStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Analysis   *ClaimAnalysis  `json:"analysis,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

type SimilarClaim struct {
	Description     string  `json:"description"`
	Amount          float64 `json:"amount"`
	Status          string  `json:"status"`
	ClaimType       string  `json:"claim_type,omitempty"`
	SimilarityScore float64 `json:"similarity_score,omitempty"`
}

type ReviewDecision struct {
	Action             ReviewAction `json:"action"`
	Reason             string       `json:"reason"`
	ModifiedPayout     *float64     `json:"modified_payout,omitempty"`
	EscalationReason   string       `json:"escalation_reason,omitempty"`
	RequestedDocuments []string     `json:"requested_documents,omitempty"`
	AnalystID          string       `json:"analyst_id,omitempty"`
}

type ReviewQueueItem struct {
	ClaimID      string    `json:"claim_id"`
	Priority     string    `json:"priority"`
	ReviewReason string    `json:"requires_review_reason"`
	AIConfidence *float64  `json:"ai_confidence,omitempty"`
	RiskScore    *float64  `json:"risk_score,omitempty"`
	ClaimType    ClaimType `json:"claim_type"`
	ClaimAmount  float64   `json:"claim_amount"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ReviewAuditEntry struct {
	AuditLogID         string       `json:"audit_log_id"`
	ClaimID            string       `json:"claim_id"`
	Timestamp          time.Time    `json:"timestamp"`
	Action             ReviewAction `json:"action"`
	AnalystID          string       `json:"analyst_id,omitempty"`
	Reason             string       `json:"reason"`
	ModifiedPayout     *float64     `json:"modified_payout,omitempty"`
	EscalationReason   string       `json:"escalation_reason,omitempty"`
	RequestedDocuments []string     `json:"requested_documents,omitempty"`
	PreviousStatus     ClaimStatus  `json:"previous_status"`
	NewStatus          ClaimStatus  `json:"new_status"`
	NextStage          string       `json:"next_stage"`
}
