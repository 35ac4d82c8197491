package domain

import "time"

type WorkflowStage string

const (
	StageIntake     WorkflowStage = "intake"
	StageUnderstand WorkflowStage = "understand"
	StageDecide     WorkflowStage = "decide"
	StageReview     WorkflowStage = "review"
	StageDeliver    WorkflowStage = "deliver"
	StageCompleted  WorkflowStage = "completed"
	StageError      WorkflowStage = "error"
)

type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusInProgress StageStatus = "in_progress"
	StatusCompleted  StageStatus = "completed"
	StatusFailed     StageStatus = "failed"
	StatusSkipped    StageStatus = "skipped"
)

type ClaimStatus string

const (
	ClaimSubmitted        ClaimStatus = "submitted"
	ClaimValidating       ClaimStatus = "validating"
	ClaimFraudCheck       ClaimStatus = "fraud_check"
	ClaimPolicyCheck      ClaimStatus = "policy_check"
	ClaimDocumentAnalysis ClaimStatus = "document_analysis"
	ClaimDecisionPending  ClaimStatus = "decision_pending"
	ClaimReviewRequired   ClaimStatus = "review_required"
	ClaimApproved         ClaimStatus = "approved"
	ClaimRejected         ClaimStatus = "rejected"
	ClaimNeedsInfo        ClaimStatus = "needs_info"
	ClaimEscalated        ClaimStatus = "escalated"
)

type ReviewAction string

const (
	ReviewActionApprove     ReviewAction = "approve"
	ReviewActionModify      ReviewAction = "modify"
	ReviewActionEscalate    ReviewAction = "escalate"
	ReviewActionRequestInfo ReviewAction = "request_info"
)

// Verdict status vocabulary shared by all analysis agents.
const (
	VerdictPassed    = "passed"
	VerdictFailed    = "failed"
	VerdictWarning   = "warning"
	VerdictNeedsInfo = "needs_info"
	VerdictApproved  = "approved"
	VerdictRejected  = "rejected"
)

// StageEvent is one audit-trail entry. Events are appended and never mutated.
type StageEvent struct {
	Stage     WorkflowStage  `json:"stage"`
	Status    StageStatus    `json:"status"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

type StageErrorRecord struct {
	Stage     WorkflowStage `json:"stage"`
	Error     string        `json:"error"`
	Timestamp time.Time     `json:"timestamp"`
}

// WorkflowState tracks one claim's progress through the pipeline. The
// executor is the only writer; everything handed out of the engine is a copy.
type WorkflowState struct {
	ClaimID      string             `json:"claim_id"`
	CurrentStage WorkflowStage      `json:"current_stage"`
	StageStatus  StageStatus        `json:"stage_status"`
	StageHistory []StageEvent       `json:"stage_history"`
	WorkflowData map[string]any     `json:"workflow_data"`
	Errors       []StageErrorRecord `json:"errors"`
	StartTime    time.Time          `json:"start_time"`
	LastUpdated  time.Time          `json:"last_updated"`
}

func NewWorkflowState(claimID string) *WorkflowState {
	now := time.Now()
	return &WorkflowState{
		ClaimID:      claimID,
		CurrentStage: StageIntake,
		StageStatus:  StatusPending,
		StageHistory: make([]StageEvent, 0),
		WorkflowData: make(map[string]any),
		Errors:       make([]StageErrorRecord, 0),
		StartTime:    now,
		LastUpdated:  now,
	}
}

// AddStageEvent appends to the history. Timestamps are kept non-decreasing
// even if the wall clock steps backwards.
func (s *WorkflowState) AddStageEvent(stage WorkflowStage, status StageStatus, message string, data map[string]any) {
	now := time.Now()
	if now.Before(s.LastUpdated) {
		now = s.LastUpdated
	}
	if data == nil {
		data = map[string]any{}
	}
	s.StageHistory = append(s.StageHistory, StageEvent{
		Stage:     stage,
		Status:    status,
		Message:   message,
		Timestamp: now,
		Data:      data,
	})
	s.LastUpdated = now
}

// TransitionTo sets the current stage and records the transition. Legality of
// the transition is the executor's responsibility; keeping this unchecked is
// what lets review loop back to intake.
func (s *WorkflowState) TransitionTo(stage WorkflowStage, status StageStatus) {
	s.CurrentStage = stage
	s.StageStatus = status
	s.AddStageEvent(stage, status, "Transitioned to "+string(stage), nil)
}

func (s *WorkflowState) RecordError(stage WorkflowStage, err error) {
	now := time.Now()
	if now.Before(s.LastUpdated) {
		now = s.LastUpdated
	}
	s.Errors = append(s.Errors, StageErrorRecord{Stage: stage, Error: err.Error(), Timestamp: now})
	s.LastUpdated = now
}

// Clone returns a deep copy safe to hand to external readers.
func (s *WorkflowState) Clone() *WorkflowState {
	if s == nil {
		return nil
	}
	out := *s
	out.StageHistory = make([]StageEvent, len(s.StageHistory))
	for i, ev := range s.StageHistory {
		out.StageHistory[i] = ev
		out.StageHistory[i].Data = copyMap(ev.Data)
	}
	out.Errors = append([]StageErrorRecord(nil), s.Errors...)
	out.WorkflowData = copyMap(s.WorkflowData)
	return &out
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
