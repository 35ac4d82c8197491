package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"claims-orchestrator/internal/domain"
)

var (
	// ErrWorkflowActive is returned when a second ExecuteWorkflow call races
	// one already advancing the same claim.
	ErrWorkflowActive = errors.New("workflow already in progress for claim")
	// ErrNotResumable is returned when the claim's workflow is parked in a
	// stage that ExecuteWorkflow cannot restart (review, completed, error).
	ErrNotResumable = errors.New("workflow is not in a resumable stage")
)

// StatusFunc receives every externally-visible status change, synchronously
// and in stage order.
type StatusFunc func(domain.ClaimStatus)

// Analyst is the contract every analysis collaborator satisfies: one opaque
// call returning a structured verdict.
type Analyst interface {
	Analyze(ctx context.Context, sub domain.ClaimSubmission) (domain.AgentResult, error)
}

// FraudAnalyst additionally receives similar historical claims for context.
type FraudAnalyst interface {
	Analyze(ctx context.Context, sub domain.ClaimSubmission, similar []domain.SimilarClaim) (domain.AgentResult, error)
}

// DecisionSynthesizer combines the four analysis verdicts into the final one
// and maps its status word onto the claim's terminal status.
type DecisionSynthesizer interface {
	Decide(ctx context.Context, sub domain.ClaimSubmission, validation, fraud, policy, documents domain.AgentResult) (domain.AgentResult, domain.ClaimStatus, error)
}

// SimilarClaimsIndex looks up and records historical claims for the fraud
// agent's context. Lookup failures are absorbed; the index is advisory.
type SimilarClaimsIndex interface {
	FindSimilar(ctx context.Context, sub domain.ClaimSubmission) ([]domain.SimilarClaim, error)
	StoreClaim(ctx context.Context, claimID string, sub domain.ClaimSubmission, decision domain.AgentResult) error
}

// Agents bundles the analysis collaborators the executor drives. Similar may
// be nil.
type Agents struct {
	Validator Analyst
	Fraud     FraudAnalyst
	Policy    Analyst
	Documents Analyst
	Decision  DecisionSynthesizer
	Similar   SimilarClaimsIndex
}

// Executor runs the claim pipeline: Intake -> Understand -> Decide ->
// [Review] -> Deliver -> Completed, with Error reachable from any stage. It
// is the only writer of workflow state; each claim is advanced by at most one
// goroutine at a time via a per-claim lock.
type Executor struct {
	store       Store
	agents      Agents
	callTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewExecutor(store Store, agents Agents, callTimeout time.Duration) *Executor {
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	return &Executor{
		store:       store,
		agents:      agents,
		callTimeout: callTimeout,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (e *Executor) lockFor(claimID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[claimID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[claimID] = l
	}
	return l
}

func resumable(state *domain.WorkflowState) bool {
	return state.CurrentStage == domain.StageIntake && state.StageStatus == domain.StatusPending
}

// ExecuteWorkflow starts or resumes the pipeline for one claim. A claim
// already being advanced, or parked in a non-resumable stage (awaiting
// review, completed, errored), is rejected rather than re-entered.
func (e *Executor) ExecuteWorkflow(ctx context.Context, sub domain.ClaimSubmission, claimID string, notify StatusFunc) (*domain.ClaimAnalysis, *domain.WorkflowState, error) {
	lock := e.lockFor(claimID)
	if !lock.TryLock() {
		return nil, nil, fmt.Errorf("%w: %s", ErrWorkflowActive, claimID)
	}
	defer lock.Unlock()

	state, err := e.store.GetWorkflowState(ctx, claimID)
	switch {
	case errors.Is(err, ErrClaimNotFound):
		state = domain.NewWorkflowState(claimID)
	case err != nil:
		return nil, nil, fmt.Errorf("load workflow state: %w", err)
	default:
		if !resumable(state) {
			return nil, state.Clone(), fmt.Errorf("%w: claim %s is in %s/%s", ErrNotResumable, claimID, state.CurrentStage, state.StageStatus)
		}
	}

	analysis, runErr := e.run(ctx, sub, claimID, state, notify)
	if runErr != nil {
		failedStage := state.CurrentStage
		state.TransitionTo(domain.StageError, domain.StatusFailed)
		state.AddStageEvent(domain.StageError, domain.StatusFailed,
			"Workflow failed: "+runErr.Error(), map[string]any{"error": runErr.Error()})
		state.RecordError(failedStage, runErr)
	}
	if saveErr := e.store.SaveWorkflowState(ctx, state); saveErr != nil {
		log.Printf("save workflow state claim_id=%s: %v", claimID, saveErr)
	}
	if runErr != nil {
		return nil, state.Clone(), runErr
	}
	return analysis, state.Clone(), nil
}

func (e *Executor) run(ctx context.Context, sub domain.ClaimSubmission, claimID string, state *domain.WorkflowState, notify StatusFunc) (*domain.ClaimAnalysis, error) {
	start := time.Now()

	if err := e.runIntake(ctx, sub, claimID, state, notify); err != nil {
		return nil, err
	}

	validation, err := e.runUnderstand(ctx, sub, claimID, state, notify)
	if err != nil {
		return nil, err
	}
	if validation.Status == domain.VerdictFailed {
		// A failed validation verdict is a business outcome, not a system
		// error: the claim waits for human eyes and Decide never runs.
		analysis := &domain.ClaimAnalysis{
			ClaimID:          claimID,
			ValidationResult: &validation,
			OverallStatus:    domain.ClaimReviewRequired,
			ProcessingTime:   time.Since(start).Seconds(),
		}
		e.saveAnalysis(ctx, claimID, analysis)
		e.queueForReview(ctx, claimID, sub, state, analysis)
		return analysis, nil
	}

	analysis, err := e.runDecide(ctx, sub, claimID, state, validation, notify)
	if err != nil {
		return nil, err
	}
	analysis.ProcessingTime = time.Since(start).Seconds()

	required, reason := RequiresReview(*analysis)
	state.WorkflowData["review_required"] = required
	state.WorkflowData["review_reason"] = reason

	if required {
		state.TransitionTo(domain.StageReview, domain.StatusPending)
		state.AddStageEvent(domain.StageReview, domain.StatusPending,
			"Claim requires human review", map[string]any{"review_reason": reason})
		e.setStatus(ctx, claimID, domain.ClaimReviewRequired, notify)
		e.saveAnalysis(ctx, claimID, analysis)
		e.queueForReview(ctx, claimID, sub, state, analysis)
		return analysis, nil
	}

	e.runDeliver(ctx, sub, claimID, state, analysis, notify)
	analysis.ProcessingTime = time.Since(start).Seconds()
	e.saveAnalysis(ctx, claimID, analysis)
	return analysis, nil
}

func (e *Executor) runIntake(ctx context.Context, sub domain.ClaimSubmission, claimID string, state *domain.WorkflowState, notify StatusFunc) error {
	state.TransitionTo(domain.StageIntake, domain.StatusInProgress)
	e.setStatus(ctx, claimID, domain.ClaimSubmitted, notify)

	violations := domain.ValidateSubmission(sub)
	if len(violations) > 0 {
		msg := "Intake validation failed: " + strings.Join(violations, ", ")
		state.AddStageEvent(domain.StageIntake, domain.StatusFailed, msg, map[string]any{"errors": violations})
		return errors.New(msg)
	}

	intakeData := map[string]any{
		"claim_id":        claimID,
		"policy_number":   sub.PolicyNumber,
		"claim_type":      string(sub.ClaimType),
		"claim_amount":    sub.ClaimAmount,
		"documents_count": len(sub.Documents),
	}
	state.WorkflowData["intake"] = intakeData
	state.AddStageEvent(domain.StageIntake, domain.StatusCompleted, "Intake completed successfully", intakeData)
	return nil
}

func (e *Executor) runUnderstand(ctx context.Context, sub domain.ClaimSubmission, claimID string, state *domain.WorkflowState, notify StatusFunc) (domain.AgentResult, error) {
	state.TransitionTo(domain.StageUnderstand, domain.StatusInProgress)
	e.setStatus(ctx, claimID, domain.ClaimValidating, notify)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	result, err := e.agents.Validator.Analyze(callCtx, sub)
	cancel()
	if err != nil {
		state.AddStageEvent(domain.StageUnderstand, domain.StatusFailed,
			"Understanding stage failed: "+err.Error(), map[string]any{"error": err.Error()})
		return domain.AgentResult{}, fmt.Errorf("understand stage: %w", err)
	}

	state.WorkflowData["validation"] = map[string]any{
		"status":     result.Status,
		"confidence": result.Confidence,
		"findings":   result.Findings,
	}

	if result.Status == domain.VerdictFailed {
		state.AddStageEvent(domain.StageUnderstand, domain.StatusFailed,
			"Claim validation failed", map[string]any{"validation_result": result})
		state.TransitionTo(domain.StageReview, domain.StatusPending)
		state.WorkflowData["review_required"] = true
		state.WorkflowData["review_reason"] = "Validation failed - requires manual review"
		e.setStatus(ctx, claimID, domain.ClaimReviewRequired, notify)
		return result, nil
	}

	state.AddStageEvent(domain.StageUnderstand, domain.StatusCompleted,
		"Understanding completed: "+result.Status, map[string]any{"confidence": result.Confidence})
	return result, nil
}

func (e *Executor) runDecide(ctx context.Context, sub domain.ClaimSubmission, claimID string, state *domain.WorkflowState, validation domain.AgentResult, notify StatusFunc) (*domain.ClaimAnalysis, error) {
	state.TransitionTo(domain.StageDecide, domain.StatusInProgress)

	var similar []domain.SimilarClaim
	if e.agents.Similar != nil {
		found, err := e.agents.Similar.FindSimilar(ctx, sub)
		if err != nil {
			log.Printf("similar claims lookup claim_id=%s: %v", claimID, err)
		} else {
			similar = found
		}
	}
	state.WorkflowData["similar_claims"] = similar

	e.setStatus(ctx, claimID, domain.ClaimFraudCheck, notify)
	state.AddStageEvent(domain.StageDecide, domain.StatusInProgress, "Fraud detection in progress", nil)
	fraud, err := e.analyzeFraud(ctx, sub, similar)
	if err != nil {
		return nil, e.decideFailure(state, "fraud detection", err)
	}
	state.WorkflowData["fraud"] = map[string]any{
		"status":     fraud.Status,
		"confidence": fraud.Confidence,
		"risk_score": fraud.FraudRisk(),
	}

	e.setStatus(ctx, claimID, domain.ClaimPolicyCheck, notify)
	state.AddStageEvent(domain.StageDecide, domain.StatusInProgress, "Policy verification in progress", nil)
	policy, err := e.analyze(ctx, e.agents.Policy, sub)
	if err != nil {
		return nil, e.decideFailure(state, "policy verification", err)
	}
	state.WorkflowData["policy"] = map[string]any{
		"status":     policy.Status,
		"confidence": policy.Confidence,
	}

	e.setStatus(ctx, claimID, domain.ClaimDocumentAnalysis, notify)
	state.AddStageEvent(domain.StageDecide, domain.StatusInProgress, "Document analysis in progress", nil)
	documents, err := e.analyze(ctx, e.agents.Documents, sub)
	if err != nil {
		return nil, e.decideFailure(state, "document analysis", err)
	}
	state.WorkflowData["documents"] = map[string]any{
		"status":     documents.Status,
		"confidence": documents.Confidence,
	}

	e.setStatus(ctx, claimID, domain.ClaimDecisionPending, notify)
	state.AddStageEvent(domain.StageDecide, domain.StatusInProgress, "Final decision making in progress", nil)
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	finalDecision, claimStatus, err := e.agents.Decision.Decide(callCtx, sub, validation, fraud, policy, documents)
	cancel()
	if err != nil {
		return nil, e.decideFailure(state, "final decision", err)
	}

	if e.agents.Similar != nil {
		if err := e.agents.Similar.StoreClaim(ctx, claimID, sub, finalDecision); err != nil {
			log.Printf("store claim in similarity index claim_id=%s: %v", claimID, err)
		}
	}

	analysis := &domain.ClaimAnalysis{
		ClaimID:          claimID,
		ValidationResult: &validation,
		FraudResult:      &fraud,
		PolicyResult:     &policy,
		DocumentResult:   &documents,
		FinalDecision:    &finalDecision,
		OverallStatus:    claimStatus,
	}

	state.WorkflowData["decision"] = map[string]any{
		"status":     string(claimStatus),
		"confidence": finalDecision.Confidence,
		"risk_score": fraud.FraudRisk(),
	}
	state.AddStageEvent(domain.StageDecide, domain.StatusCompleted,
		"Decision completed: "+string(claimStatus), map[string]any{
			"confidence": finalDecision.Confidence,
			"status":     string(claimStatus),
		})

	return analysis, nil
}

func (e *Executor) analyze(ctx context.Context, agent Analyst, sub domain.ClaimSubmission) (domain.AgentResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return agent.Analyze(callCtx, sub)
}

func (e *Executor) analyzeFraud(ctx context.Context, sub domain.ClaimSubmission, similar []domain.SimilarClaim) (domain.AgentResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.agents.Fraud.Analyze(callCtx, sub, similar)
}

func (e *Executor) decideFailure(state *domain.WorkflowState, step string, err error) error {
	state.AddStageEvent(domain.StageDecide, domain.StatusFailed,
		"Decide stage failed: "+err.Error(), map[string]any{"error": err.Error(), "step": step})
	return fmt.Errorf("decide stage %s: %w", step, err)
}

func (e *Executor) saveAnalysis(ctx context.Context, claimID string, analysis *domain.ClaimAnalysis) {
	if err := e.store.SaveAnalysis(ctx, claimID, *analysis); err != nil && !errors.Is(err, ErrClaimNotFound) {
		log.Printf("save analysis claim_id=%s: %v", claimID, err)
	}
}

func (e *Executor) setStatus(ctx context.Context, claimID string, status domain.ClaimStatus, notify StatusFunc) {
	if err := e.store.UpdateClaimStatus(ctx, claimID, status); err != nil && !errors.Is(err, ErrClaimNotFound) {
		log.Printf("update claim status claim_id=%s status=%s: %v", claimID, status, err)
	}
	if notify != nil {
		notify(status)
	}
}

// GetWorkflowState returns a copy of the claim's workflow state.
func (e *Executor) GetWorkflowState(ctx context.Context, claimID string) (*domain.WorkflowState, error) {
	return e.store.GetWorkflowState(ctx, claimID)
}

// GetWorkflowHistory returns the claim's full stage-event log. Unknown claims
// get an empty history rather than an error.
func (e *Executor) GetWorkflowHistory(ctx context.Context, claimID string) ([]domain.StageEvent, error) {
	state, err := e.store.GetWorkflowState(ctx, claimID)
	if errors.Is(err, ErrClaimNotFound) {
		return []domain.StageEvent{}, nil
	}
	if err != nil {
		return nil, err
	}
	return state.StageHistory, nil
}
