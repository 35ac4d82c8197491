package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	braintrust "github.com/braintrustdata/braintrust-sdk-go"
	"github.com/braintrustdata/braintrust-sdk-go/eval"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	statusApproved       = "APPROVED"
	statusRejected       = "REJECTED"
	statusNeedsInfo      = "NEEDS_INFO"
	statusEscalated      = "ESCALATED"
	statusReviewRequired = "REVIEW_REQUIRED"
)

type evalInput struct {
	Name          string   `json:"name"`
	PolicyNumber  string   `json:"policy_number"`
	ClaimType     string   `json:"claim_type"`
	ClaimAmount   float64  `json:"claim_amount"`
	IncidentDate  string   `json:"incident_date"`
	Description   string   `json:"description"`
	ClaimantName  string   `json:"claimant_name"`
	ClaimantEmail string   `json:"claimant_email"`
	Documents     []string `json:"documents,omitempty"`
}

type evalOutput struct {
	ClaimID          string         `json:"claim_id,omitempty"`
	Status           string         `json:"status,omitempty"`
	Confidence       float64        `json:"confidence,omitempty"`
	FraudRisk        float64        `json:"fraud_risk,omitempty"`
	ValidationStatus string         `json:"validation_status,omitempty"`
	ReviewRequired   bool           `json:"review_required,omitempty"`
	ReviewReason     string         `json:"review_reason,omitempty"`
	MinConfidence    float64        `json:"min_confidence,omitempty"`
	MaxFraudRisk     float64        `json:"max_fraud_risk,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type rawCase struct {
	Input    evalInput  `json:"input"`
	Expected evalOutput `json:"expected"`
}

type config struct {
	APIURL            string
	CasesPath         string
	Project           string
	Experiment        string
	AutoApproveReview bool
	PollInterval      time.Duration
	PollTimeout       time.Duration
	RequestTimeout    time.Duration
	Parallelism       int
}

type evalRunner struct {
	cfg    config
	client *http.Client
}

type submitResponse struct {
	ClaimID string `json:"claim_id"`
}

type statusResponse struct {
	ClaimID            string `json:"claim_id"`
	Status             string `json:"status"`
	CurrentStep        string `json:"current_step"`
	ProgressPercentage int    `json:"progress_percentage"`
}

type analysisResponse struct {
	ClaimID  string `json:"claim_id"`
	Status   string `json:"status"`
	Analysis struct {
		OverallStatus    string        `json:"overall_status"`
		ValidationResult *agentVerdict `json:"validation_result"`
		FraudResult      *agentVerdict `json:"fraud_result"`
		PolicyResult     *agentVerdict `json:"policy_result"`
		DocumentResult   *agentVerdict `json:"document_result"`
		FinalDecision    *agentVerdict `json:"final_decision"`
	} `json:"analysis"`
}

type agentVerdict struct {
	Status     string         `json:"status"`
	Confidence float64        `json:"confidence"`
	Findings   string         `json:"findings"`
	Metadata   map[string]any `json:"metadata"`
}

func main() {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}

	if strings.TrimSpace(os.Getenv("BRAINTRUST_API_KEY")) == "" {
		fail(errors.New("BRAINTRUST_API_KEY is required"))
	}

	cases, err := loadCases(cfg.CasesPath)
	if err != nil {
		fail(err)
	}

	runner := &evalRunner{
		cfg:    cfg,
		client: &http.Client{},
	}

	if err := runner.healthCheck(ctx); err != nil {
		fail(err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	bt, err := braintrust.New(
		tp,
		braintrust.WithProject(cfg.Project),
		braintrust.WithBlockingLogin(true),
	)
	if err != nil {
		fail(fmt.Errorf("failed to initialize Braintrust: %w", err))
	}

	evaluator := braintrust.NewEvaluator[evalInput, evalOutput](bt)

	result, err := evaluator.Run(ctx, eval.Opts[evalInput, evalOutput]{
		Experiment: cfg.Experiment,
		Dataset:    eval.NewDataset(cases),
		Task:       eval.T(runner.runCase),
		Scorers: []eval.Scorer[evalInput, evalOutput]{
			eval.NewScorer("status", scoreStatus),
			eval.NewScorer("analysis_completeness", scoreAnalysisCompleteness),
			eval.NewScorer("confidence_threshold", scoreConfidenceThreshold),
			eval.NewScorer("fraud_risk_bound", scoreFraudRiskBound),
			eval.NewScorer("validation_verdict", scoreValidationVerdict),
			eval.NewScorer("review_avoidance", scoreReviewAvoidance),
		},
		Tags: []string{"claims-intake", "adjudication", "workflow-api"},
		Metadata: map[string]any{
			"service":             "claims-orchestrator",
			"api_url":             cfg.APIURL,
			"auto_approve_review": cfg.AutoApproveReview,
			"poll_timeout_sec":    int(cfg.PollTimeout.Seconds()),
		},
		Parallelism: cfg.Parallelism,
	})
	if err != nil {
		fail(fmt.Errorf("eval run failed: %w", err))
	}

	if runErr := result.Error(); runErr != nil {
		fail(fmt.Errorf("eval completed with errors: %w", runErr))
	}

	if link, err := result.Permalink(); err == nil && link != "" {
		fmt.Println("Braintrust report:", link)
	}

	fmt.Println(result.String())
}

func loadConfig() (config, error) {
	cfg := config{
		APIURL:            getenv("EVAL_API_URL", "http://localhost:8080"),
		CasesPath:         getenv("EVAL_CASES_PATH", "cases.json"),
		Project:           getenv("BRAINTRUST_PROJECT", "claims-orchestrator"),
		Experiment:        getenv("EVAL_EXPERIMENT", "claims-adjudication-eval"),
		AutoApproveReview: getenvBool("EVAL_AUTO_APPROVE_REVIEW", false),
		PollInterval:      time.Duration(getenvInt("EVAL_POLL_INTERVAL_SEC", 2)) * time.Second,
		PollTimeout:       time.Duration(getenvInt("EVAL_POLL_TIMEOUT_SEC", 180)) * time.Second,
		RequestTimeout:    time.Duration(getenvInt("EVAL_REQUEST_TIMEOUT_SEC", 20)) * time.Second,
		Parallelism:       getenvInt("EVAL_PARALLELISM", 1),
	}

	if cfg.PollInterval <= 0 {
		return config{}, errors.New("EVAL_POLL_INTERVAL_SEC must be > 0")
	}
	if cfg.PollTimeout <= 0 {
		return config{}, errors.New("EVAL_POLL_TIMEOUT_SEC must be > 0")
	}
	if cfg.RequestTimeout <= 0 {
		return config{}, errors.New("EVAL_REQUEST_TIMEOUT_SEC must be > 0")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}

	return cfg, nil
}

func loadCases(path string) ([]eval.Case[evalInput, evalOutput], error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases file %s: %w", resolved, err)
	}

	var raw []rawCase
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cases file %s: %w", resolved, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("cases file is empty: %s", resolved)
	}

	cases := make([]eval.Case[evalInput, evalOutput], 0, len(raw))
	for _, row := range raw {
		cases = append(cases, eval.Case[evalInput, evalOutput]{
			Input:    row.Input,
			Expected: row.Expected,
			Metadata: map[string]any{"name": row.Input.Name, "claim_type": row.Input.ClaimType, "claim_amount": row.Input.ClaimAmount},
		})
	}
	return cases, nil
}

func (r *evalRunner) runCase(ctx context.Context, input evalInput) (evalOutput, error) {
	claimID, err := r.submitClaim(ctx, input)
	if err != nil {
		return evalOutput{}, err
	}

	if err := r.startAnalysis(ctx, claimID); err != nil {
		return evalOutput{}, err
	}

	deadline := time.Now().Add(r.cfg.PollTimeout)
	reviewSent := false

	for {
		status, err := r.getStatus(ctx, claimID)
		if err != nil {
			return evalOutput{}, err
		}

		s := strings.ToUpper(status.Status)
		if s == statusReviewRequired {
			if r.cfg.AutoApproveReview && !reviewSent {
				if err := r.sendApprove(ctx, claimID); err != nil {
					return evalOutput{}, err
				}
				reviewSent = true
			} else {
				result, err := r.getOutcome(ctx, claimID)
				if err != nil {
					return evalOutput{}, err
				}
				result.Status = statusReviewRequired
				result.ReviewRequired = true
				return result, nil
			}
		}

		if s == statusApproved || s == statusRejected || s == statusNeedsInfo || s == statusEscalated {
			result, err := r.getOutcome(ctx, claimID)
			if err != nil {
				return evalOutput{}, err
			}
			result.Status = s
			result.ReviewRequired = reviewSent
			return result, nil
		}

		if time.Now().After(deadline) {
			return evalOutput{}, fmt.Errorf("timed out waiting for claim %s", claimID)
		}

		select {
		case <-ctx.Done():
			return evalOutput{}, ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

func (r *evalRunner) healthCheck(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := r.doJSON(ctx, http.MethodGet, "/healthz", nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if strings.ToLower(resp.Status) != "ok" {
		return fmt.Errorf("health check returned non-ok status: %s", resp.Status)
	}
	return nil
}

func (r *evalRunner) submitClaim(ctx context.Context, input evalInput) (string, error) {
	payload := map[string]any{
		"policy_number":  input.PolicyNumber,
		"claim_type":     input.ClaimType,
		"claim_amount":   input.ClaimAmount,
		"incident_date":  input.IncidentDate,
		"description":    input.Description,
		"claimant_name":  input.ClaimantName,
		"claimant_email": input.ClaimantEmail,
	}
	if len(input.Documents) > 0 {
		payload["documents"] = input.Documents
	}

	var out submitResponse
	if err := r.doJSON(ctx, http.MethodPost, "/v1/claims", payload, &out); err != nil {
		return "", fmt.Errorf("submit failed: %w", err)
	}
	if out.ClaimID == "" {
		return "", errors.New("submit response missing claim_id")
	}
	return out.ClaimID, nil
}

func (r *evalRunner) startAnalysis(ctx context.Context, claimID string) error {
	if err := r.doJSON(ctx, http.MethodPost, "/v1/claims/"+claimID+"/analyze", nil, nil); err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}
	return nil
}

func (r *evalRunner) getStatus(ctx context.Context, claimID string) (statusResponse, error) {
	var out statusResponse
	err := r.doJSON(ctx, http.MethodGet, "/v1/claims/"+claimID+"/status", nil, &out)
	if err != nil {
		return statusResponse{}, err
	}
	return out, nil
}

func (r *evalRunner) getOutcome(ctx context.Context, claimID string) (evalOutput, error) {
	var resp analysisResponse
	if err := r.doJSON(ctx, http.MethodGet, "/v1/claims/"+claimID+"/analysis", nil, &resp); err != nil {
		return evalOutput{}, err
	}

	analysis := resp.Analysis
	out := evalOutput{
		ClaimID: claimID,
		Status:  strings.ToUpper(analysis.OverallStatus),
	}
	if analysis.FinalDecision != nil {
		out.Confidence = analysis.FinalDecision.Confidence
	}
	if analysis.FraudResult != nil {
		out.FraudRisk = metadataFloat(analysis.FraudResult.Metadata, "fraud_risk")
	}
	if analysis.ValidationResult != nil {
		out.ValidationStatus = strings.ToLower(analysis.ValidationResult.Status)
	}
	out.Metadata = map[string]any{
		"has_validation": analysis.ValidationResult != nil,
		"has_fraud":      analysis.FraudResult != nil,
		"has_policy":     analysis.PolicyResult != nil,
		"has_documents":  analysis.DocumentResult != nil,
		"has_decision":   analysis.FinalDecision != nil,
	}
	return out, nil
}

func (r *evalRunner) sendApprove(ctx context.Context, claimID string) error {
	payload := map[string]any{
		"action":     "approve",
		"analyst_id": "braintrust-go-eval",
		"reason":     "auto-approve for eval progression",
	}
	return r.doJSON(ctx, http.MethodPost, "/v1/reviews/"+claimID+"/decision", payload, nil)
}

func (r *evalRunner) doJSON(ctx context.Context, method, path string, in any, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, strings.TrimRight(r.cfg.APIURL, "/")+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode failed: %w (payload=%s)", err, string(payload))
		}
	}
	return nil
}

func scoreStatus(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	expected := strings.ToUpper(strings.TrimSpace(tr.Expected.Status))
	if expected == "" {
		expected = statusApproved
	}
	actual := strings.ToUpper(strings.TrimSpace(tr.Output.Status))
	if actual == expected {
		return eval.S(1), nil
	}
	return eval.S(0), nil
}

func scoreAnalysisCompleteness(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	md := tr.Output.Metadata
	if md == nil {
		return eval.S(0), nil
	}

	present := 0
	total := 0
	for _, key := range []string{"has_validation", "has_fraud", "has_policy", "has_documents", "has_decision"} {
		total++
		if v, ok := md[key].(bool); ok && v {
			present++
		}
	}
	return eval.S(float64(present) / float64(total)), nil
}

func scoreConfidenceThreshold(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	threshold := tr.Expected.MinConfidence
	if threshold <= 0 {
		threshold = 0.70
	}
	if tr.Output.Confidence >= threshold {
		return eval.S(1), nil
	}
	return eval.S(0), nil
}

func scoreFraudRiskBound(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	bound := tr.Expected.MaxFraudRisk
	if bound <= 0 {
		bound = 0.80
	}
	if tr.Output.FraudRisk < 0 || tr.Output.FraudRisk > 1 {
		return eval.S(0), nil
	}
	if tr.Output.FraudRisk < bound {
		return eval.S(1), nil
	}
	return eval.S(0), nil
}

func scoreValidationVerdict(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	expected := strings.ToLower(strings.TrimSpace(tr.Expected.ValidationStatus))
	if expected == "" {
		expected = "passed"
	}
	if strings.ToLower(tr.Output.ValidationStatus) == expected {
		return eval.S(1), nil
	}
	return eval.S(0), nil
}

func scoreReviewAvoidance(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	if tr.Output.ReviewRequired || strings.EqualFold(tr.Output.Status, statusReviewRequired) {
		return eval.S(0), nil
	}
	return eval.S(1), nil
}

func metadataFloat(md map[string]any, key string) float64 {
	if md == nil {
		return 0
	}
	switch v := md[key].(type) {
	case float64:
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func resolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is empty")
	}
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("path not found: %s", path)
	}

	candidates := []string{
		path,
		filepath.Join("..", "..", path),
	}

	for _, c := range candidates {
		absPath, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("path not found: %s", path)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out int
	if _, err := fmt.Sscanf(v, "%d", &out); err != nil {
		return fallback
	}
	return out
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "1") || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
