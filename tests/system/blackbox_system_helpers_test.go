//go:build system

package system_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"claims-orchestrator/internal/domain"
	"claims-orchestrator/internal/workflow"
)

type submitResponse struct {
	ClaimID string             `json:"claim_id"`
	Status  domain.ClaimStatus `json:"status"`
}

type statusResponse struct {
	ClaimID            string                `json:"claim_id"`
	Status             domain.ClaimStatus    `json:"status"`
	CurrentStep        string                `json:"current_step"`
	ProgressPercentage int                   `json:"progress_percentage"`
	Analysis           *domain.ClaimAnalysis `json:"analysis"`
}

type historyResponse struct {
	ClaimID string              `json:"claim_id"`
	History []domain.StageEvent `json:"history"`
}

type pendingResponse struct {
	Items []domain.ReviewQueueItem `json:"items"`
	Total int                      `json:"total"`
}

type systemTestConfig struct {
	APIBaseURL string

	PreflightTimeout   time.Duration
	CompletionTimeout  time.Duration
	StatusPollInterval time.Duration
}

func loadSystemTestConfig() systemTestConfig {
	cfg := systemTestConfig{
		APIBaseURL:         "http://localhost:8080",
		PreflightTimeout:   8 * time.Second,
		CompletionTimeout:  120 * time.Second,
		StatusPollInterval: time.Second,
	}
	if v := os.Getenv("CLAIMS_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	return cfg
}

func waitForHTTPStatus(url string, want int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == want {
				return nil
			}
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("timed out waiting for %s to return %d", url, want)
}

func postJSON(url string, payload any, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func getJSON(url string, out any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func submitClaim(baseURL string, sub domain.ClaimSubmission) (submitResponse, int, error) {
	var out submitResponse
	code, err := postJSON(baseURL+"/v1/claims", sub, &out)
	return out, code, err
}

func startAnalysis(baseURL, claimID string) (int, error) {
	resp, err := http.Post(baseURL+"/v1/claims/"+claimID+"/analyze", "application/json", nil)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func getClaimStatus(baseURL, claimID string) (statusResponse, error) {
	var out statusResponse
	if _, err := getJSON(baseURL+"/v1/claims/"+claimID+"/status", &out); err != nil {
		return statusResponse{}, err
	}
	return out, nil
}

func getClaimHistory(baseURL, claimID string) (historyResponse, error) {
	var out historyResponse
	if _, err := getJSON(baseURL+"/v1/claims/"+claimID+"/history", &out); err != nil {
		return historyResponse{}, err
	}
	return out, nil
}

func getPendingReviews(baseURL string) (pendingResponse, error) {
	var out pendingResponse
	if _, err := getJSON(baseURL+"/v1/reviews/pending", &out); err != nil {
		return pendingResponse{}, err
	}
	return out, nil
}

func submitDecision(baseURL, claimID string, decision domain.ReviewDecision) (workflow.ReviewResult, int, error) {
	var out workflow.ReviewResult
	code, err := postJSON(baseURL+"/v1/reviews/"+claimID+"/decision", decision, &out)
	return out, code, err
}
