package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"claims-orchestrator/internal/config"
	"claims-orchestrator/internal/domain"
	"claims-orchestrator/internal/storage"
	"claims-orchestrator/internal/workflow"
)

type scriptedAnalyst struct {
	result domain.AgentResult
}

func (a scriptedAnalyst) Analyze(_ context.Context, _ domain.ClaimSubmission) (domain.AgentResult, error) {
	return a.result, nil
}

type scriptedFraudAnalyst struct {
	result domain.AgentResult
}

func (a scriptedFraudAnalyst) Analyze(_ context.Context, _ domain.ClaimSubmission, _ []domain.SimilarClaim) (domain.AgentResult, error) {
	return a.result, nil
}

type scriptedDecisionMaker struct {
	result domain.AgentResult
	status domain.ClaimStatus
}

func (a scriptedDecisionMaker) Decide(_ context.Context, _ domain.ClaimSubmission, _, _, _, _ domain.AgentResult) (domain.AgentResult, domain.ClaimStatus, error) {
	return a.result, a.status, nil
}

func scriptedAgents(decisionConfidence float64) workflow.Agents {
	return workflow.Agents{
		Validator: scriptedAnalyst{result: domain.AgentResult{AgentName: "claim_validator", Status: domain.VerdictPassed, Confidence: 0.95}},
		Fraud: scriptedFraudAnalyst{result: domain.AgentResult{
			AgentName:  "fraud_detector",
			Status:     domain.VerdictPassed,
			Confidence: 0.1,
			Metadata:   map[string]any{"fraud_risk": 0.1},
		}},
		Policy:    scriptedAnalyst{result: domain.AgentResult{AgentName: "policy_checker", Status: domain.VerdictPassed, Confidence: 0.9}},
		Documents: scriptedAnalyst{result: domain.AgentResult{AgentName: "document_analyzer", Status: domain.VerdictPassed, Confidence: 0.88}},
		Decision: scriptedDecisionMaker{
			result: domain.AgentResult{AgentName: "decision_maker", Status: domain.VerdictApproved, Confidence: decisionConfidence, Findings: "all checks passed"},
			status: domain.ClaimApproved,
		},
	}
}

func newTestServer(t *testing.T, agents workflow.Agents) *httptest.Server {
	t.Helper()
	store := storage.NewMemoryStore()
	executor := workflow.NewExecutor(store, agents, 5*time.Second)
	handler := NewHandler(config.Config{AllowedUploadBytes: 1 << 20}, store, executor, nil, nil)
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func submitTestClaim(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	body, err := json.Marshal(domain.ClaimSubmission{
		PolicyNumber:  "POL-12345",
		ClaimType:     domain.ClaimTypeAuto,
		ClaimAmount:   2500,
		IncidentDate:  "2026-08-01",
		Description:   "Rear-ended at an intersection, bumper and trunk damage.",
		ClaimantName:  "Jordan Smith",
		ClaimantEmail: "jordan@example.com",
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/v1/claims", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var payload struct {
		ClaimID string `json:"claim_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Regexp(t, `^CLM-[0-9A-F]{8}$`, payload.ClaimID)
	return payload.ClaimID
}

func analyzeClaim(t *testing.T, srv *httptest.Server, claimID string) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/claims/"+claimID+"/analyze", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func getStatus(t *testing.T, srv *httptest.Server, claimID string) claimStatusResponse {
	t.Helper()
	resp, err := http.Get(srv.URL + "/v1/claims/" + claimID + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status claimStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return status
}

func waitForStatus(t *testing.T, srv *httptest.Server, claimID string, want domain.ClaimStatus) claimStatusResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		status := getStatus(t, srv, claimID)
		if status.Status == want {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("claim %s never reached status %s (last: %s)", claimID, want, status.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitClaimValidation(t *testing.T) {
	srv := newTestServer(t, scriptedAgents(0.9))

	t.Run("invalid json", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/v1/claims", "application/json", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid submission collects violations", func(t *testing.T) {
		body, _ := json.Marshal(domain.ClaimSubmission{
			PolicyNumber: "POL-12345",
			ClaimType:    domain.ClaimTypeAuto,
			ClaimAmount:  0,
			IncidentDate: "2026-08-01",
			Description:  "too short",
		})
		resp, err := http.Post(srv.URL+"/v1/claims", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload struct {
			Details []string `json:"details"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		require.Len(t, payload.Details, 2)
	})
}

func TestClaimLifecycleApproved(t *testing.T) {
	srv := newTestServer(t, scriptedAgents(0.9))
	claimID := submitTestClaim(t, srv)

	status := getStatus(t, srv, claimID)
	require.Equal(t, domain.ClaimSubmitted, status.Status)
	require.Equal(t, 10, status.ProgressPercentage)
	require.Equal(t, "Claim received and queued", status.CurrentStep)

	analyzeClaim(t, srv, claimID)
	status = waitForStatus(t, srv, claimID, domain.ClaimApproved)
	require.Equal(t, 100, status.ProgressPercentage)
	require.NotNil(t, status.Analysis)

	resp, err := http.Get(srv.URL + "/v1/claims/" + claimID + "/analysis")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	histResp, err := http.Get(srv.URL + "/v1/claims/" + claimID + "/history")
	require.NoError(t, err)
	defer histResp.Body.Close()
	require.Equal(t, http.StatusOK, histResp.StatusCode)

	var hist struct {
		History []domain.StageEvent `json:"history"`
	}
	require.NoError(t, json.NewDecoder(histResp.Body).Decode(&hist))
	require.NotEmpty(t, hist.History)
	require.Equal(t, domain.StageCompleted, hist.History[len(hist.History)-1].Stage)

	// A second analyze on a terminal claim is refused.
	conflict, err := http.Post(srv.URL+"/v1/claims/"+claimID+"/analyze", "application/json", nil)
	require.NoError(t, err)
	defer conflict.Body.Close()
	require.Equal(t, http.StatusConflict, conflict.StatusCode)
}

func TestReviewFlow(t *testing.T) {
	srv := newTestServer(t, scriptedAgents(0.4))
	claimID := submitTestClaim(t, srv)
	analyzeClaim(t, srv, claimID)
	waitForStatus(t, srv, claimID, domain.ClaimReviewRequired)

	pendingResp, err := http.Get(srv.URL + "/v1/reviews/pending")
	require.NoError(t, err)
	defer pendingResp.Body.Close()
	require.Equal(t, http.StatusOK, pendingResp.StatusCode)

	var pending struct {
		Items []domain.ReviewQueueItem `json:"items"`
		Total int                      `json:"total"`
	}
	require.NoError(t, json.NewDecoder(pendingResp.Body).Decode(&pending))
	require.Equal(t, 1, pending.Total)
	require.Equal(t, claimID, pending.Items[0].ClaimID)
	require.Equal(t, "high", pending.Items[0].Priority)

	detailResp, err := http.Get(srv.URL + "/v1/reviews/" + claimID)
	require.NoError(t, err)
	defer detailResp.Body.Close()
	require.Equal(t, http.StatusOK, detailResp.StatusCode)

	var detail struct {
		ReviewReason string       `json:"review_reason"`
		Flags        []reviewFlag `json:"flags"`
	}
	require.NoError(t, json.NewDecoder(detailResp.Body).Decode(&detail))
	require.Equal(t, "Low AI confidence (0.40 < 0.70)", detail.ReviewReason)
	require.Len(t, detail.Flags, 1)
	require.Equal(t, "low_confidence", detail.Flags[0].Type)

	decision, _ := json.Marshal(map[string]any{
		"action":     "approve",
		"reason":     "Verified with claimant by phone",
		"analyst_id": "analyst-7",
	})
	decisionResp, err := http.Post(srv.URL+"/v1/reviews/"+claimID+"/decision", "application/json", bytes.NewReader(decision))
	require.NoError(t, err)
	defer decisionResp.Body.Close()
	require.Equal(t, http.StatusOK, decisionResp.StatusCode)

	var result workflow.ReviewResult
	require.NoError(t, json.NewDecoder(decisionResp.Body).Decode(&result))
	require.Equal(t, domain.ClaimApproved, result.Status)
	require.Regexp(t, `^AUDIT-[0-9A-F]{8}$`, result.AuditLogID)

	status := getStatus(t, srv, claimID)
	require.Equal(t, domain.ClaimApproved, status.Status)
}

func TestReviewDecisionErrors(t *testing.T) {
	srv := newTestServer(t, scriptedAgents(0.9))
	claimID := submitTestClaim(t, srv)

	post := func(path string, payload map[string]any) *http.Response {
		body, _ := json.Marshal(payload)
		resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	// Invalid action is rejected before any state is touched.
	resp := post("/v1/reviews/"+claimID+"/decision", map[string]any{"action": "defer", "reason": "later"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// A claim that is not in review cannot receive a decision.
	resp = post("/v1/reviews/"+claimID+"/decision", map[string]any{"action": "approve", "reason": "ok"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// ...and the review detail endpoint rejects it too.
	detailResp, err := http.Get(srv.URL + "/v1/reviews/" + claimID)
	require.NoError(t, err)
	defer detailResp.Body.Close()
	require.Equal(t, http.StatusConflict, detailResp.StatusCode)
}

func TestGetStatusNotFound(t *testing.T) {
	srv := newTestServer(t, scriptedAgents(0.9))
	resp, err := http.Get(srv.URL + "/v1/claims/CLM-MISSING1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDocumentEndpointsWithoutBlobStore(t *testing.T) {
	srv := newTestServer(t, scriptedAgents(0.9))
	claimID := submitTestClaim(t, srv)

	resp, err := http.Get(srv.URL + "/v1/claims/" + claimID + "/documents")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestValidUploadFilename(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"police_report.pdf", true},
		{"damage photo.jpg", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../../etc/passwd", false},
		{`c:\windows\system32`, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%q", tc.name), func(t *testing.T) {
			require.Equal(t, tc.want, validUploadFilename(tc.name))
		})
	}
}
