package agents

import (
	"testing"

	"claims-orchestrator/internal/domain"
)

func TestParseAgentResponse(t *testing.T) {
	raw := `STATUS: PASSED
CONFIDENCE: 0.92
FINDINGS: All required fields are present and consistent.
The incident date is plausible.
RECOMMENDATIONS: Proceed to fraud check, Verify policy limits`

	got := ParseAgentResponse("Claim Validator", raw, domain.VerdictWarning)
	if got.Status != domain.VerdictPassed {
		t.Fatalf("status = %q", got.Status)
	}
	if got.Confidence != 0.92 {
		t.Fatalf("confidence = %v", got.Confidence)
	}
	if got.Findings == "" || got.Findings[:12] != "All required" {
		t.Fatalf("findings = %q", got.Findings)
	}
	if len(got.Recommendations) != 2 || got.Recommendations[1] != "Verify policy limits" {
		t.Fatalf("recommendations = %v", got.Recommendations)
	}
}

func TestParseAgentResponseClampsConfidence(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
	}{
		{name: "above one", raw: "STATUS: PASSED\nCONFIDENCE: 1.7\nFINDINGS: ok", want: 1},
		{name: "in range", raw: "STATUS: PASSED\nCONFIDENCE: 0.33\nFINDINGS: ok", want: 0.33},
		{name: "missing", raw: "STATUS: PASSED\nFINDINGS: ok", want: 0.5},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := ParseAgentResponse("a", tc.raw, domain.VerdictWarning)
			if got.Confidence != tc.want {
				t.Fatalf("confidence = %v, want %v", got.Confidence, tc.want)
			}
		})
	}
}

func TestParseAgentResponseFallbacks(t *testing.T) {
	got := ParseAgentResponse("Fraud Detector", "the model rambled with no structure", domain.VerdictWarning)
	if got.Status != domain.VerdictWarning {
		t.Fatalf("status = %q", got.Status)
	}
	if got.Findings != "the model rambled with no structure" {
		t.Fatalf("findings = %q", got.Findings)
	}
	if len(got.Recommendations) != 0 {
		t.Fatalf("recommendations = %v", got.Recommendations)
	}
}

func TestMapDecisionStatus(t *testing.T) {
	cases := map[string]domain.ClaimStatus{
		"approved":   domain.ClaimApproved,
		"passed":     domain.ClaimApproved,
		"rejected":   domain.ClaimRejected,
		"needs_info": domain.ClaimNeedsInfo,
		"gibberish":  domain.ClaimDecisionPending,
		"":           domain.ClaimDecisionPending,
	}
	for in, want := range cases {
		if got := MapDecisionStatus(in); got != want {
			t.Fatalf("MapDecisionStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
