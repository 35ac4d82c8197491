package agents

import (
	"context"
	"testing"

	"claims-orchestrator/internal/domain"
)

func TestMemoryClaimsIndexRanksByType(t *testing.T) {
	idx := NewMemoryClaimsIndex()
	ctx := context.Background()

	auto := domain.ClaimSubmission{
		ClaimType:   domain.ClaimTypeAuto,
		ClaimAmount: 1000,
		Description: "rear end collision on the highway during rain",
	}
	home := domain.ClaimSubmission{
		ClaimType:   domain.ClaimTypeHome,
		ClaimAmount: 1000,
		Description: "water damage in the basement after a storm",
	}
	if err := idx.StoreClaim(ctx, "CLM-A", auto, domain.AgentResult{Status: domain.VerdictApproved}); err != nil {
		t.Fatal(err)
	}
	if err := idx.StoreClaim(ctx, "CLM-B", home, domain.AgentResult{Status: domain.VerdictRejected}); err != nil {
		t.Fatal(err)
	}

	query := domain.ClaimSubmission{
		ClaimType:   domain.ClaimTypeAuto,
		ClaimAmount: 900,
		Description: "collision with another vehicle on the highway",
	}
	got, err := idx.FindSimilar(ctx, query)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("expected at least one similar claim")
	}
	if got[0].ClaimType != string(domain.ClaimTypeAuto) {
		t.Fatalf("top match type = %s", got[0].ClaimType)
	}
	if got[0].Status != domain.VerdictApproved {
		t.Fatalf("top match status = %s", got[0].Status)
	}
}

func TestMemoryClaimsIndexEmpty(t *testing.T) {
	idx := NewMemoryClaimsIndex()
	got, err := idx.FindSimilar(context.Background(), domain.ClaimSubmission{Description: "anything at all here"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}
}
