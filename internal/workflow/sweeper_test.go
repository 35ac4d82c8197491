package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"claims-orchestrator/internal/domain"
)

func queueStaleReview(t *testing.T, executor *Executor, store *fakeStore, claimID string, age time.Duration) {
	t.Helper()
	createClaim(t, store, claimID)

	_, _, err := executor.ExecuteWorkflow(context.Background(), testSubmission(), claimID, nil)
	require.NoError(t, err)
	require.Contains(t, store.queue, claimID)

	item := store.queue[claimID]
	item.CreatedAt = time.Now().Add(-age)
	store.queue[claimID] = item
}

func TestSweepEscalatesStaleReviews(t *testing.T) {
	agents := passingAgents()
	agents.decision.result.Confidence = 0.4
	executor, store := newTestExecutor(t, agents)

	queueStaleReview(t, executor, store, "CLM-SWEEP001", 2*time.Hour)
	queueStaleReview(t, executor, store, "CLM-SWEEP002", 10*time.Minute)

	sweeper := NewReviewSweeper(executor, time.Hour, "")
	sweeper.Sweep(context.Background())

	// The stale review was escalated, the fresh one left alone.
	require.Equal(t, "ESCALATED", store.resolved["CLM-SWEEP001"])
	require.NotContains(t, store.queue, "CLM-SWEEP001")
	require.Contains(t, store.queue, "CLM-SWEEP002")

	claim, err := store.GetClaim(context.Background(), "CLM-SWEEP001")
	require.NoError(t, err)
	require.Equal(t, domain.ClaimEscalated, claim.Status)

	require.Len(t, store.audits, 1)
	require.Equal(t, domain.ReviewActionEscalate, store.audits[0].Action)
	require.Equal(t, "system-sweeper", store.audits[0].AnalystID)
}

func TestSweeperDisabledWithZeroTTL(t *testing.T) {
	agents := passingAgents()
	executor, _ := newTestExecutor(t, agents)

	sweeper := NewReviewSweeper(executor, 0, "")
	require.NoError(t, sweeper.Start())
	sweeper.Stop()
}
