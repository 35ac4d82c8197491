package workflow

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"claims-orchestrator/internal/domain"
)

// ReviewSweeper escalates reviews that have sat in the queue longer than the
// configured TTL, so stale claims reach a senior adjuster instead of parking
// forever. A zero TTL disables the sweeper.
type ReviewSweeper struct {
	executor *Executor
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
}

func NewReviewSweeper(executor *Executor, ttl time.Duration, schedule string) *ReviewSweeper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &ReviewSweeper{
		executor: executor,
		ttl:      ttl,
		schedule: schedule,
	}
}

// Start schedules the sweep. It is a no-op when the TTL is zero.
func (s *ReviewSweeper) Start() error {
	if s.ttl <= 0 {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *ReviewSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

// Sweep escalates every pending review older than the TTL. It is exported so
// operators can trigger a pass outside the schedule.
func (s *ReviewSweeper) Sweep(ctx context.Context) {
	items, err := s.executor.ListPendingReviews(ctx)
	if err != nil {
		log.Printf("review sweep: list pending reviews: %v", err)
		return
	}

	cutoff := time.Now().Add(-s.ttl)
	for _, item := range items {
		if !item.CreatedAt.Before(cutoff) {
			continue
		}
		decision := domain.ReviewDecision{
			Action:           domain.ReviewActionEscalate,
			Reason:           "Review TTL exceeded",
			EscalationReason: "Review TTL exceeded",
			AnalystID:        "system-sweeper",
		}
		if _, err := s.executor.SubmitReviewDecision(ctx, item.ClaimID, decision, nil); err != nil {
			log.Printf("review sweep: escalate claim_id=%s: %v", item.ClaimID, err)
			continue
		}
		log.Printf("review sweep: escalated stale review claim_id=%s queued_at=%s", item.ClaimID, item.CreatedAt.Format(time.RFC3339))
	}
}
