package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"claims-orchestrator/internal/domain"
	"claims-orchestrator/internal/workflow"
)

// PostgresStore is the durable workflow.Store. Stage events live in their own
// append-only table keyed by (claim_id, event_index), so a replayed save can
// never rewrite history.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateClaim(ctx context.Context, claim domain.Claim) error {
	submission, err := json.Marshal(claim.Submission)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	metadata, err := marshalOrEmpty(claim.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO claims (claim_id, submission, status, metadata, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4::jsonb, $5, $6)
		ON CONFLICT (claim_id) DO NOTHING
	`, claim.ClaimID, string(submission), claim.Status, string(metadata), claim.CreatedAt, claim.UpdatedAt)
	return err
}

func (s *PostgresStore) GetClaim(ctx context.Context, claimID string) (domain.Claim, error) {
	var (
		claim        domain.Claim
		submission   []byte
		metadata     []byte
		analysisJSON []byte
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT claim_id, submission, status, metadata, analysis, created_at, updated_at
		FROM claims
		WHERE claim_id = $1
	`, claimID)
	if err := row.Scan(&claim.ClaimID, &submission, &claim.Status, &metadata, &analysisJSON, &claim.CreatedAt, &claim.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, workflow.ErrClaimNotFound
		}
		return domain.Claim{}, err
	}
	if err := json.Unmarshal(submission, &claim.Submission); err != nil {
		return domain.Claim{}, fmt.Errorf("unmarshal submission: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &claim.Metadata); err != nil {
			return domain.Claim{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if len(analysisJSON) > 0 {
		var analysis domain.ClaimAnalysis
		if err := json.Unmarshal(analysisJSON, &analysis); err != nil {
			return domain.Claim{}, fmt.Errorf("unmarshal analysis: %w", err)
		}
		claim.Analysis = &analysis
	}
	return claim, nil
}

func (s *PostgresStore) ListClaims(ctx context.Context) ([]domain.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT claim_id FROM claims ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	claims := make([]domain.Claim, 0, len(ids))
	for _, id := range ids {
		claim, err := s.GetClaim(ctx, id)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

func (s *PostgresStore) UpdateClaimStatus(ctx context.Context, claimID string, status domain.ClaimStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE claims
		SET status = $2, updated_at = NOW()
		WHERE claim_id = $1
	`, claimID, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) SetClaimMetadata(ctx context.Context, claimID, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal metadata value: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE claims
		SET metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), ARRAY[$2], $3::jsonb),
		    updated_at = NOW()
		WHERE claim_id = $1
	`, claimID, key, string(payload))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, claimID string, analysis domain.ClaimAnalysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE claims
		SET analysis = $2::jsonb, updated_at = NOW()
		WHERE claim_id = $1
	`, claimID, string(payload))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) SaveWorkflowState(ctx context.Context, state *domain.WorkflowState) error {
	workflowData, err := marshalOrEmpty(state.WorkflowData)
	if err != nil {
		return fmt.Errorf("marshal workflow data: %w", err)
	}
	stageErrors, err := json.Marshal(state.Errors)
	if err != nil {
		return fmt.Errorf("marshal stage errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_states (claim_id, current_stage, stage_status, workflow_data, errors, start_time, last_updated)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7)
		ON CONFLICT (claim_id) DO UPDATE SET
			current_stage = EXCLUDED.current_stage,
			stage_status = EXCLUDED.stage_status,
			workflow_data = EXCLUDED.workflow_data,
			errors = EXCLUDED.errors,
			last_updated = EXCLUDED.last_updated
	`, state.ClaimID, state.CurrentStage, state.StageStatus, string(workflowData), string(stageErrors), state.StartTime, state.LastUpdated)
	if err != nil {
		return err
	}

	for i, event := range state.StageHistory {
		data, err := marshalOrEmpty(event.Data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stage_events (claim_id, event_index, stage, status, message, data, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
			ON CONFLICT (claim_id, event_index) DO NOTHING
		`, state.ClaimID, i, event.Stage, event.Status, event.Message, string(data), event.Timestamp)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetWorkflowState(ctx context.Context, claimID string) (*domain.WorkflowState, error) {
	var (
		state        domain.WorkflowState
		workflowData []byte
		stageErrors  []byte
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT claim_id, current_stage, stage_status, workflow_data, errors, start_time, last_updated
		FROM workflow_states
		WHERE claim_id = $1
	`, claimID)
	if err := row.Scan(&state.ClaimID, &state.CurrentStage, &state.StageStatus, &workflowData, &stageErrors, &state.StartTime, &state.LastUpdated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrClaimNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(workflowData, &state.WorkflowData); err != nil {
		return nil, fmt.Errorf("unmarshal workflow data: %w", err)
	}
	if err := json.Unmarshal(stageErrors, &state.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal stage errors: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, status, message, data, occurred_at
		FROM stage_events
		WHERE claim_id = $1
		ORDER BY event_index ASC
	`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	state.StageHistory = make([]domain.StageEvent, 0)
	for rows.Next() {
		var event domain.StageEvent
		var data []byte
		if err := rows.Scan(&event.Stage, &event.Status, &event.Message, &data, &event.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &event.Data); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		state.StageHistory = append(state.StageHistory, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *PostgresStore) QueueReview(ctx context.Context, item domain.ReviewQueueItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_queue (claim_id, priority, review_reason, ai_confidence, risk_score, claim_type, claim_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING', $8, $9)
		ON CONFLICT (claim_id) DO UPDATE SET
			priority = EXCLUDED.priority,
			review_reason = EXCLUDED.review_reason,
			ai_confidence = EXCLUDED.ai_confidence,
			risk_score = EXCLUDED.risk_score,
			status = 'PENDING',
			updated_at = NOW()
	`, item.ClaimID, item.Priority, item.ReviewReason, item.AIConfidence, item.RiskScore, item.ClaimType, item.ClaimAmount, item.CreatedAt, item.UpdatedAt)
	return err
}

func (s *PostgresStore) ResolveReview(ctx context.Context, claimID, resolution string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE review_queue
		SET status = $2, updated_at = NOW()
		WHERE claim_id = $1
	`, claimID, resolution)
	return err
}

func (s *PostgresStore) ListPendingReviews(ctx context.Context) ([]domain.ReviewQueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT claim_id, priority, review_reason, ai_confidence, risk_score, claim_type, claim_amount, created_at, updated_at
		FROM review_queue
		WHERE status = 'PENDING'
		ORDER BY CASE WHEN priority = 'high' THEN 0 ELSE 1 END, created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReviewQueueItem, 0)
	for rows.Next() {
		var item domain.ReviewQueueItem
		var aiConfidence sql.NullFloat64
		var riskScore sql.NullFloat64
		if err := rows.Scan(&item.ClaimID, &item.Priority, &item.ReviewReason, &aiConfidence, &riskScore, &item.ClaimType, &item.ClaimAmount, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		if aiConfidence.Valid {
			item.AIConfidence = &aiConfidence.Float64
		}
		if riskScore.Valid {
			item.RiskScore = &riskScore.Float64
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) AppendReviewAudit(ctx context.Context, entry domain.ReviewAuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_audit (audit_log_id, claim_id, action, analyst_id, reason, modified_payout, escalation_reason, requested_documents, previous_status, new_status, next_stage, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, entry.AuditLogID, entry.ClaimID, entry.Action, entry.AnalystID, entry.Reason, entry.ModifiedPayout,
		entry.EscalationReason, pq.Array(entry.RequestedDocuments), entry.PreviousStatus, entry.NewStatus, entry.NextStage, entry.Timestamp)
	return err
}

// ReviewAudit returns the audit trail for one claim, oldest first.
func (s *PostgresStore) ReviewAudit(ctx context.Context, claimID string) ([]domain.ReviewAuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_log_id, claim_id, action, analyst_id, reason, modified_payout, escalation_reason, requested_documents, previous_status, new_status, next_stage, occurred_at
		FROM review_audit
		WHERE claim_id = $1
		ORDER BY occurred_at ASC
	`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.ReviewAuditEntry, 0)
	for rows.Next() {
		var entry domain.ReviewAuditEntry
		var modifiedPayout sql.NullFloat64
		var requestedDocuments []string
		if err := rows.Scan(&entry.AuditLogID, &entry.ClaimID, &entry.Action, &entry.AnalystID, &entry.Reason,
			&modifiedPayout, &entry.EscalationReason, pq.Array(&requestedDocuments),
			&entry.PreviousStatus, &entry.NewStatus, &entry.NextStage, &entry.Timestamp); err != nil {
			return nil, err
		}
		if modifiedPayout.Valid {
			entry.ModifiedPayout = &modifiedPayout.Float64
		}
		entry.RequestedDocuments = requestedDocuments
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *PostgresStore) CountClaims(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return count, nil
}

func marshalOrEmpty(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return workflow.ErrClaimNotFound
	}
	return nil
}
