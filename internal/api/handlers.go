package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"claims-orchestrator/internal/config"
	"claims-orchestrator/internal/domain"
	"claims-orchestrator/internal/workflow"
)

type Handler struct {
	cfg      config.Config
	store    workflow.Store
	executor *workflow.Executor
	blob     DocumentBlobStore
	readier  Readier
}

// DocumentBlobStore is the object-storage surface the upload endpoints need.
// A nil store disables the document endpoints.
type DocumentBlobStore interface {
	PutClaimDocument(ctx context.Context, claimID, filename string, content []byte) (string, error)
	ListClaimDocuments(ctx context.Context, claimID string) ([]string, error)
	GetClaimDocument(ctx context.Context, objectKey string) ([]byte, error)
}

// Readier gates the readiness probe on the durable store. Nil means always
// ready.
type Readier interface {
	Ping(ctx context.Context) error
}

func NewHandler(cfg config.Config, store workflow.Store, executor *workflow.Executor, blob DocumentBlobStore, readier Readier) *Handler {
	return &Handler{cfg: cfg, store: store, executor: executor, blob: blob, readier: readier}
}

var statusProgress = map[domain.ClaimStatus]int{
	domain.ClaimSubmitted:        10,
	domain.ClaimValidating:       20,
	domain.ClaimFraudCheck:       40,
	domain.ClaimPolicyCheck:      60,
	domain.ClaimDocumentAnalysis: 80,
	domain.ClaimDecisionPending:  90,
	domain.ClaimApproved:         100,
	domain.ClaimRejected:         100,
	domain.ClaimNeedsInfo:        50,
}

var currentStep = map[domain.ClaimStatus]string{
	domain.ClaimSubmitted:        "Claim received and queued",
	domain.ClaimValidating:       "Validating claim information",
	domain.ClaimFraudCheck:       "Analyzing for fraud indicators",
	domain.ClaimPolicyCheck:      "Verifying policy coverage",
	domain.ClaimDocumentAnalysis: "Analyzing supporting documents",
	domain.ClaimDecisionPending:  "Making final decision",
	domain.ClaimApproved:         "Claim approved",
	domain.ClaimRejected:         "Claim rejected",
	domain.ClaimNeedsInfo:        "Additional information required",
	domain.ClaimReviewRequired:   "Awaiting human review",
	domain.ClaimEscalated:        "Escalated to senior adjuster",
}

func newClaimID() string {
	return "CLM-" + strings.ToUpper(uuid.NewString()[:8])
}

type claimStatusResponse struct {
	ClaimID            string                `json:"claim_id"`
	Status             domain.ClaimStatus    `json:"status"`
	CurrentStep        string                `json:"current_step"`
	ProgressPercentage int                   `json:"progress_percentage"`
	Analysis           *domain.ClaimAnalysis `json:"analysis,omitempty"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func claimStatus(claim domain.Claim) claimStatusResponse {
	step, ok := currentStep[claim.Status]
	if !ok {
		step = "Processing"
	}
	return claimStatusResponse{
		ClaimID:            claim.ClaimID,
		Status:             claim.Status,
		CurrentStep:        step,
		ProgressPercentage: statusProgress[claim.Status],
		Analysis:           claim.Analysis,
		UpdatedAt:          claim.UpdatedAt,
	}
}

func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var sub domain.ClaimSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	if violations := domain.ValidateSubmission(sub); len(violations) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid claim submission", "details": violations})
		return
	}

	now := time.Now()
	claim := domain.Claim{
		ClaimID:    newClaimID(),
		Submission: sub,
		Status:     domain.ClaimSubmitted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.store.CreateClaim(ctx, claim); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to create claim"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"claim_id":   claim.ClaimID,
		"status":     claim.Status,
		"message":    "Claim submitted successfully. Use the analyze endpoint to start processing.",
		"created_at": claim.CreatedAt,
	})
}

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request, claimID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if h.blob == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "document storage is not configured"})
		return
	}
	if _, err := h.store.GetClaim(ctx, claimID); err != nil {
		h.writeClaimError(w, err, "failed to fetch claim")
		return
	}

	if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid multipart payload"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file form field is required"})
		return
	}
	defer file.Close()

	if !validUploadFilename(header.Filename) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid filename"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(file, h.cfg.AllowedUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read file"})
		return
	}
	if int64(len(body)) > h.cfg.AllowedUploadBytes {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file exceeds size limit"})
		return
	}

	objectKey, err := h.blob.PutClaimDocument(ctx, claimID, header.Filename, body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to upload file"})
		return
	}

	keys, err := h.blob.ListClaimDocuments(ctx, claimID)
	if err == nil {
		if err := h.store.SetClaimMetadata(ctx, claimID, "document_keys", keys); err != nil {
			log.Printf("record document keys claim_id=%s: %v", claimID, err)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"claim_id":   claimID,
		"filename":   header.Filename,
		"object_key": objectKey,
	})
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request, claimID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.blob == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "document storage is not configured"})
		return
	}
	if _, err := h.store.GetClaim(ctx, claimID); err != nil {
		h.writeClaimError(w, err, "failed to fetch claim")
		return
	}

	keys, err := h.blob.ListClaimDocuments(ctx, claimID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to list documents"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_id": claimID, "documents": keys})
}

// AnalyzeClaim kicks off the workflow in the background and returns
// immediately. Progress is observable through the status endpoint; the status
// callback keeps the stored claim current as stages advance.
func (h *Handler) AnalyzeClaim(w http.ResponseWriter, r *http.Request, claimID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	claim, err := h.store.GetClaim(ctx, claimID)
	if err != nil {
		h.writeClaimError(w, err, "failed to fetch claim")
		return
	}

	if claim.Status != domain.ClaimSubmitted && claim.Status != domain.ClaimNeedsInfo {
		writeJSON(w, http.StatusConflict, map[string]any{
			"claim_id": claimID,
			"status":   "skipped",
			"message":  "Claim analysis already in progress or completed",
		})
		return
	}

	go func() {
		_, _, err := h.executor.ExecuteWorkflow(context.Background(), claim.Submission, claimID, func(status domain.ClaimStatus) {
			log.Printf("[%s] status updated to: %s", claimID, status)
		})
		switch {
		case errors.Is(err, workflow.ErrWorkflowActive), errors.Is(err, workflow.ErrNotResumable):
			log.Printf("[%s] analysis skipped: %v", claimID, err)
		case err != nil:
			log.Printf("[%s] analysis failed: %v", claimID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"claim_id": claimID,
		"status":   "processing",
		"message":  "Claim analysis started",
	})
}

func (h *Handler) GetClaimStatus(w http.ResponseWriter, r *http.Request, claimID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	claim, err := h.store.GetClaim(ctx, claimID)
	if err != nil {
		h.writeClaimError(w, err, "failed to fetch claim")
		return
	}
	writeJSON(w, http.StatusOK, claimStatus(claim))
}

func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	claims, err := h.store.ListClaims(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to list claims"})
		return
	}
	items := make([]claimStatusResponse, 0, len(claims))
	for _, claim := range claims {
		items = append(items, claimStatus(claim))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request, claimID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	claim, err := h.store.GetClaim(ctx, claimID)
	if err != nil {
		h.writeClaimError(w, err, "failed to fetch claim")
		return
	}
	if claim.Analysis == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "analysis not available yet"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id": claimID,
		"status":   claim.Status,
		"analysis": claim.Analysis,
	})
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request, claimID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	history, err := h.executor.GetWorkflowHistory(ctx, claimID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch history"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_id": claimID, "history": history})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.readier != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.readier.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) writeClaimError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, workflow.ErrClaimNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "claim not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": fallback})
}

func validUploadFilename(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	return !strings.ContainsAny(name, "/\\") && name != "." && name != ".."
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
