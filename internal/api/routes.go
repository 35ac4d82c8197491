package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/claims", h.SubmitClaim)
		r.Get("/claims", h.ListClaims)
		r.Route("/claims/{claimId}", func(r chi.Router) {
			r.Post("/documents", func(w http.ResponseWriter, r *http.Request) {
				h.UploadDocument(w, r, chi.URLParam(r, "claimId"))
			})
			r.Get("/documents", func(w http.ResponseWriter, r *http.Request) {
				h.ListDocuments(w, r, chi.URLParam(r, "claimId"))
			})
			r.Post("/analyze", func(w http.ResponseWriter, r *http.Request) {
				h.AnalyzeClaim(w, r, chi.URLParam(r, "claimId"))
			})
			r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
				h.GetClaimStatus(w, r, chi.URLParam(r, "claimId"))
			})
			r.Get("/analysis", func(w http.ResponseWriter, r *http.Request) {
				h.GetAnalysis(w, r, chi.URLParam(r, "claimId"))
			})
			r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
				h.GetHistory(w, r, chi.URLParam(r, "claimId"))
			})
		})
		r.Get("/reviews/pending", h.PendingReviews)
		r.Route("/reviews/{claimId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.ReviewDetail(w, r, chi.URLParam(r, "claimId"))
			})
			r.Post("/decision", func(w http.ResponseWriter, r *http.Request) {
				h.SubmitReviewDecision(w, r, chi.URLParam(r, "claimId"))
			})
		})
	})

	return r
}
