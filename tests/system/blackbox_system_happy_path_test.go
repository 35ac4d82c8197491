//go:build system

package system_test

import (
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"claims-orchestrator/internal/domain"
)

var terminalStatuses = []domain.ClaimStatus{
	domain.ClaimApproved,
	domain.ClaimRejected,
	domain.ClaimNeedsInfo,
	domain.ClaimReviewRequired,
}

var _ = Describe("System blackbox claim pipeline", Ordered, func() {
	var cfg systemTestConfig
	var baseURL string

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()
		baseURL = strings.TrimRight(cfg.APIBaseURL, "/")

		By("failing fast if the API is unreachable")
		Expect(waitForHTTPStatus(baseURL+"/healthz", 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(baseURL+"/readyz", 200, cfg.PreflightTimeout)).To(Succeed())
	})

	It("processes a submitted claim end to end over HTTP", func() {
		By("submitting a claim exactly like a client")
		submitted, code, err := submitClaim(baseURL, domain.ClaimSubmission{
			PolicyNumber:  "POL-778899",
			ClaimType:     domain.ClaimTypeAuto,
			ClaimAmount:   3400,
			IncidentDate:  "2026-08-20",
			Description:   "Side collision at a roundabout, driver door and mirror need replacement.",
			ClaimantName:  "Alex Muller",
			ClaimantEmail: "alex.muller@example.com",
			Documents:     []string{"police_report.pdf", "damage_photos.zip"},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(201))
		Expect(submitted.ClaimID).To(MatchRegexp(`^CLM-[0-9A-F]{8}$`))
		Expect(submitted.Status).To(Equal(domain.ClaimSubmitted))

		By("starting the analysis workflow")
		code, err = startAnalysis(baseURL, submitted.ClaimID)
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(202))

		By("polling status until the workflow reaches a decision")
		var lastStatus statusResponse
		Eventually(func() domain.ClaimStatus {
			var statusErr error
			lastStatus, statusErr = getClaimStatus(baseURL, submitted.ClaimID)
			Expect(statusErr).ToNot(HaveOccurred())
			return lastStatus.Status
		}, cfg.CompletionTimeout, cfg.StatusPollInterval).Should(BeElementOf(terminalStatuses))

		By("resolving a human review if the gate fired")
		if lastStatus.Status == domain.ClaimReviewRequired {
			pending, err := getPendingReviews(baseURL)
			Expect(err).ToNot(HaveOccurred())
			Expect(pending.Total).To(BeNumerically(">=", 1))

			result, code, err := submitDecision(baseURL, submitted.ClaimID, domain.ReviewDecision{
				Action:    domain.ReviewActionApprove,
				Reason:    "System test reviewer approval",
				AnalystID: "system-test",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal(200))
			Expect(result.Status).To(Equal(domain.ClaimApproved))
			Expect(result.AuditLogID).To(MatchRegexp(`^AUDIT-[0-9A-F]{8}$`))

			lastStatus, err = getClaimStatus(baseURL, submitted.ClaimID)
			Expect(err).ToNot(HaveOccurred())
			Expect(lastStatus.Status).To(Equal(domain.ClaimApproved))
		}

		By("checking the audit trail is complete and ordered")
		history, err := getClaimHistory(baseURL, submitted.ClaimID)
		Expect(err).ToNot(HaveOccurred())
		Expect(history.History).ToNot(BeEmpty())
		Expect(history.History[0].Stage).To(Equal(domain.StageIntake))
		for i := 1; i < len(history.History); i++ {
			Expect(history.History[i].Timestamp.Before(history.History[i-1].Timestamp)).To(BeFalse())
		}

		if lastStatus.Status == domain.ClaimApproved || lastStatus.Status == domain.ClaimRejected {
			Expect(history.History[len(history.History)-1].Stage).To(Equal(domain.StageCompleted))
			Expect(lastStatus.ProgressPercentage).To(Equal(100))
			Expect(lastStatus.Analysis).ToNot(BeNil())
		}
	})
})
