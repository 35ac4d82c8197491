package agents

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"claims-orchestrator/internal/domain"
)

const maxSimilarResults = 5

// MemoryClaimsIndex is an in-process similar-claims lookup. It stands in for
// an external vector index behind the same contract: given a submission,
// return up to five prior claims that look alike. Similarity is a cheap
// type/amount/token-overlap score, which is enough for the fraud agent's
// prompt context.
type MemoryClaimsIndex struct {
	mu     sync.RWMutex
	claims []indexedClaim
}

type indexedClaim struct {
	claimID    string
	claimType  domain.ClaimType
	amount     float64
	desc       string
	descTokens map[string]bool
	decision   string
}

func NewMemoryClaimsIndex() *MemoryClaimsIndex {
	return &MemoryClaimsIndex{}
}

func (m *MemoryClaimsIndex) FindSimilar(_ context.Context, sub domain.ClaimSubmission) ([]domain.SimilarClaim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := tokenize(sub.Description)
	scored := make([]domain.SimilarClaim, 0, len(m.claims))
	for _, c := range m.claims {
		score := similarity(sub, tokens, c)
		if score <= 0 {
			continue
		}
		scored = append(scored, domain.SimilarClaim{
			Description:     c.desc,
			Amount:          c.amount,
			Status:          c.decision,
			ClaimType:       string(c.claimType),
			SimilarityScore: score,
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].SimilarityScore > scored[j].SimilarityScore
	})
	if len(scored) > maxSimilarResults {
		scored = scored[:maxSimilarResults]
	}
	return scored, nil
}

func (m *MemoryClaimsIndex) StoreClaim(_ context.Context, claimID string, sub domain.ClaimSubmission, decision domain.AgentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims = append(m.claims, indexedClaim{
		claimID:    claimID,
		claimType:  sub.ClaimType,
		amount:     sub.ClaimAmount,
		desc:       sub.Description,
		descTokens: tokenize(sub.Description),
		decision:   decision.Status,
	})
	return nil
}

func similarity(sub domain.ClaimSubmission, tokens map[string]bool, c indexedClaim) float64 {
	score := 0.0
	if sub.ClaimType == c.claimType {
		score += 0.4
	}
	if sub.ClaimAmount > 0 && c.amount > 0 {
		ratio := math.Min(sub.ClaimAmount, c.amount) / math.Max(sub.ClaimAmount, c.amount)
		score += 0.2 * ratio
	}
	score += 0.4 * overlap(tokens, c.descTokens)
	return score
}

// overlap is the Jaccard index of the two token sets.
func overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for tok := range a {
		if b[tok] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()")
		if len(tok) >= 3 {
			out[tok] = true
		}
	}
	return out
}
