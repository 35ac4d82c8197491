package agents

import (
	"regexp"
	"strconv"
	"strings"

	"claims-orchestrator/internal/domain"
)

var (
	statusRe          = regexp.MustCompile(`(?i)STATUS:\s*(\w+)`)
	confidenceRe      = regexp.MustCompile(`(?i)CONFIDENCE:\s*([\d.]+)`)
	findingsRe        = regexp.MustCompile(`(?is)FINDINGS:\s*(.+?)(?:RECOMMENDATIONS:|$)`)
	recommendationsRe = regexp.MustCompile(`(?is)RECOMMENDATIONS:\s*(.+)`)
)

// ParseAgentResponse turns a free-text agent completion into a normalized
// AgentResult. Confidence is clamped to [0,1]; a response missing the STATUS
// line falls back to fallbackStatus and a response missing CONFIDENCE gets
// 0.5, mirroring how absent fields are treated as uncertain rather than
// failed.
func ParseAgentResponse(agentName, raw, fallbackStatus string) domain.AgentResult {
	result := domain.AgentResult{
		AgentName:       agentName,
		Status:          fallbackStatus,
		Confidence:      0.5,
		Findings:        strings.TrimSpace(raw),
		Recommendations: []string{},
	}

	if m := statusRe.FindStringSubmatch(raw); m != nil {
		result.Status = strings.ToLower(m[1])
	}
	if m := confidenceRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64); err == nil {
			result.Confidence = clamp01(v)
		}
	}
	if m := findingsRe.FindStringSubmatch(raw); m != nil {
		result.Findings = strings.TrimSpace(m[1])
	}
	if m := recommendationsRe.FindStringSubmatch(raw); m != nil {
		for _, rec := range strings.Split(m[1], ",") {
			if trimmed := strings.TrimSpace(rec); trimmed != "" {
				result.Recommendations = append(result.Recommendations, trimmed)
			}
		}
	}

	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
