package domain

import "strings"

const minDescriptionChars = 20

// ValidateSubmission checks the structural pre-conditions for intake. All
// violations are collected and returned together; intake reports them as one
// failure rather than stopping at the first.
func ValidateSubmission(sub ClaimSubmission) []string {
	violations := make([]string, 0)

	if strings.TrimSpace(sub.PolicyNumber) == "" {
		violations = append(violations, "Policy number is required")
	} else if len(sub.PolicyNumber) < 3 {
		violations = append(violations, "Policy number format invalid")
	}
	if sub.ClaimType == "" {
		violations = append(violations, "Claim type is required")
	} else if !sub.ClaimType.Valid() {
		violations = append(violations, "Unknown claim type: "+string(sub.ClaimType))
	}
	if sub.ClaimAmount <= 0 {
		violations = append(violations, "Claim amount must be positive")
	}
	if strings.TrimSpace(sub.IncidentDate) == "" {
		violations = append(violations, "Incident date is required")
	}
	if len(sub.Description) < minDescriptionChars {
		violations = append(violations, "Description must be at least 20 characters")
	}

	return violations
}

func SubmissionValid(sub ClaimSubmission) bool {
	return len(ValidateSubmission(sub)) == 0
}
