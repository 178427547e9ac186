package services

import "github.com/custodia-labs/strata-cli/internal/core/domain"

// ConfidenceScore is the mean reliability of the citations, or 0 when there
// are none. It depends only on the reliabilities, not their order.
func ConfidenceScore(citations []domain.Citation) float64 {
	if len(citations) == 0 {
		return 0
	}
	var sum float64
	for _, c := range citations {
		sum += c.Reliability
	}
	return domain.ClampReliability(sum / float64(len(citations)))
}
