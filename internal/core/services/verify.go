package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// speculativeTerms are flagged as hedged language, in this order.
var speculativeTerms = []string{"might", "could", "possibly", "perhaps", "maybe"}

// Verifier scans top-level sections for weak evidence. It is a literal
// keyword scan, not language analysis.
type Verifier struct {
	Threshold float64
}

// NewVerifier creates a verifier with the given confidence threshold.
func NewVerifier(threshold float64) *Verifier {
	return &Verifier{Threshold: threshold}
}

// Verify returns doc unmodified together with one issue per finding:
// a score below the threshold, "claim" in a section with no citations,
// and each speculative term present.
func (v *Verifier) Verify(doc *domain.Document) (*domain.Document, []string) {
	if doc == nil {
		return nil, nil
	}
	var issues []string
	for _, s := range doc.Sections {
		if s.ConfidenceScore < v.Threshold {
			issues = append(issues, fmt.Sprintf("Section '%s' has low confidence (%.2f)", s.Title, s.ConfidenceScore))
		}

		content := strings.ToLower(s.Content)
		if strings.Contains(content, "claim") && len(s.Citations) == 0 {
			issues = append(issues, fmt.Sprintf("Section '%s' contains claims without citations", s.Title))
		}
		for _, term := range speculativeTerms {
			if strings.Contains(content, term) {
				issues = append(issues, fmt.Sprintf("Section '%s' contains speculative language ('%s')", s.Title, term))
			}
		}
	}
	return doc, issues
}
