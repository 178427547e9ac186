package services

import (
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// ExtractFacts turns research result items into parallel lists of facts and
// citations, preserving order. Items with no source are cited as "unknown"
// and items with no reliability get the default. Whitespace runs in a
// source collapse to one space so it stays on a single citation line.
func ExtractFacts(items []domain.ResultItem) ([]string, []domain.Citation) {
	facts := make([]string, 0, len(items))
	citations := make([]domain.Citation, 0, len(items))
	for _, item := range items {
		facts = append(facts, strings.TrimSpace(item.Content))
		citations = append(citations, domain.NewCitation(strings.Join(strings.Fields(item.Source), " "), item.Reliability))
	}
	return facts, citations
}
