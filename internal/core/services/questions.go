package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

const (
	defaultImportance = "Important for advancing the research"
	defaultInsights   = "Better understanding of the topic"

	// questionWindow bounds how far after a question line its importance
	// and insights lines are looked for.
	questionWindow = 500
)

var (
	fencedJSON    = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareQuestions = regexp.MustCompile(`(?s)\{\s*"research_questions"\s*:\s*\[.*?\]\s*\}`)
	questionLine  = regexp.MustCompile(`(?im)^\s*(?:\d+\.\s*)?(?:research )?question:\s*(.+?)\s*$`)
	importance    = regexp.MustCompile(`(?im)^\s*(?:importance|significance):\s*(.+?)\s*$`)
	insights      = regexp.MustCompile(`(?im)^\s*(?:expected insights|insights):\s*(.+?)\s*$`)
)

type questionEnvelope struct {
	ResearchQuestions []domain.ResearchQuestion `json:"research_questions"`
}

// ExtractResearchQuestions reads the open questions a rewrite raised. It
// accepts a ```json block or a bare object with a "research_questions"
// array, and otherwise falls back to "Question:" lines. Questions without
// text are dropped.
func ExtractResearchQuestions(reply string) []domain.ResearchQuestion {
	if len(strings.TrimSpace(reply)) < 10 {
		return nil
	}

	for _, m := range fencedJSON.FindAllStringSubmatch(reply, -1) {
		if qs, ok := decodeQuestions(m[1]); ok {
			return qs
		}
	}
	if m := bareQuestions.FindString(reply); m != "" {
		if qs, ok := decodeQuestions(m); ok {
			return qs
		}
	}

	var out []domain.ResearchQuestion
	for _, loc := range questionLine.FindAllStringSubmatchIndex(reply, -1) {
		q := domain.ResearchQuestion{
			Question:         reply[loc[2]:loc[3]],
			Importance:       defaultImportance,
			ExpectedInsights: defaultInsights,
		}
		window := reply[loc[1]:min(loc[1]+questionWindow, len(reply))]
		if next := questionLine.FindStringIndex(window); next != nil {
			window = window[:next[0]]
		}
		if m := importance.FindStringSubmatch(window); m != nil {
			q.Importance = m[1]
		}
		if m := insights.FindStringSubmatch(window); m != nil {
			q.ExpectedInsights = m[1]
		}
		out = append(out, q)
	}
	return out
}

func decodeQuestions(text string) ([]domain.ResearchQuestion, bool) {
	var env questionEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		logger.Debug("Ignoring unparseable research questions block: %v", err)
		return nil, false
	}
	if env.ResearchQuestions == nil {
		return nil, false
	}
	out := make([]domain.ResearchQuestion, 0, len(env.ResearchQuestions))
	for _, q := range env.ResearchQuestions {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question != "" {
			out = append(out, q)
		}
	}
	return out, true
}

// stripQuestionBlocks removes machine-readable research question blocks so
// they are not parsed as document content.
func stripQuestionBlocks(reply string) string {
	out := fencedJSON.ReplaceAllStringFunc(reply, func(block string) string {
		if strings.Contains(block, `"research_questions"`) {
			return ""
		}
		return block
	})
	return bareQuestions.ReplaceAllString(out, "")
}

// questionTexts returns the question strings in order.
func questionTexts(qs []domain.ResearchQuestion) []string {
	if len(qs) == 0 {
		return nil
	}
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Question
	}
	return out
}

// normaliseQuestion folds case, ASCII punctuation and spacing for comparison.
func normaliseQuestion(q string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r < 0x80
	}), " ")
}
