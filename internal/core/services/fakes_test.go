package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
)

// fakeLLM answers outline-structuring calls with outlineReply and echoes
// the document for rewrite calls unless rewrite is set.
type fakeLLM struct {
	mu           sync.Mutex
	outlineReply string
	rewrite      func(text string) (string, error)
	outlineErr   error
	calls        [][]driven.ChatMessage
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	return prompt, nil
}

func (f *fakeLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()

	_, rest := driven.SplitSystem(messages)
	user := ""
	if len(rest) > 0 {
		user = rest[len(rest)-1].Content
	}
	if strings.HasPrefix(user, "Title: ") {
		if f.outlineErr != nil {
			return "", f.outlineErr
		}
		return f.outlineReply, nil
	}
	if f.rewrite != nil {
		return f.rewrite(user)
	}
	return user, nil
}

func (f *fakeLLM) ModelName() string { return "fake-model" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeResearch returns the same items for every query and records queries.
type fakeResearch struct {
	mu      sync.Mutex
	items   []domain.ResultItem
	err     error
	failOn  int
	queries []string
}

func (f *fakeResearch) Research(_ context.Context, query string) ([]domain.ResultItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil && (f.failOn == 0 || len(f.queries) == f.failOn) {
		return nil, f.err
	}
	return append([]domain.ResultItem(nil), f.items...), nil
}

func (f *fakeResearch) Name() string { return "fake" }
func (f *fakeResearch) Ping(_ context.Context) error { return nil }
func (f *fakeResearch) Close() error { return nil }

// fakePrompts serves templates from a map.
type fakePrompts struct {
	prompts map[string]string
}

func (f *fakePrompts) Load(name string) (string, error) {
	p, ok := f.prompts[name]
	if !ok {
		return "", errors.New("prompt not found")
	}
	return p, nil
}

func (f *fakePrompts) Reload() {}

// recordingObserver captures orchestrator events.
type recordingObserver struct {
	seqs    []int
	steps   []domain.Step
	reports []domain.IterationReport
}

func (r *recordingObserver) OnVersion(seq int, step domain.Step, _ *domain.Document) {
	r.seqs = append(r.seqs, seq)
	r.steps = append(r.steps, step)
}

func (r *recordingObserver) OnIteration(report domain.IterationReport) {
	r.reports = append(r.reports, report)
}

func twoSectionOutline() string {
	return "## Intro\n\nOpening words.\n\n## Body\n\nMain words."
}

func items(reliabilities ...float64) []domain.ResultItem {
	out := make([]domain.ResultItem, len(reliabilities))
	for i, r := range reliabilities {
		out[i] = domain.ResultItem{
			Content:     "Fact number " + strings.Repeat("x", i+1),
			Source:      "https://source.example/" + strings.Repeat("s", i+1),
			Reliability: reliability(r),
		}
	}
	return out
}
