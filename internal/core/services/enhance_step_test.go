package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/normalisers/markdown"
)

func enhanceFixture() *domain.Document {
	doc := domain.NewDocument("Test Doc")
	doc.Version = 2
	doc.Metadata["topic"] = "testing"
	doc.Sections = []domain.Section{
		{
			Title:           "Intro",
			Content:         "Intro text.",
			ConfidenceScore: 0.9,
			Citations:       []domain.Citation{{Source: "a", Reliability: 0.9}},
		},
		{
			Title:           "Body",
			Content:         "Body text.",
			ConfidenceScore: 0.7,
			Citations:       []domain.Citation{{Source: "b", Reliability: 0.7}},
		},
	}
	return doc
}

func TestEnhancementStep_EchoPreservesDocument(t *testing.T) {
	llm := &fakeLLM{}
	step := NewEnhancementStep(llm, markdown.New(), nil, driven.ChatOptions{})
	in := enhanceFixture()

	out, err := step.Enhance(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, in.Version+1, out.Version)
	assert.Equal(t, "Test Doc", out.Title)
	assert.Equal(t, map[string]string{"topic": "testing"}, out.Metadata)
	require.Len(t, out.Sections, 2)
	assert.Equal(t, in.Sections[0].Citations, out.Sections[0].Citations)
	assert.InDelta(t, 0.9, out.Sections[0].ConfidenceScore, 0.005)

	require.Equal(t, 1, llm.callCount())
	system, rest := driven.SplitSystem(llm.calls[0])
	assert.Equal(t, builtinPrompts[driven.PromptEnhanceSystem], system)
	assert.Equal(t, markdown.Serialize(in), rest[0].Content)
}

func TestEnhancementStep_CarriesEvidenceByTitle(t *testing.T) {
	llm := &fakeLLM{rewrite: func(string) (string, error) {
		return "```markdown\n# Another Title\n\n## Intro\n\nRewritten intro.\n\n## Conclusion\n\nNew.\n```", nil
	}}
	step := NewEnhancementStep(llm, markdown.New(), nil, driven.ChatOptions{})

	out, err := step.Enhance(context.Background(), enhanceFixture())
	require.NoError(t, err)

	assert.Equal(t, "Test Doc", out.Title)
	assert.Equal(t, []string{"Intro", "Conclusion"}, out.SectionTitles())
	assert.Equal(t, "Rewritten intro.", out.Sections[0].Content)
	assert.Len(t, out.Sections[0].Citations, 1)
	assert.InDelta(t, 0.9, out.Sections[0].ConfidenceScore, 1e-9)
	assert.Empty(t, out.Sections[1].Citations)
	assert.Zero(t, out.Sections[1].ConfidenceScore)
}

func TestEnhancementStep_IgnoresRewrittenScores(t *testing.T) {
	in := domain.NewDocument("Test Doc")
	in.Version = 2
	in.Sections = []domain.Section{{
		Title:           "Intro",
		Content:         "Weakly supported.",
		ConfidenceScore: 0.3,
		Citations:       []domain.Citation{{Source: "a", Reliability: 0.3}},
	}}
	llm := &fakeLLM{rewrite: func(string) (string, error) {
		return "## Intro\n\nNow very confident.\n\nConfidence Score: 0.99\n\n### Citations\n\n" +
			"1. a (Reliability: 0.95)\n2. made-up (Reliability: 1.0)\n", nil
	}}
	step := NewEnhancementStep(llm, markdown.New(), nil, driven.ChatOptions{})

	out, err := step.Enhance(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, out.Sections, 1)
	assert.Equal(t, "Now very confident.", out.Sections[0].Content)
	assert.InDelta(t, 0.3, out.Sections[0].ConfidenceScore, 1e-9)
	assert.Equal(t, []domain.Citation{{Source: "a", Reliability: 0.3}}, out.Sections[0].Citations)

	_, issues := NewVerifier(0.8).Verify(out)
	assert.NotEmpty(t, issues)
	assert.Equal(t, domain.DecisionContinue, ThresholdPolicy{}.Decide(TerminationInput{Document: out, Issues: issues}))
}

func TestEnhancementStep_ScoresNewSectionsFromCitations(t *testing.T) {
	llm := &fakeLLM{rewrite: func(string) (string, error) {
		return "## Intro\n\nIntro.\n\n## Outlook\n\nGuesswork.\n\nConfidence Score: 0.95\n\n" +
			"### Subsection\n\nDetail.\n\nConfidence Score: 0.9\n", nil
	}}
	step := NewEnhancementStep(llm, markdown.New(), nil, driven.ChatOptions{})

	out, err := step.Enhance(context.Background(), enhanceFixture())
	require.NoError(t, err)

	outlook, ok := out.FindSection("Outlook")
	require.True(t, ok)
	assert.Zero(t, outlook.ConfidenceScore)
	require.Len(t, outlook.Subsections, 1)
	assert.Zero(t, outlook.Subsections[0].ConfidenceScore)
}

func TestEnhancementStep_DoesNotModifyInput(t *testing.T) {
	step := NewEnhancementStep(&fakeLLM{}, markdown.New(), nil, driven.ChatOptions{})
	in := enhanceFixture()
	snapshot := in.Clone()

	out, err := step.Enhance(context.Background(), in)
	require.NoError(t, err)
	out.Metadata["topic"] = "changed"
	out.Sections[0].Citations[0].Source = "changed"

	assert.Equal(t, snapshot, in)
}

func TestEnhancementStep_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rewrite func(string) (string, error)
		want    error
	}{
		{"blank reply", func(string) (string, error) { return "  \n", nil }, domain.ErrProviderFailure},
		{"provider error", func(string) (string, error) { return "", errors.New("timeout") }, domain.ErrProviderFailure},
		{"cost limit", func(string) (string, error) { return "", domain.ErrCostLimitExceeded }, domain.ErrCostLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := NewEnhancementStep(&fakeLLM{rewrite: tt.rewrite}, markdown.New(), nil, driven.ChatOptions{})
			_, err := step.Enhance(context.Background(), enhanceFixture())
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("nil llm", func(t *testing.T) {
		step := NewEnhancementStep(nil, markdown.New(), nil, driven.ChatOptions{})
		_, err := step.Enhance(context.Background(), enhanceFixture())
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})
}

func TestResearchThenEnhance_VersionAdvancesByTwo(t *testing.T) {
	in := researchFixture()
	researched, err := NewResearchStep(&fakeResearch{items: items(0.8)}, nil).Research(context.Background(), in)
	require.NoError(t, err)
	enhanced, err := NewEnhancementStep(&fakeLLM{}, markdown.New(), nil, driven.ChatOptions{}).
		Enhance(context.Background(), researched)
	require.NoError(t, err)

	assert.Equal(t, in.Version+2, enhanced.Version)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "## A\n", stripCodeFence("```markdown\n## A\n```"))
	assert.Equal(t, "## A\n", stripCodeFence("```\n## A\n```"))
	assert.Equal(t, "plain", stripCodeFence("plain"))
	assert.Equal(t, "```", stripCodeFence("```"))
}
