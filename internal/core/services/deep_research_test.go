package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/normalisers/markdown"
)

func tideQuestions(n int) []domain.ResearchQuestion {
	out := make([]domain.ResearchQuestion, n)
	for i := range out {
		out[i] = domain.ResearchQuestion{Question: "Tide question " + strings.Repeat("?", i+1)}
	}
	return out
}

func TestDeepResearchStep_FilesInsightsUnderFirstSection(t *testing.T) {
	provider := &fakeResearch{items: items(0.9, 0.7)}
	in := enhanceFixture()

	out, added, err := NewDeepResearchStep(provider, 5).Research(context.Background(), in, tideQuestions(2))
	require.NoError(t, err)

	assert.Equal(t, 2, added)
	assert.Equal(t, in.Version+1, out.Version)
	assert.Equal(t, []string{"Tide question ?", "Tide question ??"}, provider.queries)

	intro := out.Sections[0]
	require.Len(t, intro.Subsections, 2)
	sub := intro.Subsections[0]
	assert.Equal(t, "Insights on Tide question ?", sub.Title)
	assert.Equal(t, "Additional Research:\n- Fact number x\n- Fact number xx", sub.Content)
	assert.Len(t, sub.Citations, 2)
	assert.InDelta(t, 0.8, sub.ConfidenceScore, 1e-9)

	// The parent keeps its own evidence.
	assert.Equal(t, in.Sections[0].Citations, intro.Citations)
	assert.InDelta(t, in.Sections[0].ConfidenceScore, intro.ConfidenceScore, 1e-9)
	assert.Empty(t, in.Sections[0].Subsections)
}

func TestDeepResearchStep_BatchLimitAndRepeatQuestions(t *testing.T) {
	provider := &fakeResearch{items: items(0.6)}
	step := NewDeepResearchStep(provider, 2)

	once, _, err := step.Research(context.Background(), enhanceFixture(), tideQuestions(4))
	require.NoError(t, err)
	assert.Len(t, provider.queries, 2)

	twice, added, err := step.Research(context.Background(), once, tideQuestions(1))
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.Len(t, twice.Sections[0].Subsections, 2)
	assert.Len(t, twice.Sections[0].Subsections[0].Citations, 2)
}

func TestDeepResearchStep_NothingAdded(t *testing.T) {
	in := enhanceFixture()

	out, added, err := NewDeepResearchStep(&fakeResearch{}, 5).Research(context.Background(), in, tideQuestions(1))
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Same(t, in, out)

	out, added, err = NewDeepResearchStep(&fakeResearch{items: items(0.5)}, 5).Research(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Same(t, in, out)
}

func TestDeepResearchStep_Errors(t *testing.T) {
	t.Run("provider failure is skipped", func(t *testing.T) {
		provider := &fakeResearch{items: items(0.5), err: errors.New("timeout"), failOn: 1}
		out, added, err := NewDeepResearchStep(provider, 5).Research(context.Background(), enhanceFixture(), tideQuestions(2))
		require.NoError(t, err)
		assert.Equal(t, 1, added)
		assert.Equal(t, "Insights on Tide question ??", out.Sections[0].Subsections[0].Title)
	})

	t.Run("cost limit ends the pass", func(t *testing.T) {
		provider := &fakeResearch{err: domain.ErrCostLimitExceeded}
		_, _, err := NewDeepResearchStep(provider, 5).Research(context.Background(), enhanceFixture(), tideQuestions(2))
		assert.ErrorIs(t, err, domain.ErrCostLimitExceeded)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := NewDeepResearchStep(&fakeResearch{}, 5).Research(ctx, enhanceFixture(), tideQuestions(1))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("missing inputs", func(t *testing.T) {
		_, _, err := NewDeepResearchStep(&fakeResearch{}, 5).Research(context.Background(), nil, tideQuestions(1))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, _, err = NewDeepResearchStep(nil, 5).Research(context.Background(), enhanceFixture(), tideQuestions(1))
		assert.ErrorIs(t, err, domain.ErrResearchUnavailable)
	})
}

func TestDeepResearchStep_InsightsSurviveRoundTrip(t *testing.T) {
	provider := &fakeResearch{items: items(0.9)}
	questions := []domain.ResearchQuestion{{Question: "Why do spring tides\nhappen twice a month, and how large is the effect?"}}

	out, _, err := NewDeepResearchStep(provider, 5).Research(context.Background(), enhanceFixture(), questions)
	require.NoError(t, err)

	parsed := markdown.Parse(markdown.Serialize(out))
	require.Len(t, parsed.Sections[0].Subsections, 1)
	sub := parsed.Sections[0].Subsections[0]
	assert.Equal(t, "Insights on Why do spring tides happen twice a month, and how ...", sub.Title)
	assert.Len(t, sub.Citations, 1)
	assert.Len(t, parsed.Sections[0].Citations, 1)
}

func TestInsightsTitle(t *testing.T) {
	assert.Equal(t, "Insights on short", insightsTitle("short"))
	assert.Equal(t, "Insights on "+strings.Repeat("é", 50)+"...", insightsTitle(strings.Repeat("é", 51)))
}
