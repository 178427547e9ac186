package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/normalisers"
	"github.com/custodia-labs/strata-cli/internal/normalisers/markdown"
)

func newTestResearchService(llm *fakeLLM, research *fakeResearch) (*ResearchService, *memory.RunStore) {
	settings := domain.DefaultAppSettings()
	store := memory.NewRunStore()
	svc := NewResearchService(llm, research, markdown.New(), nil, &settings)
	svc.SetRunStore(store)
	svc.SetExporters(normalisers.DefaultRegistry())
	return svc, store
}

func TestResearchService_Research_PersistsRun(t *testing.T) {
	svc, store := newTestResearchService(&fakeLLM{outlineReply: twoSectionOutline()}, &fakeResearch{items: items(0.5)})
	obs := &recordingObserver{}

	outcome, err := svc.Research(context.Background(), testRequest(1), obs)
	require.NoError(t, err)

	run := outcome.Run
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, domain.StopMaxIterations, run.StopReason)
	assert.Equal(t, 1, run.Iterations)
	assert.Equal(t, 3, run.Versions)
	assert.Greater(t, run.Cost, 0.0)

	stored, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, stored.Status)

	versions, err := store.ListVersions(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, outcome.Result.Final, versions[2])

	assert.Len(t, obs.seqs, 3)
	assert.Len(t, obs.reports, 1)
}

func TestResearchService_Research_DefaultIterations(t *testing.T) {
	svc, _ := newTestResearchService(&fakeLLM{outlineReply: twoSectionOutline()}, &fakeResearch{items: items(0.1)})

	req := testRequest(0)
	outcome, err := svc.Research(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMaxIterations, outcome.Run.MaxIterations)
	assert.Len(t, outcome.Result.Iterations, domain.DefaultMaxIterations)
}

func TestResearchService_Research_Validation(t *testing.T) {
	svc, store := newTestResearchService(&fakeLLM{}, &fakeResearch{})

	_, err := svc.Research(context.Background(), testRequest(11), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	req := testRequest(1)
	req.ConfidenceThreshold = 1.5
	_, err = svc.Research(context.Background(), req, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestResearchService_Research_FailedRunIsRecorded(t *testing.T) {
	svc, store := newTestResearchService(
		&fakeLLM{outlineReply: twoSectionOutline()},
		&fakeResearch{err: errors.New("down")},
	)

	outcome, err := svc.Research(context.Background(), testRequest(2), nil)
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	require.NotNil(t, outcome)

	stored, getErr := store.GetRun(context.Background(), outcome.Run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.RunStatusFailed, stored.Status)
	assert.Equal(t, domain.StopError, stored.StopReason)
	assert.Contains(t, stored.Error, "down")
	assert.Equal(t, 1, stored.Versions)
}

func TestResearchService_Research_BudgetOverride(t *testing.T) {
	svc, _ := newTestResearchService(&fakeLLM{outlineReply: twoSectionOutline()}, &fakeResearch{items: items(0.1)})

	req := testRequest(5)
	req.Budget = 0.012
	outcome, err := svc.Research(context.Background(), req, nil)

	require.ErrorIs(t, err, domain.ErrCostLimitExceeded)
	assert.Equal(t, domain.StopCostLimit, outcome.Run.StopReason)
	assert.LessOrEqual(t, outcome.Run.Cost, 0.012)
}

func TestResearchService_Research_WithoutStore(t *testing.T) {
	svc := NewResearchService(&fakeLLM{outlineReply: twoSectionOutline()}, &fakeResearch{}, markdown.New(), nil, nil)

	outcome, err := svc.Research(context.Background(), testRequest(1), nil)
	require.NoError(t, err)
	assert.Len(t, outcome.Result.History, 3)
}

func TestResearchService_Export(t *testing.T) {
	doc := domain.NewDocument("X")
	doc.Sections = []domain.Section{{Title: "A"}}

	svc, _ := newTestResearchService(&fakeLLM{}, &fakeResearch{})

	md, err := svc.Export(doc, "")
	require.NoError(t, err)
	assert.Equal(t, "# X\n\n## A\n\nConfidence Score: 0.00\n\n", string(md))

	js, err := svc.Export(doc, "JSON")
	require.NoError(t, err)
	assert.Contains(t, string(js), `"title": "X"`)

	_, err = svc.Export(doc, "pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = svc.Export(nil, "markdown")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Contains(t, svc.Formats(), "yaml")

	bare := NewResearchService(&fakeLLM{}, &fakeResearch{}, markdown.New(), nil, nil)
	md, err = bare.Export(doc, "md")
	require.NoError(t, err)
	assert.Equal(t, markdown.Serialize(doc), string(md))
	_, err = bare.Export(doc, "json")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Equal(t, []string{"markdown"}, bare.Formats())
}

func TestResearchService_ResolveFormat(t *testing.T) {
	svc := NewResearchService(&fakeLLM{}, &fakeResearch{}, markdown.New(), nil, nil)
	svc.SetExporters(normalisers.DefaultRegistry())

	for format, want := range map[string]string{"": "markdown", "md": "markdown", "YAML": "yaml", "yml": "yaml", "json": "json"} {
		got, err := svc.ResolveFormat(format)
		require.NoError(t, err, format)
		assert.Equal(t, want, got, format)
	}
	_, err := svc.ResolveFormat("docx")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	bare := NewResearchService(&fakeLLM{}, &fakeResearch{}, markdown.New(), nil, nil)
	got, err := bare.ResolveFormat(" MD ")
	require.NoError(t, err)
	assert.Equal(t, "markdown", got)
	_, err = bare.ResolveFormat("yml")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}
