package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
)

func finishedOutcome() *driving.ResearchOutcome {
	final := &domain.Document{Title: "Tides", Version: 5}
	return &driving.ResearchOutcome{
		Run: &domain.Run{ID: "run-1"},
		Result: &domain.RunResult{
			Final:   final,
			History: []*domain.Document{{}, {}, {}, {}, final},
			Iterations: []domain.IterationReport{
				{Iteration: 1, Issues: []string{"Section 'Moon' has low confidence (0.50)"}},
				{Iteration: 2, Scores: []domain.SectionScore{{Title: "Moon", Score: 0.9}}},
			},
			StopReason: domain.StopConverged,
			Cost:       0.12,
		},
	}
}

func TestServer_handleResearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the final document and last report", func(t *testing.T) {
		research := &mockResearchService{outcome: finishedOutcome()}
		server, err := NewServer(&Ports{Research: research})
		require.NoError(t, err)

		input := ResearchInput{Title: "Tides", Outline: "Moon", MaxIterations: 3, Format: "markdown"}
		_, output, err := server.handleResearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "run-1", output.RunID)
		assert.Equal(t, "converged", output.StopReason)
		assert.Equal(t, 2, output.Iterations)
		assert.Equal(t, 5, output.Versions)
		assert.Equal(t, 0.12, output.Cost)
		assert.Equal(t, []domain.SectionScore{{Title: "Moon", Score: 0.9}}, output.Scores)
		assert.Empty(t, output.Issues)
		assert.Equal(t, "# Tides\n", output.Document)
		assert.Equal(t, []string{"markdown"}, research.formats)
	})

	t.Run("defaults the confidence threshold", func(t *testing.T) {
		research := &mockResearchService{outcome: finishedOutcome()}
		server, err := NewServer(&Ports{Research: research})
		require.NoError(t, err)

		_, _, err = server.handleResearch(ctx, nil, ResearchInput{Title: "Tides"})

		require.NoError(t, err)
		assert.Equal(t, domain.DefaultConfidenceThreshold, research.lastReq.ConfidenceThreshold)
		assert.Equal(t, 0, research.lastReq.MaxIterations)
	})

	t.Run("omitted threshold uses stored settings", func(t *testing.T) {
		stored := domain.DefaultAppSettings()
		stored.Loop.ConfidenceThreshold = 0.65
		research := &mockResearchService{outcome: finishedOutcome()}
		server, err := NewServer(&Ports{Research: research, Settings: &mockSettingsService{settings: &stored}})
		require.NoError(t, err)

		_, _, err = server.handleResearch(ctx, nil, ResearchInput{Title: "Tides"})

		require.NoError(t, err)
		assert.Equal(t, 0.65, research.lastReq.ConfidenceThreshold)
	})

	t.Run("unreadable settings fall back to the default", func(t *testing.T) {
		research := &mockResearchService{outcome: finishedOutcome()}
		settings := &mockSettingsService{err: errors.New("disk gone")}
		server, err := NewServer(&Ports{Research: research, Settings: settings})
		require.NoError(t, err)

		_, _, err = server.handleResearch(ctx, nil, ResearchInput{Title: "Tides"})

		require.NoError(t, err)
		assert.Equal(t, domain.DefaultConfidenceThreshold, research.lastReq.ConfidenceThreshold)
	})

	t.Run("explicit zero threshold is honoured", func(t *testing.T) {
		stored := domain.DefaultAppSettings()
		stored.Loop.ConfidenceThreshold = 0.65
		research := &mockResearchService{outcome: finishedOutcome()}
		server, err := NewServer(&Ports{Research: research, Settings: &mockSettingsService{settings: &stored}})
		require.NoError(t, err)

		zero := 0.0
		_, _, err = server.handleResearch(ctx, nil, ResearchInput{Title: "Tides", ConfidenceThreshold: &zero})

		require.NoError(t, err)
		assert.Zero(t, research.lastReq.ConfidenceThreshold)
	})

	t.Run("reports call counts and open questions", func(t *testing.T) {
		outcome := finishedOutcome()
		outcome.Result.LLMCalls = 3
		outcome.Result.ResearchCalls = 4
		outcome.Result.Iterations[1].Questions = []string{"How strong is the lunar pull?"}
		server, err := NewServer(&Ports{Research: &mockResearchService{outcome: outcome}})
		require.NoError(t, err)

		_, output, err := server.handleResearch(ctx, nil, ResearchInput{Title: "Tides"})

		require.NoError(t, err)
		assert.Equal(t, 3, output.LLMCalls)
		assert.Equal(t, 4, output.ResearchCalls)
		assert.Equal(t, []string{"How strong is the lunar pull?"}, output.Questions)
	})

	t.Run("failed run names the run", func(t *testing.T) {
		research := &mockResearchService{
			outcome: &driving.ResearchOutcome{Run: &domain.Run{ID: "run-9"}},
			err:     domain.ErrProviderFailure,
		}
		server, err := NewServer(&Ports{Research: research})
		require.NoError(t, err)

		_, _, err = server.handleResearch(ctx, nil, ResearchInput{Title: "Tides"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrProviderFailure)
		assert.Contains(t, err.Error(), "run-9")
	})

	t.Run("export failure is returned", func(t *testing.T) {
		research := &mockResearchService{outcome: finishedOutcome(), exportErr: domain.ErrUnsupportedType}
		server, err := NewServer(&Ports{Research: research})
		require.NoError(t, err)

		_, output, err := server.handleResearch(ctx, nil, ResearchInput{Title: "Tides", Format: "pdf"})

		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
		assert.Equal(t, "run-1", output.RunID)
	})
}

func TestServer_handleListRuns(t *testing.T) {
	ctx := context.Background()

	t.Run("nil history returns empty list", func(t *testing.T) {
		server, err := NewServer(&Ports{Research: &mockResearchService{}})
		require.NoError(t, err)

		_, output, err := server.handleListRuns(ctx, nil, ListRunsInput{})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.NotNil(t, output.Runs)
	})

	t.Run("applies limit", func(t *testing.T) {
		created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		history := &mockHistoryService{runs: []domain.Run{
			{ID: "a", Title: "First", Status: domain.RunStatusCompleted, StopReason: domain.StopConverged, CreatedAt: created},
			{ID: "b", Title: "Second", Status: domain.RunStatusFailed},
		}}
		server, err := NewServer(&Ports{Research: &mockResearchService{}, History: history})
		require.NoError(t, err)

		_, output, err := server.handleListRuns(ctx, nil, ListRunsInput{Limit: 1})

		require.NoError(t, err)
		require.Equal(t, 1, output.Count)
		assert.Equal(t, "a", output.Runs[0].ID)
		assert.Equal(t, "completed", output.Runs[0].Status)
		assert.Equal(t, "converged", output.Runs[0].StopReason)
		assert.Equal(t, "2026-03-01T12:00:00Z", output.Runs[0].CreatedAt)
	})

	t.Run("returns error on history failure", func(t *testing.T) {
		history := &mockHistoryService{err: errors.New("database locked")}
		server, err := NewServer(&Ports{Research: &mockResearchService{}, History: history})
		require.NoError(t, err)

		_, _, err = server.handleListRuns(ctx, nil, ListRunsInput{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "database locked")
	})
}
