package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

func seedRun(t *testing.T, store *memory.RunStore, id string, docs ...*domain.Document) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, &domain.Run{
		ID:        id,
		Title:     "Run " + id,
		Versions:  len(docs),
		CreatedAt: time.Now(),
	}))
	for i, doc := range docs {
		require.NoError(t, store.AppendVersion(ctx, id, i, doc))
	}
}

func versionDoc(version int, sections ...domain.Section) *domain.Document {
	doc := domain.NewDocument("Doc")
	doc.Version = version
	doc.Sections = sections
	return doc
}

func TestHistoryService_Get(t *testing.T) {
	store := memory.NewRunStore()
	seedRun(t, store, "abc-111")
	seedRun(t, store, "abc-222")
	seedRun(t, store, "def-333")
	svc := NewHistoryService(store)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		want    string
		wantErr error
	}{
		{"exact", "abc-111", "abc-111", nil},
		{"unique prefix", "def", "def-333", nil},
		{"ambiguous prefix", "abc", "", domain.ErrInvalidInput},
		{"no match", "zzz", "", domain.ErrNotFound},
		{"blank", "  ", "", domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := svc.Get(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, run.ID)
		})
	}
}

func TestHistoryService_Versions(t *testing.T) {
	store := memory.NewRunStore()
	seedRun(t, store, "run-1", versionDoc(1), versionDoc(2), versionDoc(3))
	svc := NewHistoryService(store)
	ctx := context.Background()

	docs, err := svc.Versions(ctx, "run")
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	last, err := svc.Version(ctx, "run-1", -1)
	require.NoError(t, err)
	assert.Equal(t, 3, last.Version)

	first, err := svc.Version(ctx, "run-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	_, err = svc.Version(ctx, "run-1", 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Version(ctx, "run-1", -4)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryService_ListAndDelete(t *testing.T) {
	store := memory.NewRunStore()
	seedRun(t, store, "one", versionDoc(1))
	seedRun(t, store, "two")
	svc := NewHistoryService(store)
	ctx := context.Background()

	runs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	require.NoError(t, svc.Delete(ctx, "one"))
	runs, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "two", runs[0].ID)

	assert.ErrorIs(t, svc.Delete(ctx, "one"), domain.ErrNotFound)
}

func TestHistoryService_Report(t *testing.T) {
	store := memory.NewRunStore()
	seedRun(t, store, "r", versionDoc(1, domain.Section{Title: "A"}))
	svc := NewHistoryService(store)

	report, err := svc.Report(context.Background(), "r")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(report, "# Version History\n\n## Version 1\n\n"))
}

func TestVersionHistoryReport_Empty(t *testing.T) {
	assert.Equal(t, "# Version History\n\nNo versions available.", VersionHistoryReport(nil))
}

func TestVersionHistoryReport_Changes(t *testing.T) {
	v1 := versionDoc(1,
		domain.Section{Title: "Intro", Content: strings.Repeat("a", 100), ConfidenceScore: 0.5},
		domain.Section{Title: "Old", Content: "x"},
		domain.Section{Title: "Stable", Content: strings.Repeat("s", 100), ConfidenceScore: 0.5},
	)
	v2 := versionDoc(2,
		domain.Section{
			Title:           "Intro",
			Content:         strings.Repeat("a", 150),
			ConfidenceScore: 0.75,
			Citations:       []domain.Citation{{Source: "s", Reliability: 0.75}},
		},
		domain.Section{Title: "Stable", Content: strings.Repeat("s", 103), ConfidenceScore: 0.5},
		domain.Section{Title: "New", Subsections: []domain.Section{{Title: "Sub"}}},
	)

	report := VersionHistoryReport([]*domain.Document{v1, v2})

	want := "# Version History\n\n" +
		"## Version 1\n\n" +
		"### Section Summaries\n\n" +
		"- **Intro** (Confidence: 0.50)\n" +
		"- **Old** (Confidence: 0.00)\n" +
		"- **Stable** (Confidence: 0.50)\n" +
		"\n---\n\n" +
		"## Version 2\n\n" +
		"### Changes from Previous Version\n\n" +
		"#### Added Sections\n\n- New\n\n" +
		"#### Removed Sections\n\n- Old\n\n" +
		"#### Modified Sections\n\n- Intro: Expanded by 50.0%, Confidence Increased by 0.25\n\n" +
		"**Overall Confidence**: 0.42 (Increased by 0.08)\n\n" +
		"### Section Summaries\n\n" +
		"- **Intro** (Confidence: 0.75)\n" +
		"  - Citations: 1\n" +
		"- **Stable** (Confidence: 0.50)\n" +
		"- **New** (Confidence: 0.00)\n" +
		"  - Subsections: 1\n" +
		"\n---\n\n"
	assert.Equal(t, want, report)
}
