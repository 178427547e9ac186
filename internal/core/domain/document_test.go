package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestNewCitation(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		reliability *float64
		want        Citation
	}{
		{"explicit", "https://a.example", ptr(0.9), Citation{"https://a.example", 0.9}},
		{"default reliability", "paper", nil, Citation{"paper", 0.5}},
		{"empty source", "", ptr(0.7), Citation{"unknown", 0.7}},
		{"clamped high", "x", ptr(1.4), Citation{"x", 1}},
		{"clamped low", "x", ptr(-0.2), Citation{"x", 0}},
		{"nan", "x", ptr(math.NaN()), Citation{"x", 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewCitation(tt.source, tt.reliability))
		})
	}
}

func sampleDocument() *Document {
	return &Document{
		Title:   "Doc",
		Version: 3,
		Sections: []Section{
			{
				Title:           "Intro",
				Content:         "Opening text",
				ConfidenceScore: 0.9,
				Citations:       []Citation{{"a", 0.9}},
				Subsections: []Section{
					{Title: "Background", Content: "bg", Citations: []Citation{{"b", 0.4}}},
				},
			},
			{Title: "Body", Content: "main", ConfidenceScore: 0.5},
		},
		Metadata: map[string]string{"run": "r1"},
	}
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := sampleDocument()
	clone := doc.Clone()
	require.Equal(t, doc, clone)

	clone.Sections[0].Citations[0].Source = "changed"
	clone.Sections[0].Citations = append(clone.Sections[0].Citations, Citation{"c", 1})
	clone.Sections[0].Subsections[0].Content = "changed"
	clone.Metadata["run"] = "r2"
	clone.Version++

	assert.Equal(t, "a", doc.Sections[0].Citations[0].Source)
	assert.Len(t, doc.Sections[0].Citations, 1)
	assert.Equal(t, "bg", doc.Sections[0].Subsections[0].Content)
	assert.Equal(t, "r1", doc.Metadata["run"])
	assert.Equal(t, 3, doc.Version)
}

func TestDocument_CloneNil(t *testing.T) {
	var doc *Document
	assert.Nil(t, doc.Clone())
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument("Report")
	assert.Equal(t, "Report", doc.Title)
	assert.Equal(t, 1, doc.Version)
	assert.NotNil(t, doc.Metadata)
	assert.Empty(t, doc.Sections)
}

func TestDocument_FindSection(t *testing.T) {
	doc := sampleDocument()

	s, ok := doc.FindSection("Body")
	require.True(t, ok)
	s.Content = "edited"
	assert.Equal(t, "edited", doc.Sections[1].Content)

	_, ok = doc.FindSection("Background")
	assert.False(t, ok, "subsections are not top-level sections")
}

func TestDocument_Aggregates(t *testing.T) {
	doc := sampleDocument()

	assert.Equal(t, []string{"Intro", "Body"}, doc.SectionTitles())
	assert.Equal(t, 2, doc.CitationCount())
	assert.InDelta(t, 0.7, doc.AverageConfidence(), 1e-9)
	assert.Zero(t, NewDocument("empty").AverageConfidence())
}
