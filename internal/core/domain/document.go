package domain

import "maps"

// DefaultReliability is assigned to citations that carry no explicit value.
const DefaultReliability = 0.5

// UnknownSource labels citations whose provenance was not reported.
const UnknownSource = "unknown"

// Citation is a (source, reliability) pair attached to a section.
type Citation struct {
	// Source is the provenance of the evidence (URL, label or "unknown").
	Source string `json:"source" yaml:"source"`

	// Reliability is in [0.0, 1.0].
	Reliability float64 `json:"reliability" yaml:"reliability"`
}

// NewCitation builds a citation, substituting defaults for a missing source
// or reliability and clamping the reliability into [0,1].
func NewCitation(source string, reliability *float64) Citation {
	if source == "" {
		source = UnknownSource
	}
	r := DefaultReliability
	if reliability != nil {
		r = ClampReliability(*reliability)
	}
	return Citation{Source: source, Reliability: r}
}

// ClampReliability bounds r to [0,1].
func ClampReliability(r float64) float64 {
	switch {
	case r != r: // NaN
		return DefaultReliability
	case r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}

// Section is a titled block of document content.
// Citations are append-only and never de-duplicated.
type Section struct {
	Title           string     `json:"title" yaml:"title"`
	Content         string     `json:"content" yaml:"content"`
	ConfidenceScore float64    `json:"confidence_score" yaml:"confidence_score"`
	Citations       []Citation `json:"citations,omitempty" yaml:"citations,omitempty"`
	Subsections     []Section  `json:"subsections,omitempty" yaml:"subsections,omitempty"`
}

// Clone returns a deep copy of the section.
func (s Section) Clone() Section {
	out := s
	if s.Citations != nil {
		out.Citations = make([]Citation, len(s.Citations))
		copy(out.Citations, s.Citations)
	}
	if s.Subsections != nil {
		out.Subsections = make([]Section, len(s.Subsections))
		for i, sub := range s.Subsections {
			out.Subsections[i] = sub.Clone()
		}
	}
	return out
}

// Document is a versioned, ordered tree of sections.
// Version starts at 1 and is bumped once per mutating step.
type Document struct {
	Title    string            `json:"title" yaml:"title"`
	Version  int               `json:"version" yaml:"version"`
	Sections []Section         `json:"sections" yaml:"sections"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewDocument returns an empty version-1 document.
func NewDocument(title string) *Document {
	return &Document{
		Title:    title,
		Version:  1,
		Metadata: make(map[string]string),
	}
}

// Clone returns a deep copy of the document. Steps work on clones so that
// documents already appended to a history are never mutated.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Title:   d.Title,
		Version: d.Version,
	}
	if d.Sections != nil {
		out.Sections = make([]Section, len(d.Sections))
		for i, s := range d.Sections {
			out.Sections[i] = s.Clone()
		}
	}
	if d.Metadata != nil {
		out.Metadata = maps.Clone(d.Metadata)
	}
	return out
}

// FindSection returns the top-level section with the given title.
func (d *Document) FindSection(title string) (*Section, bool) {
	for i := range d.Sections {
		if d.Sections[i].Title == title {
			return &d.Sections[i], true
		}
	}
	return nil, false
}

// SectionTitles returns the top-level section titles in reading order.
func (d *Document) SectionTitles() []string {
	titles := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		titles[i] = s.Title
	}
	return titles
}

// CitationCount returns the number of citations across all sections and
// subsections.
func (d *Document) CitationCount() int {
	var count func([]Section) int
	count = func(sections []Section) int {
		n := 0
		for _, s := range sections {
			n += len(s.Citations) + count(s.Subsections)
		}
		return n
	}
	return count(d.Sections)
}

// AverageConfidence returns the mean confidence of the top-level sections,
// or 0 when there are none.
func (d *Document) AverageConfidence() float64 {
	if len(d.Sections) == 0 {
		return 0
	}
	var sum float64
	for _, s := range d.Sections {
		sum += s.ConfidenceScore
	}
	return sum / float64(len(d.Sections))
}
