// Package markdown implements the markdown interchange format:
//
//	# <Document Title>
//
//	## <Section Title>
//
//	<section content>
//
//	### Citations
//
//	1. <source> (Reliability: <float>)
//
//	Confidence Score: <float>
//
//	### <Subsection Title>
//
// Parsing is line oriented and tolerant; it never returns an error.
package markdown

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
)

// Ensure Codec implements the interfaces.
var (
	_ driven.DocumentCodec = (*Codec)(nil)
	_ driven.Exporter      = (*Codec)(nil)
)

const (
	// DefaultTitle is used when the text has no H1 heading.
	DefaultTitle = "Untitled Document"

	// FallbackSectionTitle names the single recovered section of text
	// that has neither section headings nor a title.
	FallbackSectionTitle = "Main Section"

	untitledSection = "Untitled Section"
	citationsTitle  = "Citations"
)

var (
	confidenceLine = regexp.MustCompile(`(?i)^\**\s*confidence score\s*\**\s*:\s*\**\s*(.*?)\s*\**\s*$`)
	citationLine   = regexp.MustCompile(`(?i)^\d+[.)]\s+(.*?)\s*(?:\(\s*reliability:\s*([^)]*)\))?\s*$`)
)

// Codec is the markdown interchange codec.
type Codec struct{}

// New creates a new markdown codec.
func New() *Codec {
	return &Codec{}
}

// Parse builds a document from interchange text.
func (c *Codec) Parse(text string) *domain.Document {
	return Parse(text)
}

// Serialize renders a document as interchange text.
func (c *Codec) Serialize(doc *domain.Document) string {
	return Serialize(doc)
}

// Format returns the format name.
func (c *Codec) Format() string {
	return "markdown"
}

// Extension returns the file extension.
func (c *Codec) Extension() string {
	return ".md"
}

// Export renders the document as interchange text.
func (c *Codec) Export(doc *domain.Document) ([]byte, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	return []byte(Serialize(doc)), nil
}

// node accumulates a section while its lines are being read.
type node struct {
	section domain.Section
	hasSeen bool
	lines   []string
	subs    []*node
}

func (n *node) build() domain.Section {
	s := n.section
	s.Content = trimBlankEdges(n.lines)
	for _, sub := range n.subs {
		s.Subsections = append(s.Subsections, sub.build())
	}
	return s
}

func (n *node) empty() bool {
	return trimBlankEdges(n.lines) == "" && len(n.subs) == 0 &&
		len(n.section.Citations) == 0 && !n.hasSeen
}

type parser struct {
	title     string
	preamble  *node
	sections  []*node
	section   *node // current top-level section (or preamble)
	sub       *node // current subsection, nil when at section level
	citations *node // owner of the open citation block, nil outside one
}

// Parse builds a document from interchange text. Malformed confidence
// lines are ignored, citation lines without a reliability get the default,
// and text with no section headings is recovered as a single section.
func Parse(text string) *domain.Document {
	p := &parser{preamble: &node{}}
	p.section = p.preamble

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		p.line(raw)
	}

	doc := domain.NewDocument(p.title)
	if doc.Title == "" {
		doc.Title = DefaultTitle
	}

	if len(p.sections) == 0 {
		if !p.preamble.empty() {
			s := p.preamble.build()
			s.Title = FallbackSectionTitle
			if p.title != "" {
				s.Title = p.title
			}
			doc.Sections = []domain.Section{s}
		}
		return doc
	}

	for _, n := range p.sections {
		doc.Sections = append(doc.Sections, n.build())
	}
	return doc
}

func (p *parser) owner() *node {
	if p.sub != nil {
		return p.sub
	}
	return p.section
}

func (p *parser) line(raw string) {
	line := strings.TrimRight(raw, " \t")
	trimmed := strings.TrimSpace(line)

	level, title := heading(trimmed)
	switch level {
	case 4:
		if strings.EqualFold(title, citationsTitle) {
			p.citations = p.owner()
			return
		}
	case 3:
		p.citations = nil
		if strings.EqualFold(title, citationsTitle) {
			p.sub = nil
			p.citations = p.section
			return
		}
		p.sub = &node{section: domain.Section{Title: orUntitled(title)}}
		p.section.subs = append(p.section.subs, p.sub)
		return
	case 2:
		n := &node{section: domain.Section{Title: orUntitled(title)}}
		p.sections = append(p.sections, n)
		p.section, p.sub, p.citations = n, nil, nil
		return
	case 1:
		if p.title == "" && title != "" {
			p.title = title
			return
		}
	}

	if m := confidenceLine.FindStringSubmatch(trimmed); m != nil {
		target := p.owner()
		if p.citations != nil {
			target = p.citations
		}
		if score, ok := parseScore(m[1]); ok {
			target.section.ConfidenceScore = score
			target.hasSeen = true
		}
		p.citations = nil
		return
	}

	if p.citations != nil {
		if trimmed == "" {
			return
		}
		if m := citationLine.FindStringSubmatch(trimmed); m != nil {
			p.citations.section.Citations = append(p.citations.section.Citations, parseCitation(m[1], m[2]))
			return
		}
		p.citations = nil
	}

	o := p.owner()
	o.lines = append(o.lines, line)
}

// heading returns the ATX heading level and title of a trimmed line,
// or level 0 when the line is not a heading.
func heading(line string) (int, string) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, ""
	}
	rest := line[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, ""
	}
	return level, strings.TrimSpace(rest)
}

func orUntitled(title string) string {
	if title == "" {
		return untitledSection
	}
	return title
}

func parseScore(value string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f != f {
		return 0, false
	}
	switch {
	case f < 0:
		f = 0
	case f > 1:
		f = 1
	}
	return f, true
}

func parseCitation(source, reliability string) domain.Citation {
	var r *float64
	if f, err := strconv.ParseFloat(strings.TrimSpace(reliability), 64); err == nil {
		r = &f
	}
	return domain.NewCitation(strings.TrimSpace(source), r)
}

// trimBlankEdges joins lines, dropping blank lines at either end.
func trimBlankEdges(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// Serialize renders a document as interchange text. Scores and
// reliabilities are written with two decimals.
func Serialize(doc *domain.Document) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(doc.Title)
	b.WriteString("\n\n")
	for _, s := range doc.Sections {
		writeSection(&b, s, 2)
	}
	return b.String()
}

func writeSection(b *strings.Builder, s domain.Section, level int) {
	b.WriteString(strings.Repeat("#", level))
	b.WriteString(" ")
	b.WriteString(s.Title)
	b.WriteString("\n\n")

	if s.Content != "" {
		b.WriteString(s.Content)
		b.WriteString("\n\n")
	}

	if len(s.Citations) > 0 {
		b.WriteString(strings.Repeat("#", level+1))
		b.WriteString(" Citations\n\n")
		for i, c := range s.Citations {
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(". ")
			b.WriteString(c.Source)
			b.WriteString(" (Reliability: ")
			b.WriteString(strconv.FormatFloat(c.Reliability, 'f', 2, 64))
			b.WriteString(")\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Confidence Score: ")
	b.WriteString(strconv.FormatFloat(s.ConfidenceScore, 'f', 2, 64))
	b.WriteString("\n\n")

	for _, sub := range s.Subsections {
		writeSection(b, sub, level+1)
	}
}
