package driven

import "github.com/custodia-labs/strata-cli/internal/core/domain"

// DocumentCodec converts between documents and the markdown interchange text
// exchanged with the generative rewrite provider.
type DocumentCodec interface {
	// Parse builds a document from interchange text. It never fails:
	// malformed input degrades to a best-effort partial structure.
	Parse(text string) *domain.Document

	// Serialize renders a document as interchange text.
	Serialize(doc *domain.Document) string
}

// Exporter renders a document in one output format.
type Exporter interface {
	// Format returns the format name (e.g. "markdown", "json", "yaml").
	Format() string

	// Extension returns the conventional file extension including the dot.
	Extension() string

	// Export renders the document.
	Export(doc *domain.Document) ([]byte, error)
}

// ExporterRegistry looks up exporters by format name.
type ExporterRegistry interface {
	// Get returns the exporter for a format, or domain.ErrUnsupportedType.
	Get(format string) (Exporter, error)

	// Resolve returns the registered name for a format or one of its
	// aliases, or domain.ErrUnsupportedType.
	Resolve(format string) (string, error)

	// Formats returns the registered format names in sorted order.
	Formats() []string
}
