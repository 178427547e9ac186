// Package structured exports documents as a machine-readable section tree.
package structured

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
)

// Ensure exporters implement the interface.
var (
	_ driven.Exporter = (*JSONExporter)(nil)
	_ driven.Exporter = (*YAMLExporter)(nil)
)

// JSONExporter renders the section tree as indented JSON.
type JSONExporter struct{}

// NewJSON creates a JSON exporter.
func NewJSON() *JSONExporter {
	return &JSONExporter{}
}

// Format returns the format name.
func (e *JSONExporter) Format() string { return "json" }

// Extension returns the file extension.
func (e *JSONExporter) Extension() string { return ".json" }

// Export renders the document as JSON.
func (e *JSONExporter) Export(doc *domain.Document) ([]byte, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return append(data, '\n'), nil
}

// YAMLExporter renders the section tree as YAML.
type YAMLExporter struct{}

// NewYAML creates a YAML exporter.
func NewYAML() *YAMLExporter {
	return &YAMLExporter{}
}

// Format returns the format name.
func (e *YAMLExporter) Format() string { return "yaml" }

// Extension returns the file extension.
func (e *YAMLExporter) Extension() string { return ".yaml" }

// Export renders the document as YAML.
func (e *YAMLExporter) Export(doc *domain.Document) ([]byte, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJSON reads a document previously exported as JSON.
func DecodeJSON(data []byte) (*domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return &doc, nil
}

// DecodeYAML reads a document previously exported as YAML.
func DecodeYAML(data []byte) (*domain.Document, error) {
	var doc domain.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return &doc, nil
}
