package normalisers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/normalisers/markdown"
	"github.com/custodia-labs/strata-cli/internal/normalisers/structured"
)

// Ensure Registry implements the interface.
var _ driven.ExporterRegistry = (*Registry)(nil)

// Registry holds exporters keyed by format name.
type Registry struct {
	mu        sync.RWMutex
	exporters map[string]driven.Exporter
	aliases   map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		exporters: make(map[string]driven.Exporter),
		aliases:   make(map[string]string),
	}
}

// DefaultRegistry returns a registry with the markdown, JSON and YAML
// exporters registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(markdown.New(), "md")
	r.Register(structured.NewJSON())
	r.Register(structured.NewYAML(), "yml")
	return r
}

// Register adds an exporter under its format name and any aliases.
func (r *Registry) Register(e driven.Exporter, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[e.Format()] = e
	for _, a := range aliases {
		r.aliases[a] = e.Format()
	}
}

// Resolve maps a format name or alias, in any case, to its registered name.
func (r *Registry) Resolve(format string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := strings.ToLower(strings.TrimSpace(format))
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	if _, ok := r.exporters[name]; !ok {
		return "", fmt.Errorf("%w: export format %q", domain.ErrUnsupportedType, format)
	}
	return name, nil
}

// Get returns the exporter for a format.
func (r *Registry) Get(format string) (driven.Exporter, error) {
	name, err := r.Resolve(format)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exporters[name], nil
}

// Formats returns the registered format names in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.exporters))
	for name := range r.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
