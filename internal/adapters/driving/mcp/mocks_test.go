package mcp

import (
	"context"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
)

// mockResearchService is a mock implementation of driving.ResearchService.
type mockResearchService struct {
	outcome   *driving.ResearchOutcome
	err       error
	exportErr error
	lastReq   domain.RunRequest
	formats   []string
}

func (m *mockResearchService) Research(
	_ context.Context,
	req domain.RunRequest,
	_ driving.RunObserver,
) (*driving.ResearchOutcome, error) {
	m.lastReq = req
	return m.outcome, m.err
}

func (m *mockResearchService) Export(doc *domain.Document, format string) ([]byte, error) {
	m.formats = append(m.formats, format)
	if m.exportErr != nil {
		return nil, m.exportErr
	}
	return []byte("# " + doc.Title + "\n"), nil
}

func (m *mockResearchService) Formats() []string {
	return []string{"markdown"}
}

func (m *mockResearchService) ResolveFormat(format string) (string, error) {
	return format, nil
}

// mockHistoryService is a mock implementation of driving.HistoryService.
type mockHistoryService struct {
	runs     []domain.Run
	versions map[string][]*domain.Document
	report   string
	err      error
}

func (m *mockHistoryService) List(_ context.Context) ([]domain.Run, error) {
	return m.runs, m.err
}

func (m *mockHistoryService) Get(_ context.Context, id string) (*domain.Run, error) {
	for i := range m.runs {
		if m.runs[i].ID == id {
			return &m.runs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockHistoryService) Versions(_ context.Context, id string) ([]*domain.Document, error) {
	docs, ok := m.versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return docs, nil
}

func (m *mockHistoryService) Version(_ context.Context, id string, seq int) (*domain.Document, error) {
	docs, ok := m.versions[id]
	if !ok || seq >= len(docs) {
		return nil, domain.ErrNotFound
	}
	return docs[seq], nil
}

func (m *mockHistoryService) Report(_ context.Context, id string) (string, error) {
	if _, ok := m.versions[id]; !ok {
		return "", domain.ErrNotFound
	}
	return m.report, m.err
}

func (m *mockHistoryService) Delete(_ context.Context, _ string) error {
	return m.err
}

// mockSettingsService serves fixed settings; other methods are not used.
type mockSettingsService struct {
	driving.SettingsService
	settings *domain.AppSettings
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	return m.settings, m.err
}
