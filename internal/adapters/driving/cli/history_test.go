package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

const tidesRunID = "3f2a9c1e-0000-4000-8000-000000000001"

func TestHistoryCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range historyCmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"list", "show", "report", "delete"}, names)
}

func TestHistoryCmd_ErrorsWithoutServices(t *testing.T) {
	old := historyService
	historyService = nil
	defer func() { historyService = old }()

	for _, args := range [][]string{
		{"history", "list"},
		{"history", "show", "abc"},
		{"history", "report", "abc"},
		{"history", "delete", "abc"},
	} {
		_, err := executeCommand(nil, args...)
		assert.ErrorIs(t, err, errHistoryNotConfigured)
	}
}

func TestHistoryListCmd_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(nil, "history")

	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestHistoryListCmd_ShowsRuns(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedRun(t, tidesRunID, "Ocean Tides", time.Now().Add(-time.Hour), sampleHistory())
	seedRun(t, "9b7d0000-1111", "Coral reefs", time.Now(), sampleHistory()[:1])

	out, err := executeCommand(nil, "history", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "3f2a9c1e")
	assert.NotContains(t, out, tidesRunID)
	assert.Contains(t, out, "converged")
	assert.Contains(t, out, "1/3")
	assert.Contains(t, out, "$0.2500")
	assert.Less(t, strings.Index(out, "Coral reefs"), strings.Index(out, "Ocean Tides"), "most recent first")
}

func TestHistoryShowCmd_LatestVersion(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedRun(t, tidesRunID, "Ocean Tides", time.Now(), sampleHistory())

	out, err := executeCommand(nil, "history", "show", "3f2a")

	require.NoError(t, err)
	assert.Contains(t, out, "# Ocean Tides")
	assert.Contains(t, out, "## Causes")
	assert.Contains(t, out, "Confidence Score: 0.90")
}

func TestHistoryShowCmd_SelectedVersion(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedRun(t, tidesRunID, "Ocean Tides", time.Now(), sampleHistory())

	out, err := executeCommand(nil, "history", "show", tidesRunID, "--version", "0")

	require.NoError(t, err)
	assert.Contains(t, out, "Confidence Score: 0.00")
	assert.NotContains(t, out, "Citations")
}

func TestHistoryShowCmd_YAMLToFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedRun(t, tidesRunID, "Ocean Tides", time.Now(), sampleHistory())
	path := filepath.Join(t.TempDir(), "v1.yaml")

	out, err := executeCommand(nil, "history", "show", tidesRunID, "--version", "1", "--format", "yaml", "-o", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Wrote version 1 (research)")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Ocean Tides")
}

func TestHistoryShowCmd_Errors(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedRun(t, tidesRunID, "Ocean Tides", time.Now(), sampleHistory())

	_, err := executeCommand(nil, "history", "show", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = executeCommand(nil, "history", "show", tidesRunID, "--version", "7")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = executeCommand(nil, "history", "show", tidesRunID, "--format", "pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestHistoryReportCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedRun(t, tidesRunID, "Ocean Tides", time.Now(), sampleHistory())

	out, err := executeCommand(nil, "history", "report", "3f2a9c1e")

	require.NoError(t, err)
	assert.Contains(t, out, "# Version History")
	assert.Contains(t, out, "## Version 3")
	assert.Contains(t, out, "**Causes** (Confidence: 0.90)")
}

func TestHistoryDeleteCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	seedRun(t, tidesRunID, "Ocean Tides", time.Now(), sampleHistory())

	out, err := executeCommand(nil, "history", "delete", "3f2a9c1e")

	require.NoError(t, err)
	assert.Contains(t, out, "Deleted run 3f2a9c1e (Ocean Tides)")
	_, err = env.runs.GetRun(context.Background(), tidesRunID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShortIDAndTruncate(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "3f2a9c1e", shortID(tidesRunID))
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "-", orDash(""))
}
