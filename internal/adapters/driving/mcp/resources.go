package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for strata resources.
	uriScheme = "strata://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "runs",
		Name:        "runs",
		Description: "List of recorded research runs",
		MIMEType:    "application/json",
	}, s.handleRunsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "runs/{runId}/versions/{seq}",
		Name:        "run-version",
		Description: "One document version from a run's history (0 is the structured outline)",
		MIMEType:    "text/markdown",
	}, s.handleVersionResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "runs/{runId}/report",
		Name:        "run-report",
		Description: "Change report across a run's versions",
		MIMEType:    "text/markdown",
	}, s.handleReportResource)
}

// handleRunsResource returns all recorded runs.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.History == nil {
		return textResult(req.Params.URI, "application/json", "[]"), nil
	}

	runs, err := s.ports.History.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	infos := make([]RunOutput, len(runs))
	for i := range runs {
		infos[i] = toRunOutput(&runs[i])
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling runs: %w", err)
	}

	return textResult(req.Params.URI, "application/json", string(data)), nil
}

// handleVersionResource returns one history entry rendered as markdown.
func (s *Server) handleVersionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.History == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	runID, seq, ok := parseVersionURI(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.History.Version(ctx, runID, seq)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	data, err := s.ports.Research.Export(doc, "markdown")
	if err != nil {
		return nil, fmt.Errorf("rendering version: %w", err)
	}

	return textResult(req.Params.URI, "text/markdown", string(data)), nil
}

// handleReportResource returns the change report of a run.
func (s *Server) handleReportResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.History == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	runID := extractReportRunID(req.Params.URI)
	if runID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	report, err := s.ports.History.Report(ctx, runID)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return textResult(req.Params.URI, "text/markdown", report), nil
}

func textResult(uri, mimeType, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeType,
			Text:     text,
		}},
	}
}

// parseVersionURI splits strata://runs/{runId}/versions/{seq}.
func parseVersionURI(uri string) (string, int, bool) {
	const prefix = uriScheme + "runs/"

	if !strings.HasPrefix(uri, prefix) {
		return "", 0, false
	}

	runID, seqText, found := strings.Cut(strings.TrimPrefix(uri, prefix), "/versions/")
	if !found || runID == "" || strings.Contains(runID, "/") {
		return "", 0, false
	}

	seq, err := strconv.Atoi(seqText)
	if err != nil || seq < 0 {
		return "", 0, false
	}
	return runID, seq, true
}

// extractReportRunID extracts the run ID from strata://runs/{runId}/report.
func extractReportRunID(uri string) string {
	const prefix = uriScheme + "runs/"
	const suffix = "/report"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}

	runID := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(runID, "/") {
		return ""
	}
	return runID
}
