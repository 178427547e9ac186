package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// ResearchInput is the input schema for the research tool.
type ResearchInput struct {
	Title               string   `json:"title" jsonschema:"title of the document to research"`
	Outline             string   `json:"outline" jsonschema:"free-form outline of the topics to cover"`
	MaxIterations       int      `json:"max_iterations,omitempty" jsonschema:"iteration ceiling (default from settings, at most 10)"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty" jsonschema:"per-section score needed to stop, 0 to 1 (default from settings)"`
	Format              string   `json:"format,omitempty" jsonschema:"export format of the final document: markdown, json or yaml"`
}

// ResearchOutput is the output schema for the research tool.
type ResearchOutput struct {
	RunID         string                `json:"run_id"`
	StopReason    string                `json:"stop_reason"`
	Iterations    int                   `json:"iterations"`
	Versions      int                   `json:"versions"`
	Cost          float64               `json:"cost"`
	LLMCalls      int                   `json:"llm_calls"`
	ResearchCalls int                   `json:"research_calls"`
	Scores        []domain.SectionScore `json:"scores,omitempty"`
	Issues        []string              `json:"issues,omitempty"`
	Questions     []string              `json:"questions,omitempty"`
	Document      string                `json:"document"`
}

// ListRunsInput is the input schema for the list_runs tool.
type ListRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return (default 20)"`
}

// ListRunsOutput is the output schema for the list_runs tool.
type ListRunsOutput struct {
	Runs  []RunOutput `json:"runs"`
	Count int         `json:"count"`
}

// RunOutput summarises one persisted run.
type RunOutput struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	StopReason string  `json:"stop_reason,omitempty"`
	Iterations int     `json:"iterations"`
	Versions   int     `json:"versions"`
	Cost       float64 `json:"cost"`
	CreatedAt  string  `json:"created_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "research",
		Description: "Research an outline into a cited document by iterating research and rewriting until every section is confident",
	}, s.handleResearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List previous research runs, most recent first",
	}, s.handleListRuns)
}

// handleResearch handles the research tool invocation.
func (s *Server) handleResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResearchInput,
) (*mcp.CallToolResult, ResearchOutput, error) {
	req := domain.RunRequest{
		Title:               input.Title,
		Outline:             input.Outline,
		MaxIterations:       input.MaxIterations,
		ConfidenceThreshold: s.defaultThreshold(),
	}
	if input.ConfidenceThreshold != nil {
		req.ConfidenceThreshold = *input.ConfidenceThreshold
	}

	outcome, err := s.ports.Research.Research(ctx, req, nil)
	if err != nil {
		if outcome != nil && outcome.Run != nil {
			return nil, ResearchOutput{}, fmt.Errorf("run %s failed: %w", outcome.Run.ID, err)
		}
		return nil, ResearchOutput{}, err
	}

	output := ResearchOutput{}
	if outcome.Run != nil {
		output.RunID = outcome.Run.ID
	}
	result := outcome.Result
	if result == nil || result.Final == nil {
		return nil, output, nil
	}

	output.StopReason = string(result.StopReason)
	output.Iterations = len(result.Iterations)
	output.Versions = len(result.History)
	output.Cost = result.Cost
	output.LLMCalls = result.LLMCalls
	output.ResearchCalls = result.ResearchCalls
	if n := len(result.Iterations); n > 0 {
		last := result.Iterations[n-1]
		output.Scores = last.Scores
		output.Issues = last.Issues
		output.Questions = last.Questions
	}

	data, err := s.ports.Research.Export(result.Final, input.Format)
	if err != nil {
		return nil, output, fmt.Errorf("exporting document: %w", err)
	}
	output.Document = string(data)

	return nil, output, nil
}

// defaultThreshold returns the stored loop threshold, or the built-in
// default when settings are unavailable.
func (s *Server) defaultThreshold() float64 {
	if s.ports.Settings == nil {
		return domain.DefaultConfidenceThreshold
	}
	settings, err := s.ports.Settings.Get()
	if err != nil {
		logger.Warn("Using default confidence threshold: %v", err)
		return domain.DefaultConfidenceThreshold
	}
	return settings.Loop.ConfidenceThreshold
}

// handleListRuns handles the list_runs tool invocation.
func (s *Server) handleListRuns(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	if s.ports.History == nil {
		return nil, ListRunsOutput{Runs: []RunOutput{}}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	runs, err := s.ports.History.List(ctx)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}

	output := ListRunsOutput{
		Runs:  make([]RunOutput, len(runs)),
		Count: len(runs),
	}
	for i := range runs {
		output.Runs[i] = toRunOutput(&runs[i])
	}

	return nil, output, nil
}

func toRunOutput(run *domain.Run) RunOutput {
	return RunOutput{
		ID:         run.ID,
		Title:      run.Title,
		Status:     string(run.Status),
		StopReason: string(run.StopReason),
		Iterations: run.Iterations,
		Versions:   run.Versions,
		Cost:       run.Cost,
		CreatedAt:  run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
