// Package mcp provides an MCP (Model Context Protocol) server adapter for strata.
// It lets AI assistants start research runs and read their version history.
package mcp

import "errors"

// ErrMissingResearchService is returned when the research service is not provided.
var ErrMissingResearchService = errors.New("mcp: research service is required")
