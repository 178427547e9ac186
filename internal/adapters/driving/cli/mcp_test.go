package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPCmd_HasServe(t *testing.T) {
	commands := mcpCmd.Commands()
	require.Len(t, commands, 1)
	assert.Equal(t, "serve", commands[0].Name())

	port := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "0", port.DefValue)
}

func TestMCPServeCmd_ErrorsWithoutResearch(t *testing.T) {
	old := researchFactory
	researchFactory = nil
	defer func() { researchFactory = old }()

	_, err := executeCommand(nil, "mcp", "serve")

	assert.ErrorIs(t, err, errResearchNotConfigured)
}
