package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServe_Help(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("mcp", "serve", "--help")

	require.NoError(t, err)
	assert.Contains(t, out, "--host")
	assert.Contains(t, out, "generate_bc3")
}

func TestMCPServe_RejectsInvalidPort(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("mcp", "serve", "--port", "70000")

	assert.ErrorContains(t, err, "invalid port 70000")
}

func TestMCPPorts(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	ports := mcpPorts()

	assert.Equal(t, testSearch, ports.Search)
	assert.Equal(t, testRAG, ports.RAG)
	assert.Equal(t, testBudget, ports.Budget)
	assert.Equal(t, testDocs, ports.Document)
}
