package main

import (
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestFormatReply_Success(t *testing.T) {
	resp, err := decodeReply(http.StatusOK,
		[]byte(`{"status":"success","result":{"status":"success","product":"Sauce Labs Backpack","price":"$29.99"},"run_id":"r1"}`))
	require.NoError(t, err)

	res, err := formatReply(http.StatusOK, resp)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Sauce Labs Backpack: $29.99")
}

func TestFormatReply_WorkerFailure(t *testing.T) {
	resp, err := decodeReply(http.StatusInternalServerError,
		[]byte(`{"detail":{"status":"error","result":{"status":"error","message":"Product not found: Jetpack","artifacts":{"screenshot":"artifacts/find-item.png"}}}}`))
	require.NoError(t, err)

	res, err := formatReply(http.StatusInternalServerError, resp)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "Product not found: Jetpack")
	assert.Contains(t, text, "artifacts/find-item.png")
}

func TestDecodeReply_Unparseable(t *testing.T) {
	_, err := decodeReply(http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
