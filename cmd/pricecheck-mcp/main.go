package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// automateRequest mirrors the pricecheck API request model.
type automateRequest struct {
	Run     bool   `json:"run"`
	Item    string `json:"item,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// automateResponse mirrors the pricecheck API reply. Error replies wrap it in
// "detail".
type automateResponse struct {
	Status string `json:"status"`
	Result *struct {
		Status      string            `json:"status"`
		Product     string            `json:"product"`
		Price       string            `json:"price"`
		Message     string            `json:"message"`
		Artifacts   map[string]string `json:"artifacts"`
		RawOutput   string            `json:"raw_output"`
		ErrorOutput string            `json:"error_output"`
	} `json:"result"`
	Message string `json:"message"`
	Stderr  string `json:"stderr"`
	RunID   string `json:"run_id"`
}

type errorResponse struct {
	Detail *automateResponse `json:"detail"`
}

func main() {
	apiURL := os.Getenv("PRICECHECK_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	apiKey := os.Getenv("PRICECHECK_API_KEY")

	s := server.NewMCPServer(
		"pricecheck",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	checkPriceTool := mcp.NewTool("check_price",
		mcp.WithDescription("Sign in to the demo storefront with a real browser and return the listed price of a product."),
		mcp.WithString("item",
			mcp.Description("Product name, or a case-sensitive part of it (default: 'Sauce Labs Backpack')"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Seconds to allow the browser run before giving up (server default and cap apply)"),
		),
	)
	s.AddTool(checkPriceTool, handleCheckPrice(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleCheckPrice(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 330 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := automateRequest{
			Run:     true,
			Item:    strings.TrimSpace(request.GetString("item", "")),
			Timeout: int(request.GetFloat("timeout", 0)),
		}

		status, respBody, err := apiPost(ctx, client, apiURL, apiKey, "/automate", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("automation request failed: %v", err)), nil
		}

		resp, err := decodeReply(status, respBody)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return formatReply(status, resp)
	}
}

// apiPost sends a POST request to the pricecheck API and returns the status
// code and response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, err
}

func decodeReply(status int, body []byte) (*automateResponse, error) {
	if status == http.StatusOK {
		var resp automateResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %v", err)
		}
		return &resp, nil
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Detail == nil {
		return nil, fmt.Errorf("API returned status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return errResp.Detail, nil
}

func formatReply(status int, resp *automateResponse) (*mcp.CallToolResult, error) {
	r := resp.Result
	if status == http.StatusOK && resp.Status == "success" && r != nil {
		return mcp.NewToolResultText(fmt.Sprintf("%s: %s\n\nRun: %s", r.Product, r.Price, resp.RunID)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%d %s]", status, resp.Status))
	switch {
	case resp.Message != "":
		sb.WriteString(" " + resp.Message)
	case r != nil && r.Message != "":
		sb.WriteString(" " + r.Message)
	case r != nil && r.RawOutput != "":
		sb.WriteString(" worker output: " + r.RawOutput)
	case r != nil && r.ErrorOutput != "":
		sb.WriteString(" worker error output: " + r.ErrorOutput)
	}
	if r != nil {
		for name, path := range r.Artifacts {
			sb.WriteString(fmt.Sprintf("\n%s: %s", name, path))
		}
	}
	if resp.Stderr != "" {
		sb.WriteString("\n\nstderr:\n" + resp.Stderr)
	}

	if status != http.StatusOK {
		return mcp.NewToolResultError(sb.String()), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}
