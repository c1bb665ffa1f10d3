package models

import "encoding/json"

// Orchestrator response statuses. StatusSuccess and StatusError are shared
// with WorkerResult.
const (
	StatusSkipped = "skipped"
	StatusUnknown = "unknown"
)

// AutomateResponse is the body of a POST /automate reply. Non-2xx replies
// carry it inside ErrorResponse.Detail.
type AutomateResponse struct {
	// Status is one of success, error, skipped or unknown.
	Status string `json:"status"`

	// Result is the worker's JSON object as printed, or a diagnostic wrapper
	// ({"raw_output": ...} / {"error_output": ...}) when it printed none.
	Result json.RawMessage `json:"result,omitempty"`

	// Message explains skipped runs and orchestrator-level failures.
	Message string `json:"message,omitempty"`

	// Stderr is the worker's standard error, attached to failures whose
	// result lacks a message.
	Stderr string `json:"stderr,omitempty"`

	// RunID correlates the reply with orchestrator and worker logs.
	RunID string `json:"run_id,omitempty"`

	// DurationMs is the worker's wall time.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// ErrorResponse wraps every non-2xx reply.
type ErrorResponse struct {
	Detail *AutomateResponse `json:"detail"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string    `json:"status"` // "healthy" or "degraded"
	Uptime  string    `json:"uptime"`
	Gate    GateStats `json:"gate"`
	Version string    `json:"version"`
}

// GateStats reports admission gate usage.
type GateStats struct {
	Capacity int    `json:"capacity"`
	InFlight int    `json:"in_flight"`
	Waiting  int    `json:"waiting"`
	Admitted uint64 `json:"admitted"`
}
