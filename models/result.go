package models

import "errors"

// Worker result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Artifact names used as keys of WorkerResult.Artifacts.
const (
	ArtifactScreenshot = "screenshot"
	ArtifactHTML       = "html"
	ArtifactMarkdown   = "markdown"
)

// WorkerResult is the single JSON object a worker prints to stdout.
type WorkerResult struct {
	Status    string            `json:"status"`
	Product   string            `json:"product,omitempty"`
	Price     string            `json:"price,omitempty"`
	Message   string            `json:"message,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// NewSuccess builds a success result.
func NewSuccess(product, price string) *WorkerResult {
	return &WorkerResult{Status: StatusSuccess, Product: product, Price: price}
}

// NewFailure builds an error result.
func NewFailure(message string) *WorkerResult {
	return &WorkerResult{Status: StatusError, Message: message}
}

// Validate checks the status/field invariants.
func (r *WorkerResult) Validate() error {
	switch r.Status {
	case StatusSuccess:
		if r.Product == "" || r.Price == "" {
			return errors.New("success result requires product and price")
		}
	case StatusError:
		if r.Message == "" {
			return errors.New("error result requires message")
		}
	default:
		return errors.New("unknown result status: " + r.Status)
	}
	return nil
}
