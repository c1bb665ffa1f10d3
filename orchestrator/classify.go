package orchestrator

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/use-agent/pricecheck/models"
	"github.com/use-agent/pricecheck/runner"
)

// noOutput marks a worker that wrote nothing to either stream.
const noOutput = "No output at all."

// parsedOutput is the worker's stdout after classification.
type parsedOutput struct {
	// raw is the JSON object placed in the response's result field.
	raw json.RawMessage

	// result is set when stdout held a JSON object.
	result *models.WorkerResult
}

// parseOutput reads stdout as a JSON object. The whole text is tried first,
// then its last non-empty line, in case the worker leaked log lines to
// stdout. Non-JSON output is wrapped as {"raw_output": text}; empty output
// falls back to {"error_output": stderr}.
func parseOutput(stdout, stderr []byte) parsedOutput {
	out := strings.TrimSpace(string(stdout))
	if out != "" {
		for _, candidate := range []string{out, lastLine(out)} {
			if p, ok := decodeObject(candidate); ok {
				return p
			}
		}
		return parsedOutput{raw: wrap("raw_output", out)}
	}

	errText := strings.TrimSpace(string(stderr))
	if errText == "" {
		errText = noOutput
	}
	return parsedOutput{raw: wrap("error_output", errText)}
}

func decodeObject(text string) (parsedOutput, bool) {
	if !strings.HasPrefix(text, "{") {
		return parsedOutput{}, false
	}
	var result models.WorkerResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return parsedOutput{}, false
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(text)); err != nil {
		return parsedOutput{}, false
	}
	return parsedOutput{raw: compact.Bytes(), result: &result}, true
}

func lastLine(text string) string {
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return text
}

func wrap(key, text string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{key: text})
	return raw
}

// Classify maps a completed worker run to a reply.
//
// Precedence: an explicit error status or a nonzero exit code is an error
// (WORKER_FAILED); a success status with exit code 0 is a success; anything
// else is unknown. Error replies carry the worker's stderr when its result
// has no message.
func Classify(res *runner.Result) (*models.AutomateResponse, error) {
	parsed := parseOutput(res.Stdout, res.Stderr)

	resp := &models.AutomateResponse{
		Result:     parsed.raw,
		RunID:      res.RunID,
		DurationMs: res.Duration.Milliseconds(),
	}

	reportedError := parsed.result != nil && parsed.result.Status == models.StatusError
	reportedSuccess := parsed.result != nil && parsed.result.Status == models.StatusSuccess

	switch {
	case reportedError || res.ExitCode != 0:
		resp.Status = models.StatusError
		if parsed.result == nil || parsed.result.Message == "" {
			resp.Stderr = strings.TrimSpace(string(res.Stderr))
		}
		msg := "worker reported an error"
		if parsed.result != nil && parsed.result.Message != "" {
			msg = parsed.result.Message
		} else if res.ExitCode != 0 {
			msg = "worker exited with a nonzero status"
		}
		return nil, &models.AutomationError{
			Code:     models.ErrCodeWorkerFailed,
			Message:  msg,
			Response: resp,
		}
	case reportedSuccess:
		resp.Status = models.StatusSuccess
	default:
		resp.Status = models.StatusUnknown
	}
	return resp, nil
}
