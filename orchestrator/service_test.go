package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pricecheck/config"
	"github.com/use-agent/pricecheck/models"
	"github.com/use-agent/pricecheck/runner"
)

// spyRunner returns a canned outcome and records every invocation.
type spyRunner struct {
	mu    sync.Mutex
	calls []*runner.Invocation
	res   *runner.Result
	err   error
}

func (s *spyRunner) Run(_ context.Context, inv *runner.Invocation) (*runner.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, inv)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	res := *s.res
	res.RunID = inv.RunID
	return &res, nil
}

type recordingNotifier struct {
	got  []*models.AutomateResponse
	errs []error
}

func (n *recordingNotifier) Notify(resp *models.AutomateResponse, err error) {
	n.got = append(n.got, resp)
	n.errs = append(n.errs, err)
}

func testConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		MaxConcurrent:  2,
		DefaultTimeout: 60 * time.Second,
		MaxTimeout:     120 * time.Second,
	}
}

func newTestService(r runner.Runner, opts ...Option) *Service {
	opts = append([]Option{WithRunIDs(func() string { return "run-test" })}, opts...)
	return New(r, testConfig(), opts...)
}

func TestAutomate_SkippedDoesNotInvokeWorker(t *testing.T) {
	spy := &spyRunner{res: &runner.Result{}}
	svc := newTestService(spy)

	resp, err := svc.Automate(context.Background(), &models.TriggerRequest{Run: false, Item: "X"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkipped, resp.Status)
	assert.Empty(t, resp.Result)
	assert.Empty(t, spy.calls)
}

func TestAutomate_Success(t *testing.T) {
	spy := &spyRunner{res: &runner.Result{
		Stdout:   []byte(`{"status":"success","product":"X","price":"$9.99"}` + "\n"),
		Duration: 1500 * time.Millisecond,
	}}
	n := &recordingNotifier{}
	svc := newTestService(spy, WithNotifier(n))

	resp, err := svc.Automate(context.Background(), &models.TriggerRequest{Run: true, Item: "X"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, "run-test", resp.RunID)
	assert.Equal(t, int64(1500), resp.DurationMs)

	var result models.WorkerResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "X", result.Product)
	assert.Equal(t, "$9.99", result.Price)

	require.Len(t, spy.calls, 1)
	assert.Equal(t, "X", spy.calls[0].Env[config.ItemEnv])
	assert.Equal(t, "run-test", spy.calls[0].Env[config.RunIDEnv])
	assert.Equal(t, 60*time.Second, spy.calls[0].Timeout)
	require.Len(t, n.got, 1)
	assert.Equal(t, models.StatusSuccess, n.got[0].Status)
}

func TestAutomate_NoItemKeepsWorkerDefault(t *testing.T) {
	spy := &spyRunner{res: &runner.Result{Stdout: []byte(`{"status":"success","product":"B","price":"$1"}`)}}
	svc := newTestService(spy)

	_, err := svc.Automate(context.Background(), &models.TriggerRequest{Run: true, Item: "   "})
	require.NoError(t, err)
	_, set := spy.calls[0].Env[config.ItemEnv]
	assert.False(t, set)
}

func TestAutomate_TimeoutOverrideIsClamped(t *testing.T) {
	spy := &spyRunner{res: &runner.Result{Stdout: []byte(`{"status":"success","product":"B","price":"$1"}`)}}
	svc := newTestService(spy)

	_, err := svc.Automate(context.Background(), &models.TriggerRequest{Run: true, Timeout: 45})
	require.NoError(t, err)
	_, err = svc.Automate(context.Background(), &models.TriggerRequest{Run: true, Timeout: 9999})
	require.NoError(t, err)
	// Values whose nanosecond form overflows int64 still hit the cap.
	_, err = svc.Automate(context.Background(), &models.TriggerRequest{Run: true, Timeout: 18446744074})
	require.NoError(t, err)
	_, err = svc.Automate(context.Background(), &models.TriggerRequest{Run: true, Timeout: 9223372037})
	require.NoError(t, err)

	require.Len(t, spy.calls, 4)
	assert.Equal(t, 45*time.Second, spy.calls[0].Timeout)
	assert.Equal(t, 120*time.Second, spy.calls[1].Timeout)
	assert.Equal(t, 120*time.Second, spy.calls[2].Timeout)
	assert.Equal(t, 120*time.Second, spy.calls[3].Timeout)
}

func TestTimeoutFor_WithoutCapNeverOverflows(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTimeout = 0
	svc := New(&spyRunner{}, cfg)

	assert.Equal(t, 90*time.Second, svc.timeoutFor(&models.TriggerRequest{Timeout: 90}))
	assert.Equal(t, maxDuration, svc.timeoutFor(&models.TriggerRequest{Timeout: 9223372037}))
	assert.Positive(t, svc.timeoutFor(&models.TriggerRequest{Timeout: 18446744074}))
}

func TestAutomate_WorkerReportedError(t *testing.T) {
	spy := &spyRunner{res: &runner.Result{
		ExitCode: 1,
		Stdout:   []byte(`{"status":"error","message":"Product not found: X"}`),
		Stderr:   []byte("some log line"),
	}}
	svc := newTestService(spy)

	_, err := svc.Automate(context.Background(), &models.TriggerRequest{Run: true, Item: "X"})
	var aerr *models.AutomationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, models.ErrCodeWorkerFailed, aerr.Code)
	assert.Equal(t, models.StatusError, aerr.Response.Status)
	assert.Empty(t, aerr.Response.Stderr, "stderr is only attached when the result has no message")

	var result models.WorkerResult
	require.NoError(t, json.Unmarshal(aerr.Response.Result, &result))
	assert.Contains(t, result.Message, "X")
}

func TestAutomate_Timeout(t *testing.T) {
	spy := &spyRunner{err: fmt.Errorf("%w after 1s", runner.ErrTimeout)}
	n := &recordingNotifier{}
	svc := newTestService(spy, WithNotifier(n))

	_, err := svc.Automate(context.Background(), &models.TriggerRequest{Run: true, Timeout: 1})
	var aerr *models.AutomationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, models.ErrCodeTimeout, aerr.Code)
	assert.Equal(t, "Automation timed out after 1s", aerr.Response.Message)
	assert.Equal(t, "run-test", aerr.Response.RunID)
	assert.Empty(t, aerr.Response.Result)
	require.Len(t, n.got, 1)
	assert.ErrorIs(t, n.errs[0], runner.ErrTimeout)
}

func TestAutomate_TimeoutMessageUsesWholeSeconds(t *testing.T) {
	spy := &spyRunner{err: runner.ErrTimeout}
	svc := newTestService(spy)

	_, err := svc.Automate(context.Background(), &models.TriggerRequest{Run: true})
	var aerr *models.AutomationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "Automation timed out after 60s", aerr.Response.Message)
}

func TestAutomate_WorkerUnavailable(t *testing.T) {
	spy := &spyRunner{err: errors.New("executing /nope: no such file or directory")}
	svc := newTestService(spy)

	_, err := svc.Automate(context.Background(), &models.TriggerRequest{Run: true})
	var aerr *models.AutomationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, models.ErrCodeWorkerUnavailable, aerr.Code)
}

func TestAutomate_CallerCancelled(t *testing.T) {
	spy := &spyRunner{err: context.Canceled}
	svc := newTestService(spy)

	_, err := svc.Automate(context.Background(), &models.TriggerRequest{Run: true})
	var aerr *models.AutomationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, models.ErrCodeInternal, aerr.Code)
	assert.ErrorIs(t, err, context.Canceled)
}
