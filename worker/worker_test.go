package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pricecheck/artifacts"
	"github.com/use-agent/pricecheck/config"
	"github.com/use-agent/pricecheck/models"
)

type fakePage struct {
	navErr     error
	fillErr    error
	waitIdx    int
	waitText   string
	waitErr    error
	findErr    error
	price      string
	priceErr   error
	panicOn    string
	html       string
	shotErr    error
	navigated  string
	filled     map[string]string
	clicked    []string
	searchedIn string
	searchFor  string
}

func (p *fakePage) maybePanic(step string) {
	if p.panicOn == step {
		panic("boom in " + step)
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.maybePanic("navigate")
	p.navigated = url
	return p.navErr
}

func (p *fakePage) Fill(_ context.Context, selector, value string) error {
	if p.filled == nil {
		p.filled = map[string]string{}
	}
	p.filled[selector] = value
	return p.fillErr
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) WaitFirst(_ context.Context, _ ...string) (int, string, error) {
	return p.waitIdx, p.waitText, p.waitErr
}

func (p *fakePage) FindByText(_ context.Context, selector, text string) (Element, error) {
	p.maybePanic("find")
	p.searchedIn, p.searchFor = selector, text
	if p.findErr != nil {
		return nil, p.findErr
	}
	return fakeElement{price: p.price, err: p.priceErr}, nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	p.maybePanic("screenshot")
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	return []byte("png"), nil
}

func (p *fakePage) HTML(context.Context) (string, error) { return p.html, nil }

func (p *fakePage) URL() string { return "https://shop.test/inventory.html" }

type fakeElement struct {
	price string
	err   error
}

func (e fakeElement) ChildText(context.Context, string) (string, error) { return e.price, e.err }

type fakeBrowser struct {
	page    *fakePage
	pageErr error
	closed  int
}

func (b *fakeBrowser) NewPage(context.Context) (Page, error) {
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

type recordingSaver struct {
	reasons []string
	snaps   []artifacts.Snapshot
	err     error
}

func (s *recordingSaver) Save(reason string, snap artifacts.Snapshot) (map[string]string, error) {
	s.reasons = append(s.reasons, reason)
	s.snaps = append(s.snaps, snap)
	if s.err != nil {
		return nil, s.err
	}
	return map[string]string{models.ArtifactScreenshot: "artifacts/" + reason + ".png"}, nil
}

func testWorkerConfig() *config.WorkerConfig {
	return &config.WorkerConfig{
		RunID: "run-1",
		Site: config.SiteConfig{
			URL:      "https://shop.test/",
			Username: "standard_user",
			Password: "secret_sauce",
		},
		Item: "Sauce Labs Backpack",
		Timeouts: config.TimeoutConfig{
			Navigation: time.Second,
			Login:      time.Second,
			Item:       time.Second,
			Capture:    time.Second,
		},
		Artifacts: config.ArtifactConfig{Enabled: true},
	}
}

func newTestWorker(b *fakeBrowser, saver ArtifactSaver) *Worker {
	launch := func(config.BrowserConfig) (Browser, error) { return b, nil }
	return New(testWorkerConfig(), WithLauncher(launch), WithArtifactSaver(saver))
}

func TestRun_Success(t *testing.T) {
	page := &fakePage{price: "  $29.99\n"}
	b := &fakeBrowser{page: page}
	saver := &recordingSaver{}

	res, code := newTestWorker(b, saver).Run(context.Background())
	require.NoError(t, res.Validate())
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, models.NewSuccess("Sauce Labs Backpack", "$29.99"), res)

	assert.Equal(t, "https://shop.test/", page.navigated)
	assert.Equal(t, "standard_user", page.filled[selUsername])
	assert.Equal(t, "secret_sauce", page.filled[selPassword])
	assert.Equal(t, []string{selLoginButton}, page.clicked)
	assert.Equal(t, selInventoryRow, page.searchedIn)
	assert.Equal(t, "Sauce Labs Backpack", page.searchFor)

	assert.Empty(t, saver.reasons, "no artifacts on success")
	assert.Equal(t, 1, b.closed)
}

func TestRun_StepFailures(t *testing.T) {
	tests := []struct {
		name       string
		page       *fakePage
		wantMsg    string
		wantReason string
	}{
		{
			name:       "navigation deadline",
			page:       &fakePage{navErr: fmt.Errorf("navigate: %w", context.DeadlineExceeded)},
			wantMsg:    "Page took too long to load",
			wantReason: ReasonNavigation,
		},
		{
			name:       "navigation error",
			page:       &fakePage{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
			wantMsg:    "Navigation failed: net::ERR_NAME_NOT_RESOLVED",
			wantReason: ReasonNavigation,
		},
		{
			name:       "login form missing",
			page:       &fakePage{fillErr: context.DeadlineExceeded},
			wantMsg:    "Timed out filling login form",
			wantReason: ReasonLogin,
		},
		{
			name: "login rejected",
			page: &fakePage{
				waitIdx:  1,
				waitText: "Epic sadface: Sorry, this user has been locked out.",
			},
			wantMsg:    "Login failed: Epic sadface: Sorry, this user has been locked out.",
			wantReason: ReasonLogin,
		},
		{
			name:       "login result never appears",
			page:       &fakePage{waitIdx: -1, waitErr: context.DeadlineExceeded},
			wantMsg:    "Timed out waiting for login result",
			wantReason: ReasonAwaitLogin,
		},
		{
			name:       "item missing",
			page:       &fakePage{findErr: ErrNotFound, html: `<div class="inventory_item"><div class="inventory_item_name">Other</div></div>`},
			wantMsg:    "Product not found: Sauce Labs Backpack",
			wantReason: ReasonFindItem,
		},
		{
			name:       "price missing",
			page:       &fakePage{price: "   "},
			wantMsg:    "Price not found for Sauce Labs Backpack",
			wantReason: ReasonReadPrice,
		},
		{
			name:       "step panics",
			page:       &fakePage{panicOn: "find"},
			wantMsg:    "Unexpected error: boom in find",
			wantReason: ReasonUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBrowser{page: tt.page}
			saver := &recordingSaver{}

			res, code := newTestWorker(b, saver).Run(context.Background())
			require.NoError(t, res.Validate())
			assert.Equal(t, ExitError, code)
			assert.Equal(t, models.StatusError, res.Status)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Empty(t, res.Product)
			assert.Empty(t, res.Price)

			assert.Equal(t, []string{tt.wantReason}, saver.reasons)
			assert.Equal(t, "artifacts/"+tt.wantReason+".png", res.Artifacts[models.ArtifactScreenshot])
			assert.Equal(t, 1, b.closed, "browser must be closed exactly once")
		})
	}
}

func TestRun_CaptureFailureKeepsStepError(t *testing.T) {
	page := &fakePage{findErr: ErrNotFound, panicOn: "screenshot"}
	b := &fakeBrowser{page: page}

	res, code := newTestWorker(b, &recordingSaver{}).Run(context.Background())
	assert.Equal(t, ExitError, code)
	assert.Equal(t, "Product not found: Sauce Labs Backpack", res.Message)
	assert.Empty(t, res.Artifacts)
	assert.Equal(t, 1, b.closed)
}

func TestRun_SaveErrorIsNotFatal(t *testing.T) {
	page := &fakePage{navErr: errors.New("refused"), shotErr: errors.New("target closed")}
	b := &fakeBrowser{page: page}
	saver := &recordingSaver{err: errors.New("disk full")}

	res, code := newTestWorker(b, saver).Run(context.Background())
	assert.Equal(t, ExitError, code)
	assert.Equal(t, "Navigation failed: refused", res.Message)
	assert.Nil(t, res.Artifacts)
	require.Len(t, saver.snaps, 1)
	assert.Empty(t, saver.snaps[0].Screenshot)
}

func TestRun_ArtifactsDisabled(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Artifacts.Enabled = false
	b := &fakeBrowser{page: &fakePage{findErr: ErrNotFound}}
	w := New(cfg, WithLauncher(func(config.BrowserConfig) (Browser, error) { return b, nil }))

	res, code := w.Run(context.Background())
	assert.Equal(t, ExitError, code)
	assert.Nil(t, res.Artifacts)
	assert.Equal(t, 1, b.closed)
}

func TestRun_BrowserUnavailable(t *testing.T) {
	launch := func(config.BrowserConfig) (Browser, error) {
		return nil, errors.New("chromium not found")
	}
	w := New(testWorkerConfig(), WithLauncher(launch), WithArtifactSaver(&recordingSaver{}))

	res, code := w.Run(context.Background())
	assert.Equal(t, ExitEnvironment, code)
	assert.Equal(t, "Browser unavailable: chromium not found", res.Message)
}

func TestRun_PageUnavailableClosesBrowser(t *testing.T) {
	b := &fakeBrowser{pageErr: errors.New("target crashed")}
	res, code := newTestWorker(b, &recordingSaver{}).Run(context.Background())
	assert.Equal(t, ExitEnvironment, code)
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, 1, b.closed)
}

func TestStepError(t *testing.T) {
	cause := errors.New("socket closed")
	err := error(stepErr(ReasonLogin, "Login failed: socket closed", cause))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ReasonLogin, se.Reason)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "login")
}

func TestRun_MissLogsCatalog(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		wantLate bool
	}{
		{
			name: "item absent",
			html: `<div class="inventory_item"><div class="inventory_item_name">Sauce Labs Onesie</div>` +
				`<div class="inventory_item_price">$7.99</div></div>`,
		},
		{
			name: "item rendered late",
			html: `<div class="inventory_item"><div class="inventory_item_name">Sauce Labs Backpack</div>` +
				`<div class="inventory_item_price">$29.99</div></div>`,
			wantLate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			b := &fakeBrowser{page: &fakePage{findErr: ErrNotFound, html: tt.html}}
			launch := func(config.BrowserConfig) (Browser, error) { return b, nil }
			w := New(testWorkerConfig(), WithLauncher(launch), WithArtifactSaver(&recordingSaver{}), WithLogger(logger))

			res, code := w.Run(context.Background())
			assert.Equal(t, ExitError, code)
			assert.Equal(t, "Product not found: Sauce Labs Backpack", res.Message)

			logs := buf.String()
			assert.Contains(t, logs, `"msg":"available products"`)
			if tt.wantLate {
				assert.Contains(t, logs, `"msg":"item rendered after lookup timeout"`)
				assert.Contains(t, logs, `"price":"$29.99"`)
			} else {
				assert.Contains(t, logs, "Sauce Labs Onesie")
				assert.NotContains(t, logs, "item rendered after lookup timeout")
			}
		})
	}
}
