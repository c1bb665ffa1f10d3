package config

import (
	"errors"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Default target and credentials for the demo storefront.
const (
	DefaultTargetURL = "https://www.saucedemo.com/"
	DefaultUsername  = "standard_user"
	DefaultPassword  = "secret_sauce"
	DefaultItem      = "Sauce Labs Backpack"
)

// RunIDEnv carries the orchestrator's run identifier into the worker.
const RunIDEnv = "PRICECHECK_RUN_ID"

// ItemEnv is the variable the orchestrator overrides per run.
const ItemEnv = "ITEM_TO_LOOKUP"

// WorkerConfig is the worker's process-wide configuration. It is loaded once
// at startup and never mutated afterwards.
type WorkerConfig struct {
	RunID     string
	Site      SiteConfig
	Item      string
	Browser   BrowserConfig
	Timeouts  TimeoutConfig
	Artifacts ArtifactConfig
	Log       LogConfig
}

// SiteConfig identifies the storefront and the login pair.
type SiteConfig struct {
	URL      string
	Username string
	Password string
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the upstream proxy for all browser traffic.
	Proxy string

	// Stealth masks navigator.webdriver and friends.
	Stealth bool // default: false

	// ExtraHeaders are sent with every page request.
	ExtraHeaders map[string]string
}

// TimeoutConfig bounds each waiting step of the worker.
type TimeoutConfig struct {
	Navigation time.Duration // default: 10s
	Login      time.Duration // default: 10s
	Item       time.Duration // default: 10s
	Capture    time.Duration // default: 5s
}

// ArtifactConfig controls failure diagnostics.
type ArtifactConfig struct {
	Enabled  bool   // default: true
	Dir      string // default: "artifacts"
	Markdown bool   // default: false
}

// LoadWorker reads the worker configuration from the environment.
func LoadWorker() (*WorkerConfig, error) {
	_ = godotenv.Load()

	cfg := &WorkerConfig{
		RunID: os.Getenv(RunIDEnv),
		Site: SiteConfig{
			URL:      envOr("TARGET_URL", DefaultTargetURL),
			Username: envOr("SAUCE_USER", DefaultUsername),
			Password: envOr("SAUCE_PASS", DefaultPassword),
		},
		Item: envOr(ItemEnv, DefaultItem),
		Browser: BrowserConfig{
			Headless:     envBoolOr("HEADLESS", true),
			NoSandbox:    envBoolOr("BROWSER_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("BROWSER_BIN"),
			Proxy:        os.Getenv("BROWSER_PROXY"),
			Stealth:      envBoolOr("BROWSER_STEALTH", false),
			ExtraHeaders: envMapOr("BROWSER_EXTRA_HEADERS", nil),
		},
		Timeouts: TimeoutConfig{
			Navigation: envDurationOr("NAV_TIMEOUT", 10*time.Second),
			Login:      envDurationOr("LOGIN_TIMEOUT", 10*time.Second),
			Item:       envDurationOr("ITEM_TIMEOUT", 10*time.Second),
			Capture:    envDurationOr("CAPTURE_TIMEOUT", 5*time.Second),
		},
		Artifacts: ArtifactConfig{
			Enabled:  envBoolOr("CAPTURE_ARTIFACTS", true),
			Dir:      envOr("ARTIFACT_DIR", "artifacts"),
			Markdown: envBoolOr("ARTIFACT_MARKDOWN", false),
		},
		Log: loadLog(),
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the worker cannot run with.
func (c *WorkerConfig) Validate() error {
	u, err := url.Parse(c.Site.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("TARGET_URL must be an absolute URL")
	}
	if c.Site.Username == "" || c.Site.Password == "" {
		return errors.New("SAUCE_USER and SAUCE_PASS must not be empty")
	}
	if c.Timeouts.Navigation <= 0 || c.Timeouts.Login <= 0 || c.Timeouts.Item <= 0 {
		return errors.New("step timeouts must be positive")
	}
	return nil
}
