package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pricecheck/config"
	"github.com/ysmood/gson"
)

// rodBrowser drives Chromium through go-rod.
type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      config.BrowserConfig
}

// LaunchRod starts a local Chromium with automation fingerprints reduced.
func LaunchRod(cfg config.BrowserConfig) (Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &rodBrowser{launcher: l, browser: browser, cfg: cfg}, nil
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	page = page.Context(context.Background())

	// Stealth and headers must be installed before the first navigation.
	if b.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if len(b.cfg.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(b.cfg.ExtraHeaders),
		}).Call(page); err != nil {
			slog.Warn("extra headers not applied", "error", err)
		}
	}

	return &rodPage{page: page}, nil
}

// Close closes the browser and removes its profile directory. The process
// is killed if the browser does not close cleanly.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	if err != nil {
		b.launcher.Kill()
	}
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) Fill(ctx context.Context, selector, value string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element %q: %w", selector, err)
	}
	return el.Input(value)
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element %q: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) WaitFirst(ctx context.Context, selectors ...string) (int, string, error) {
	matched := -1
	race := p.page.Context(ctx).Race()
	for i, sel := range selectors {
		i := i
		race = race.Element(sel).Handle(func(*rod.Element) error {
			matched = i
			return nil
		})
	}
	el, err := race.Do()
	if err != nil {
		return -1, "", err
	}
	text, err := el.Text()
	if err != nil {
		return matched, "", err
	}
	return matched, strings.TrimSpace(text), nil
}

func (p *rodPage) FindByText(ctx context.Context, selector, text string) (Element, error) {
	// Delimited so rod reads the pattern as a regex literal.
	pattern := "/" + regexp.QuoteMeta(text) + "/"
	el, err := p.page.Context(ctx).ElementR(selector, pattern)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(true, nil)
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) ChildText(ctx context.Context, selector string) (string, error) {
	children, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return "", err
	}
	if children.Empty() {
		return "", nil
	}
	return children.First().Text()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
