package worker

import (
	"context"
	"errors"

	"github.com/use-agent/pricecheck/config"
)

// ErrNotFound is returned by Page lookups that found no match before their
// context ended.
var ErrNotFound = errors.New("element not found")

// Browser is a launched browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is the subset of page operations the lookup needs. Every method
// honours ctx as its deadline.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error

	// WaitFirst waits until any selector matches and returns its index and
	// the matched element's text.
	WaitFirst(ctx context.Context, selectors ...string) (int, string, error)

	// FindByText returns the first selector match whose text contains text.
	// It returns ErrNotFound if none appears before ctx ends.
	FindByText(ctx context.Context, selector, text string) (Element, error)

	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	URL() string
}

// Element is a matched node.
type Element interface {
	// ChildText returns the text of the first descendant matching selector,
	// or "" if there is none. It does not wait.
	ChildText(ctx context.Context, selector string) (string, error)
}

// Launcher starts a browser.
type Launcher func(cfg config.BrowserConfig) (Browser, error)
