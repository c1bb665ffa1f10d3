package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Selectors on the storefront pages.
const (
	selUsername     = "#user-name"
	selPassword     = "#password"
	selLoginButton  = "#login-button"
	selInventory    = ".inventory_list"
	selLoginError   = `[data-test="error"]`
	selInventoryRow = ".inventory_item"
	selItemPrice    = ".inventory_item_price"
)

// Step reasons. Each doubles as the artifact file prefix.
const (
	ReasonNavigation = "navigation"
	ReasonLogin      = "login"
	ReasonAwaitLogin = "await-login"
	ReasonFindItem   = "find-item"
	ReasonReadPrice  = "read-price"
	ReasonUnexpected = "unexpected"
)

// StepError is the failure of one lookup step. Message is reported to the
// caller verbatim.
type StepError struct {
	Reason  string
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return e.Reason + ": " + e.Message
}

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(reason, msg string, err error) *StepError {
	return &StepError{Reason: reason, Message: msg, Err: err}
}

// lookup signs in and reads the item's price. Steps run in order and the
// first failure stops the sequence.
func (w *Worker) lookup(ctx context.Context, page Page) (string, error) {
	if err := w.navigate(ctx, page); err != nil {
		return "", err
	}
	if err := w.login(ctx, page); err != nil {
		return "", err
	}
	if err := w.awaitLogin(ctx, page); err != nil {
		return "", err
	}
	row, err := w.findItem(ctx, page)
	if err != nil {
		return "", err
	}
	return w.readPrice(ctx, row)
}

func (w *Worker) navigate(ctx context.Context, page Page) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeouts.Navigation)
	defer cancel()

	if err := page.Navigate(ctx, w.cfg.Site.URL); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return stepErr(ReasonNavigation, "Page took too long to load", err)
		}
		return stepErr(ReasonNavigation, "Navigation failed: "+err.Error(), err)
	}
	return nil
}

func (w *Worker) login(ctx context.Context, page Page) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeouts.Login)
	defer cancel()

	err := page.Fill(ctx, selUsername, w.cfg.Site.Username)
	if err == nil {
		err = page.Fill(ctx, selPassword, w.cfg.Site.Password)
	}
	if err == nil {
		err = page.Click(ctx, selLoginButton)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return stepErr(ReasonLogin, "Timed out filling login form", err)
		}
		return stepErr(ReasonLogin, "Login failed: "+err.Error(), err)
	}
	return nil
}

func (w *Worker) awaitLogin(ctx context.Context, page Page) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeouts.Login)
	defer cancel()

	idx, text, err := page.WaitFirst(ctx, selInventory, selLoginError)
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return stepErr(ReasonAwaitLogin, "Timed out waiting for login result", err)
	case err != nil:
		return stepErr(ReasonAwaitLogin, "Login failed: "+err.Error(), err)
	case idx == 1:
		if text == "" {
			text = "unknown error"
		}
		return stepErr(ReasonLogin, "Login failed: "+text, nil)
	}
	return nil
}

func (w *Worker) findItem(ctx context.Context, page Page) (Element, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeouts.Item)
	defer cancel()

	row, err := page.FindByText(ctx, selInventoryRow, w.cfg.Item)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, stepErr(ReasonFindItem, "Product not found: "+w.cfg.Item, err)
		}
		return nil, stepErr(ReasonFindItem, "Product lookup failed: "+err.Error(), err)
	}
	return row, nil
}

func (w *Worker) readPrice(ctx context.Context, row Element) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeouts.Item)
	defer cancel()

	text, err := row.ChildText(ctx, selItemPrice)
	price := strings.TrimSpace(text)
	if err != nil || price == "" {
		return "", stepErr(ReasonReadPrice, "Price not found for "+w.cfg.Item, err)
	}
	return price, nil
}
