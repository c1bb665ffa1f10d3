// Package artifacts stores diagnostic captures taken when a worker run fails.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/use-agent/pricecheck/models"
)

// TimestampLayout is the UTC timestamp embedded in artifact file names.
const TimestampLayout = "20060102T150405Z"

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// Snapshot is the page state captured at failure time. Empty fields are not
// written.
type Snapshot struct {
	Screenshot []byte
	HTML       string
	URL        string
}

// Writer saves snapshots as <reason>-<timestamp>.<ext> under Dir.
type Writer struct {
	Dir      string
	Markdown bool
	Now      func() time.Time

	conv *converter.Converter
}

// NewWriter creates a Writer. With markdown set, a Markdown digest of the
// page markup is written next to the raw HTML.
func NewWriter(dir string, markdown bool) *Writer {
	w := &Writer{Dir: dir, Markdown: markdown, Now: time.Now}
	if markdown {
		w.conv = newMarkdownConverter()
	}
	return w
}

// newMarkdownConverter is a goroutine-safe html-to-markdown converter that
// keeps tables, since price listings are often tabular.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// Save writes every non-empty part of snap and returns the paths written,
// keyed by artifact kind. A failed part does not stop the others; all
// failures are joined into the returned error.
func (w *Writer) Save(reason string, snap Snapshot) (map[string]string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", w.Dir, err)
	}

	stem := filepath.Join(w.Dir, fileStem(reason, w.now()))
	paths := make(map[string]string, 3)
	var errs []error

	write := func(kind, ext string, data []byte) {
		path := stem + ext
		if err := os.WriteFile(path, data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", kind, err))
			return
		}
		paths[kind] = path
	}

	if len(snap.Screenshot) > 0 {
		write(models.ArtifactScreenshot, ".png", snap.Screenshot)
	}
	if snap.HTML != "" {
		write(models.ArtifactHTML, ".html", []byte(snap.HTML))

		if w.Markdown {
			md, err := w.toMarkdown(snap)
			if err != nil {
				errs = append(errs, fmt.Errorf("convert markdown: %w", err))
			} else {
				write(models.ArtifactMarkdown, ".md", []byte(md))
			}
		}
	}

	return paths, errors.Join(errs...)
}

func (w *Writer) toMarkdown(snap Snapshot) (string, error) {
	if w.conv == nil {
		w.conv = newMarkdownConverter()
	}
	if snap.URL != "" {
		return w.conv.ConvertString(snap.HTML, converter.WithDomain(snap.URL))
	}
	return w.conv.ConvertString(snap.HTML)
}

func (w *Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

// fileStem builds <reason>-<UTC timestamp>, reducing reason to lowercase
// alphanumerics and dashes.
func fileStem(reason string, at time.Time) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(reason), "-"), "-")
	if slug == "" {
		slug = "failure"
	}
	return slug + "-" + at.UTC().Format(TimestampLayout)
}
