package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/jonathan/coverletter/internal/fetch"
)

var (
	// ErrHTTPRequestFailed wraps download failures.
	ErrHTTPRequestFailed = errors.New("HTTP request failed")
	// ErrContentExtractionFailed is returned when no text could be read from the page.
	ErrContentExtractionFailed = errors.New("content extraction failed")
)

// Posting is a job posting reduced to text.
type Posting struct {
	URL       string
	Platform  fetch.Platform
	Title     string
	Company   string
	Text      string
	Hash      string
	FetchedAt time.Time
	Rendered  bool
}

// Options configures FromURL.
type Options struct {
	// UseBrowser renders the page in headless Chrome when the plain fetch
	// yields too little text.
	UseBrowser     bool
	BrowserTimeout time.Duration
	Fetch          *fetch.Options
	// Render replaces fetch.Render.
	Render fetch.RenderFunc
	Logger *log.Logger
}

func (o *Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard, "", 0)
}

// FromURL downloads a posting and extracts its description using the
// selectors of the detected job board.
func FromURL(ctx context.Context, rawURL string, opts *Options) (*Posting, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.logger()

	platform := fetch.DetectPlatform(rawURL)
	logger.Printf("[INGEST] %s (platform %s)", rawURL, platform)

	result, err := fetch.URL(ctx, rawURL, opts.Fetch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, err)
	}

	content := fetch.ContentSelectors(platform)
	noise := fetch.NoiseSelectors(platform)
	html := result.HTML

	text, err := fetch.ExtractMainText(html, content, noise...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
	}
	logger.Printf("[INGEST] extracted %d chars", len(text))

	rendered := false
	if opts.UseBrowser && fetch.NeedsBrowser(text) {
		render := opts.Render
		if render == nil {
			render = fetch.Render
		}
		logger.Printf("[INGEST] content too short (%d < %d chars), rendering in browser", len(text), fetch.MinContentLength)
		if browserHTML, err := render(ctx, rawURL, opts.BrowserTimeout, logger); err != nil {
			logger.Printf("[INGEST] browser rendering failed, keeping HTTP content: %v", err)
		} else if browserText, err := fetch.ExtractMainText(browserHTML, content, noise...); err == nil && len(browserText) > len(text) {
			text, html, rendered = browserText, browserHTML, true
		}
	}

	text = CleanText(text)
	if text == "" {
		return nil, fmt.Errorf("%w: no text found at %s", ErrContentExtractionFailed, rawURL)
	}

	return &Posting{
		URL:       rawURL,
		Platform:  platform,
		Title:     fetch.PageTitle(html),
		Company:   fetch.SiteName(html),
		Text:      text,
		Hash:      hash(text),
		FetchedAt: time.Now().UTC(),
		Rendered:  rendered,
	}, nil
}

func hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Summary returns the first n runes of the posting text on one line.
func (p *Posting) Summary(n int) string {
	line := strings.Join(strings.Fields(p.Text), " ")
	runes := []rune(line)
	if len(runes) <= n {
		return line
	}
	return string(runes[:n]) + "..."
}
