// Package ingestion fetches support documentation pages and turns them into
// plain-text documents for the index. It also carries the built-in sample
// corpus used when the configured source cannot be reached.
package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/54b3r/supportai-go/internal/chunker"
	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/rag"
)

const (
	// DefaultSourceURL is the page indexed when no source is configured.
	DefaultSourceURL = "https://www.ziggo.nl/internet"

	// DefaultTimeout bounds one page fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent with every fetch; some sites block empty agents.
	DefaultUserAgent = "Mozilla/5.0 (compatible; supportai-go/1.0; +https://github.com/54b3r/supportai-go)"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 10 << 20
)

// skipElements are dropped with their whole subtree when extracting text.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "footer": true, "header": true, "svg": true, "iframe": true,
}

// blockElements end a run of text so words from adjacent blocks never merge.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "th": true, "section": true, "article": true,
	"table": true, "dd": true, "dt": true,
}

// FetcherConfig holds the configuration for a Fetcher.
type FetcherConfig struct {
	// Timeout bounds each page fetch. Defaults to 10s if zero.
	Timeout time.Duration
	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
	// RequestsPerSecond paces FetchAll. Defaults to 1 if zero.
	RequestsPerSecond float64
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Fetcher downloads pages and reduces them to document text.
type Fetcher struct {
	// client performs the requests.
	client *http.Client
	// cfg holds the resolved configuration.
	cfg FetcherConfig
	// limiter paces consecutive fetches to the same site.
	limiter *rate.Limiter
}

// NewFetcher constructs a Fetcher. A nil cfg selects the defaults.
func NewFetcher(cfg *FetcherConfig) *Fetcher {
	c := FetcherConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	return &Fetcher{
		client:  client,
		cfg:     c,
		limiter: rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1),
	}
}

// Fetch downloads url and returns it as a document. HTML is reduced to its
// visible text; other text content types are used as-is. The document carries
// an inferred topic in its metadata.
func (f *Fetcher) Fetch(ctx context.Context, url string) (rag.Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return rag.Document{}, fmt.Errorf("ingestion: fetch %s: %w", url, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingestion: creating request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html, text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingestion: http get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rag.Document{}, fmt.Errorf("ingestion: unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingestion: reading body of %s: %w", url, err)
	}

	text := string(body)
	if ct := resp.Header.Get("Content-Type"); ct == "" || strings.Contains(ct, "html") {
		text, err = ExtractText(bytes.NewReader(body))
		if err != nil {
			return rag.Document{}, fmt.Errorf("ingestion: parsing %s: %w", url, err)
		}
	} else {
		text = strings.Join(strings.Fields(text), " ")
	}
	if text == "" {
		return rag.Document{}, fmt.Errorf("ingestion: %s has no text content: %w", url, rag.ErrInvalidInput)
	}

	logging.FromContext(ctx).Info("ingestion: fetched page",
		slog.String("url", url),
		slog.Int("chars", len(text)),
	)
	return NewDocument(url, text, map[string]string{"topic": InferTopic(url)}), nil
}

// FetchAll fetches every url in order. Failed pages are logged and skipped;
// an error is returned only when no page could be fetched or ctx ends.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]rag.Document, error) {
	docs := make([]rag.Document, 0, len(urls))
	var errs []error
	for _, u := range urls {
		doc, err := f.Fetch(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.FromContext(ctx).Warn("ingestion: skipping source", slog.String("url", u), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return docs, nil
}

// NewDocument builds a document with a content-derived ID.
func NewDocument(source, text string, metadata map[string]string) rag.Document {
	return rag.Document{
		ID:       chunker.DocumentID(source, text),
		Source:   source,
		Text:     text,
		Metadata: metadata,
	}
}

// ExtractText returns the visible text of an HTML document with
// navigation, scripts and styles removed and whitespace collapsed.
func ExtractText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var (
		b     strings.Builder
		skip  int
		words []string
	)
	flush := func() {
		if len(words) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.Join(words, " "))
		words = words[:0]
	}
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			flush()
			return b.String(), nil
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipElements[tag] {
				skip++
			} else if blockElements[tag] {
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipElements[tag] && skip > 0 {
				skip--
			} else if blockElements[tag] {
				flush()
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockElements[string(name)] {
				flush()
			}
		case html.TextToken:
			if skip == 0 {
				words = append(words, strings.Fields(string(z.Text()))...)
			}
		}
	}
}
