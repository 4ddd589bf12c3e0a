// Package content extracts readable article text from web pages for the
// enrichment step.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"

	"github.com/YuqingLong18/aidaily/pkg/htmltext"
)

// extraction limits
const (
	defaultMaxChars = 12000
	minParagraphLen = 40
)

// Extractor retrieves a page and extracts its main text using trafilatura,
// falling back to meta description plus paragraph scraping when trafilatura
// finds nothing.
type Extractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

// NewExtractor creates a content extractor with the given per-request timeout
func NewExtractor(timeout time.Duration, userAgent string) *Extractor {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; aidaily/1.0)"
	}
	return &Extractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxChars:  defaultMaxChars,
	}
}

// Extract retrieves and extracts text content from the given URL
func (e *Extractor) Extract(ctx context.Context, urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, urlStr)
	}

	// buffer the body, both extraction passes need it
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body from %s: %w", urlStr, err)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   false,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	if result, terr := trafilatura.Extract(bytes.NewReader(body), opts); terr == nil && result != nil {
		if text := strings.TrimSpace(result.ContentText); text != "" {
			return e.truncate(text), nil
		}
	}

	// trafilatura came up empty, scrape meta description and paragraphs
	text, err := e.fallbackExtract(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", urlStr, err)
	}
	if text == "" {
		return "", fmt.Errorf("no text content extracted from %s", urlStr)
	}
	return e.truncate(text), nil
}

// fallbackExtract pulls meta descriptions and substantial paragraphs out of
// raw HTML
func (e *Extractor) fallbackExtract(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var parts []string
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if desc, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(desc) != "" {
			parts = append(parts, strings.TrimSpace(desc))
		}
	}

	root := doc.Selection
	if article := doc.Find("article"); article.Length() > 0 {
		root = article.First()
	}
	root.Find("p").Each(func(_ int, p *goquery.Selection) {
		if txt := htmltext.NormalizeSpace(p.Text()); len(txt) >= minParagraphLen {
			parts = append(parts, txt)
		}
	})

	return htmltext.NormalizeSpace(strings.Join(parts, "\n")), nil
}

func (e *Extractor) truncate(text string) string {
	if len(text) > e.maxChars {
		return text[:e.maxChars]
	}
	return text
}
