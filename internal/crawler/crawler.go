// Package crawler fetches web pages and reduces them to plain text suitable
// for ingestion.
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultTimeout = 10 * time.Second
	maxFetchSize   = 5 << 20 // 5MB
	userAgent      = "aigist/1.0 (+https://github.com/aigist/aigist)"
)

// Page is the extracted content of a fetched URL.
type Page struct {
	URL   string
	Title string
	Text  string
}

// Crawler fetches and extracts pages.
type Crawler struct {
	httpClient *http.Client
}

// New creates a Crawler with a default timeout.
func New() *Crawler {
	return &Crawler{httpClient: &http.Client{Timeout: defaultTimeout}}
}

// NewWithClient creates a Crawler using the given HTTP client (for testing).
func NewWithClient(c *http.Client) *Crawler {
	return &Crawler{httpClient: c}
}

// Fetch downloads url and returns its title and visible text. Non-HTML
// responses are returned as raw text. The response body is capped at 5MB.
func (c *Crawler) Fetch(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return Page{}, fmt.Errorf("reading %s: %w", url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "html") {
		return Page{URL: url, Text: strings.TrimSpace(string(body))}, nil
	}

	title, text, err := extractHTML(body)
	if err != nil {
		return Page{}, fmt.Errorf("parsing %s: %w", url, err)
	}
	return Page{URL: url, Title: title, Text: text}, nil
}

// extractHTML walks the parse tree collecting visible text, skipping
// script, style, and similar non-content subtrees.
func extractHTML(body []byte) (title, text string, err error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return title, strings.TrimSpace(b.String()), nil
}
