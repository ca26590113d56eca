// Package webpage fetches a contact's homepage and reduces it to plain text.
package webpage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	DefaultTimeout = 15 * time.Second
	UserAgent      = "Mozilla/5.0 (compatible; HR-Agent/1.0; +https://github.com/hr-agent)"
	maxBodyBytes   = 4 << 20
)

var (
	ErrSkipped     = errors.New("url skipped")
	socialPatterns = []string{"facebook.com", "instagram.com", "linkedin.com", "tiktok.com"}
)

type Fetcher struct {
	http *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{http: &http.Client{Timeout: timeout}}
}

// HomepageURL reduces any http(s) URL to its origin followed by "/".
func HomepageURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host + "/", true
}

func IsSocial(raw string) bool {
	lower := strings.ToLower(raw)
	for _, p := range socialPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// FetchText returns at most maxChars characters of visible body text.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string, maxChars int) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("%w: not an http url", ErrSkipped)
	}
	if IsSocial(rawURL) {
		return "", fmt.Errorf("%w: social network", ErrSkipped)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	text, err := ExtractText(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return Truncate(text, maxChars), nil
}

// ExtractText parses HTML and returns the whitespace-collapsed text of <body>
// (or the whole document when there is none), without script and style content.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	root := findBody(doc)
	if root == nil {
		root = doc
	}
	return strings.Join(strings.Fields(extractText(root)), " "), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findBody(child); found != nil {
			return found
		}
	}
	return nil
}

func extractText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" || node.Data == "noscript" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return buf.String()
}

// Truncate cuts s to maxChars runes; maxChars <= 0 keeps everything.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
