package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/xavierca1/prospect-agent/internal/infra/integration/search"
)

const DefaultURL = "https://google.serper.dev/search"

type Options struct {
	Country   string
	Language  string
	TimeRange string
	Num       int
	Timeout   time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	opts    Options
	http    *http.Client
}

func NewClient(apiKey, baseURL string, opts Options) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
	}
}

func (c *Client) Name() string { return "serper" }

func (c *Client) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("SERPER_API_KEY is missing: %w", search.ErrNotConfigured)
	}

	payload := searchRequest{
		Q:    q.Text,
		Num:  c.opts.Num,
		Page: q.Page,
		GL:   c.opts.Country,
		HL:   c.opts.Language,
		TBS:  c.opts.TimeRange,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal serper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: serper: %v", search.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("[Serper] API error (status %d): %s", resp.StatusCode, string(msg))
		return nil, fmt.Errorf("serper search failed (status %d)", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode serper response: %w", err)
	}

	results := make([]search.Result, 0, len(out.Organic))
	for _, r := range out.Organic {
		results = append(results, search.Result{Title: r.Title, Snippet: r.Snippet, Link: r.Link})
	}
	return results, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
}
