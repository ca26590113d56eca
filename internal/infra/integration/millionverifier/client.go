package millionverifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultURL         = "https://api.millionverifier.com/api/v3/"
	DefaultConcurrency = 5
)

// ok = deliverable, catch_all = domain accepts everything, unknown = undetermined
var passingResults = map[string]bool{
	"ok":        true,
	"catch_all": true,
	"unknown":   true,
}

type Verdict struct {
	Email  string
	Result string
	Valid  bool
	// Err is set when the check itself failed; Result and Valid are then meaningless.
	Err error
}

type Client struct {
	baseURL     string
	apiKey      string
	concurrency int
	http        *http.Client
}

func NewClient(apiKey, baseURL string, concurrency int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		concurrency: concurrency,
		http:        &http.Client{Timeout: timeout},
	}
}

// Enabled is false without an API key; callers then keep every address.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type checkResponse struct {
	Email  string `json:"email"`
	Result string `json:"result"`
	Error  string `json:"error"`
}

func (c *Client) Check(ctx context.Context, email string) (Verdict, error) {
	if !c.Enabled() {
		return Verdict{Email: email, Result: "unchecked", Valid: true}, nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Verdict{}, fmt.Errorf("millionverifier url: %w", err)
	}
	params := u.Query()
	params.Set("api", c.apiKey)
	params.Set("email", email)
	params.Set("timeout", "10")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Verdict{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("millionverifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Verdict{}, fmt.Errorf("millionverifier error %d: %s", resp.StatusCode, string(body))
	}

	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verdict{}, fmt.Errorf("decode millionverifier response: %w", err)
	}
	if out.Error != "" {
		return Verdict{}, fmt.Errorf("millionverifier: %s", out.Error)
	}

	result := strings.ToLower(strings.TrimSpace(out.Result))
	if result == "" {
		result = "unknown"
	}
	return Verdict{Email: email, Result: result, Valid: passingResults[result]}, nil
}

// CheckAll verifies emails with bounded concurrency. The returned slice is
// index-aligned with emails; a failed check is reported in Verdict.Err and
// does not cancel its siblings.
func (c *Client) CheckAll(ctx context.Context, emails []string) []Verdict {
	verdicts := make([]Verdict, len(emails))
	if len(emails) == 0 {
		return verdicts
	}
	if !c.Enabled() {
		log.Printf("[MillionVerifier] ⚠️ MILLIONVERIFIER_API_KEY missing: verification skipped, %d address(es) kept", len(emails))
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, email := range emails {
		g.Go(func() error {
			v, err := c.Check(ctx, email)
			if err != nil {
				v = Verdict{Email: email, Result: "error", Err: err}
			}
			verdicts[i] = v
			return nil
		})
	}
	_ = g.Wait()
	return verdicts
}
