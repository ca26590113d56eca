package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/millionverifier"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/search"
	"github.com/xavierca1/prospect-agent/internal/infra/mail"
	"github.com/xavierca1/prospect-agent/internal/infra/queue"
)

// MockSearchBackend
type MockSearchBackend struct {
	mock.Mock
}

func (m *MockSearchBackend) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]search.Result), args.Error(1)
}

// MockOracle
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) CheckAll(ctx context.Context, emails []string) []millionverifier.Verdict {
	args := m.Called(ctx, emails)
	return args.Get(0).([]millionverifier.Verdict)
}

// MockGenerator answers by system prompt; use forPrompt to match one.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

func forPrompt(p Prompt) any {
	system, _ := p.Render(nil)
	return mock.MatchedBy(func(s string) bool { return s == system })
}

// MockPageFetcher
type MockPageFetcher struct {
	mock.Mock
}

func (m *MockPageFetcher) FetchText(ctx context.Context, url string, maxChars int) (string, error) {
	args := m.Called(ctx, url, maxChars)
	return args.String(0), args.Error(1)
}

// MockDeliveryProvider
type MockDeliveryProvider struct {
	mock.Mock
}

func (m *MockDeliveryProvider) Send(ctx context.Context, msg mail.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockDeliveryProvider) ListVerifiedDomains(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// memQueries is a QueryStore over two slices.
type memQueries struct {
	mu       sync.Mutex
	pending  []string
	historic []string
}

func (q *memQueries) Pending() ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.pending...), nil
}

func (q *memQueries) MarkDone(query string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.pending[:0]
	for _, p := range q.pending {
		if p != query {
			kept = append(kept, p)
		}
	}
	q.pending = kept
	q.historic = append([]string{query}, q.historic...)
	return nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.StatusEvent
}

func (p *recordingPublisher) PublishStatusChange(ctx context.Context, e queue.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func ok(email string) millionverifier.Verdict {
	return millionverifier.Verdict{Email: email, Result: "ok", Valid: true}
}
