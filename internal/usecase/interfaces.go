package usecase

import (
	"context"

	"github.com/xavierca1/prospect-agent/internal/infra/integration/millionverifier"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/search"
	"github.com/xavierca1/prospect-agent/internal/infra/mail"
	"github.com/xavierca1/prospect-agent/internal/infra/queue"
)

type SearchBackend interface {
	Search(ctx context.Context, q search.Query) ([]search.Result, error)
}

type DeliverabilityOracle interface {
	// CheckAll is index-aligned with emails.
	CheckAll(ctx context.Context, emails []string) []millionverifier.Verdict
}

type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

type PageFetcher interface {
	FetchText(ctx context.Context, url string, maxChars int) (string, error)
}

type DeliveryProvider interface {
	Send(ctx context.Context, msg mail.Message) (string, error)
	ListVerifiedDomains(ctx context.Context) ([]string, error)
}

type QueryStore interface {
	Pending() ([]string, error)
	MarkDone(query string) error
}

type StatusPublisher interface {
	PublishStatusChange(ctx context.Context, event queue.StatusEvent) error
}
