// Package app wires configuration into stores, integrations and stage runners.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
	"github.com/xavierca1/prospect-agent/internal/infra/database"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/llm"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/millionverifier"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/resend"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/searxng"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/serper"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/webpage"
	"github.com/xavierca1/prospect-agent/internal/infra/mail"
	"github.com/xavierca1/prospect-agent/internal/infra/memstore"
	"github.com/xavierca1/prospect-agent/internal/infra/queryfile"
	"github.com/xavierca1/prospect-agent/internal/infra/queue"
	"github.com/xavierca1/prospect-agent/internal/usecase"
)

type App struct {
	Config *config.Config

	DB       *sql.DB
	RabbitMQ *queue.RabbitMQ

	Contacts   entity.ContactRepositoryInterface
	Emails     entity.EmailRepositoryInterface
	Identities entity.IdentityRepositoryInterface

	Pipeline *usecase.Pipeline
	Reclaim  *usecase.ReclaimUseCase
}

// New opens the store and the event broker and builds every stage runner.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	// 1. Store
	switch cfg.Store.Driver {
	case "memory":
		log.Println("⚠️ [app] memory store: contacts are lost when the process exits")
		store := memstore.New()
		a.Contacts, a.Emails, a.Identities = store.Contacts(), store.Emails(), store.Identities()
	default:
		db, err := database.NewDBConnection(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.DB = db
		a.Contacts = database.NewContactRepository(db, cfg.Store.PageSize)
		a.Emails = database.NewEmailRepository(db)
		a.Identities = database.NewIdentityRepository(db)
	}

	// 2. Events
	var events usecase.StatusPublisher = queue.NoopProducer{}
	if cfg.Events.AMQPURL != "" {
		mq, err := queue.NewRabbitMQ(cfg.Events.AMQPURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.RabbitMQ = mq
		events = queue.NewProducer(mq.Ch)
	} else {
		log.Println("⚠️ [app] AMQP_URL not set, status events are not published")
	}

	// 3. Integrations
	gen, err := NewGenerator(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	backend := NewSearchBackend(cfg.Search)
	delivery := NewDeliveryProvider(cfg.Delivery)
	oracle := millionverifier.NewClient(cfg.Verify.OracleAPIKey, cfg.Verify.OracleURL, cfg.Verify.OracleConcurrency, cfg.Verify.OracleTimeout)
	if !oracle.Enabled() {
		log.Println("⚠️ [app] MILLIONVERIFIER_API_KEY not set, every address passes the deliverability check")
	}
	fetcher := webpage.NewFetcher(cfg.Enrich.FetchTimeout)
	queries := queryfile.New(cfg.Discover.PendingFile, cfg.Discover.HistoricFile)

	// 4. Stage runners
	a.Reclaim = usecase.NewReclaimUseCase(a.Contacts)
	a.Pipeline = usecase.NewPipeline(
		usecase.NewDiscoverUseCase(a.Contacts, backend, queries, events, usecase.DiscoverOptions{
			Domains:  cfg.Discover.Domains,
			PageCap:  cfg.Discover.PageCap,
			DelayMin: cfg.Discover.DelayMin,
			DelayMax: cfg.Discover.DelayMax,
			Limit:    cfg.Discover.Limit,
		}),
		usecase.NewVerifyUseCase(a.Contacts, oracle, gen, events, usecase.VerifyOptions{
			Limit:           cfg.Verify.Limit,
			InterestGate:    cfg.Verify.InterestGate,
			IncludeRejected: cfg.Verify.IncludeRejected,
		}),
		usecase.NewEnrichUseCase(a.Contacts, a.Identities, fetcher, gen, backend, events, usecase.EnrichOptions{
			Limit:        cfg.Enrich.Limit,
			From:         entity.Status(cfg.Enrich.From),
			CharsBudget:  cfg.Enrich.CharsBudget,
			Interlocutor: cfg.Enrich.Interlocutor,
		}),
		usecase.NewDraftUseCase(a.Contacts, a.Emails, a.Identities, gen, events, usecase.DraftOptions{
			Limit:    cfg.Draft.Limit,
			Template: cfg.Dispatch.Mode == usecase.DispatchTemplate,
		}),
		usecase.NewDispatchUseCase(a.Contacts, a.Emails, a.Identities, delivery, events, usecase.DispatchOptions{
			Limit:       cfg.Dispatch.Limit,
			Mode:        cfg.Dispatch.Mode,
			LeaseTTL:    cfg.Dispatch.LeaseTTL,
			RetryErrors: cfg.Dispatch.RetryErrors,
		}),
		a.Reclaim,
	)

	return a, nil
}

func (a *App) Close() {
	if a.RabbitMQ != nil {
		if err := a.RabbitMQ.Close(); err != nil {
			log.Printf("⚠️ [app] close RabbitMQ: %v", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Printf("⚠️ [app] close database: %v", err)
		}
	}
}

func NewGenerator(cfg config.LLMConfig) (usecase.Generator, error) {
	gen, err := llm.New(llm.Config{
		Backend: cfg.Backend,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("generation backend: %w", err)
	}
	return gen, nil
}

func NewSearchBackend(cfg config.SearchConfig) usecase.SearchBackend {
	if cfg.Backend == "searxng" {
		return searxng.NewClient(cfg.SearxngURL, cfg.Language, cfg.Timeout)
	}
	return serper.NewClient(cfg.SerperAPIKey, cfg.SerperURL, serper.Options{
		Country:   cfg.Country,
		Language:  cfg.Language,
		TimeRange: cfg.TimeRange,
		Num:       cfg.ResultsPerPage,
		Timeout:   cfg.Timeout,
	})
}

func NewDeliveryProvider(cfg config.DeliveryConfig) usecase.DeliveryProvider {
	if cfg.Provider == "smtp" {
		return mail.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPDomains)
	}
	return resend.NewClient(cfg.ResendAPIKey, cfg.ResendURL)
}
