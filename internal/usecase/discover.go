package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/xavierca1/prospect-agent/internal/classifier"
	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/search"
)

type DiscoverOptions struct {
	Domains  []string
	PageCap  int
	DelayMin time.Duration
	DelayMax time.Duration
	// Limit caps the contacts inserted per run.
	Limit config.Limit
}

type DiscoverUseCase struct {
	Contacts entity.ContactRepositoryInterface
	Search   SearchBackend
	Queries  QueryStore
	Events   StatusPublisher
	Opts     DiscoverOptions

	// Sleep waits between search requests; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewDiscoverUseCase(contacts entity.ContactRepositoryInterface, backend SearchBackend, queries QueryStore, events StatusPublisher, opts DiscoverOptions) *DiscoverUseCase {
	return &DiscoverUseCase{
		Contacts: contacts,
		Search:   backend,
		Queries:  queries,
		Events:   events,
		Opts:     opts,
		Sleep:    sleepContext,
	}
}

func (uc *DiscoverUseCase) Stage() entity.Stage { return entity.StageDiscover }

// candidate is one extracted address with the search result it came from.
type candidate struct {
	email  string
	result search.Result
}

func (uc *DiscoverUseCase) Execute(ctx context.Context, in RunInput) (*Summary, error) {
	limit := in.limit(uc.Opts.Limit)
	summary := newSummary(entity.StageDiscover, uuid.NewString(), limit)
	defer summary.finish()

	if uc.Search == nil {
		return summary, &ConfigError{Message: "no search backend configured"}
	}
	if len(uc.Opts.Domains) == 0 {
		return summary, &ConfigError{Message: "no email domains configured"}
	}

	queries, err := uc.Queries.Pending()
	if err != nil {
		return summary, &ConfigError{Message: "cannot read pending queries", Err: err}
	}
	log.Printf("[discover] %d pending quer(ies), %d domain(s), page cap %d", len(queries), len(uc.Opts.Domains), uc.Opts.PageCap)

	firstRequest := true
	for i, query := range queries {
		if remainingInserts(limit, summary) == 0 {
			log.Printf("[discover] limit %s reached, %d quer(ies) left pending", limit, len(queries)-i)
			break
		}

		progress := fmt.Sprintf("[%d/%d]", i+1, len(queries))
		log.Printf("[discover] %s --- query: %q ---", progress, query)

		found, searchFailed, err := uc.collect(ctx, query, summary, &firstRequest)
		if err != nil {
			summary.Aborted = err.Error()
			return summary, err
		}
		summary.Selected += len(found)

		inserted, complete := uc.store(ctx, query, found, limit, summary)
		log.Printf("[discover] %s extracted: %d | inserted: %d", progress, len(found), inserted)

		// A query stays pending until every search succeeded and every candidate was handled.
		switch {
		case searchFailed:
			log.Printf("[discover] %s ⚠️ %q kept pending after a search error", progress, query)
			continue
		case !complete:
			log.Printf("[discover] %s limit reached, %q kept pending", progress, query)
			continue
		}
		if err := uc.Queries.MarkDone(query); err != nil {
			log.Printf("[discover] ⚠️ could not move %q to historic: %v", query, err)
			summary.Errors++
		}
	}
	return summary, nil
}

// collect runs every query × domain pair and returns the addresses deduplicated
// across domains. A backend that is unreachable or not configured aborts the run;
// any other search error is reported through searchFailed.
func (uc *DiscoverUseCase) collect(ctx context.Context, query string, summary *Summary, firstRequest *bool) (found []candidate, searchFailed bool, err error) {
	seen := make(map[string]bool)

	for _, domain := range uc.Opts.Domains {
		searchStr := fmt.Sprintf(`"%s" "%s"`, query, domain)

		for page := 1; page <= uc.Opts.PageCap; page++ {
			if !*firstRequest {
				if err := uc.Sleep(ctx, uc.delay()); err != nil {
					return nil, false, err
				}
			}
			*firstRequest = false

			results, err := uc.Search.Search(ctx, search.Query{Text: searchStr, Page: page})
			if err != nil {
				if errors.Is(err, search.ErrNotConfigured) {
					return nil, false, &ConfigError{Message: "search backend", Err: err}
				}
				if errors.Is(err, search.ErrBackendUnreachable) || ctx.Err() != nil {
					return nil, false, &TechnicalError{Code: "search_unreachable", Message: "search backend unreachable", Err: err}
				}
				log.Printf("[discover] ⚠️ search error (query %q, domain %s, page %d): %v", query, domain, page, err)
				summary.Errors++
				summary.reason("search error")
				searchFailed = true
				break
			}

			newCount := 0
			for _, r := range results {
				for _, email := range classifier.ExtractEmails(r.Title, r.Snippet, r.Link) {
					if seen[email] {
						continue
					}
					seen[email] = true
					newCount++
					found = append(found, candidate{email: email, result: r})
				}
			}
			log.Printf("[discover] extracted: %d | page: %d | domain: %s", newCount, page, domain)

			if len(results) <= 1 || newCount == 0 {
				break
			}
		}
	}
	return found, searchFailed, nil
}

// store inserts the new candidates; complete is false when the insert limit
// stopped it before the last candidate.
func (uc *DiscoverUseCase) store(ctx context.Context, query string, found []candidate, limit config.Limit, summary *Summary) (inserted int, complete bool) {
	for _, cand := range found {
		if remainingInserts(limit, summary) == 0 {
			return inserted, false
		}

		if _, err := uc.Contacts.FindByEmail(ctx, cand.email); err == nil {
			summary.Skipped++
			summary.reason("already known")
			continue
		} else if !errors.Is(err, entity.ErrNotFound) {
			log.Printf("[discover] ❌ lookup %s: %v", cand.email, err)
			summary.Errors++
			contactErrors.WithLabelValues(string(entity.StageDiscover)).Inc()
			continue
		}

		contact, err := entity.NewContact(cand.email, query, entity.AdditionalData{
			entity.MetaTitle:       cand.result.Title,
			entity.MetaDescription: cand.result.Snippet,
			entity.MetaURL:         cand.result.Link,
		})
		if err != nil {
			summary.Errors++
			continue
		}

		if err := uc.Contacts.Create(ctx, contact); err != nil {
			if errors.Is(err, entity.ErrEmailAlreadyExists) {
				summary.Skipped++
				summary.reason("already known")
				continue
			}
			log.Printf("[discover] ❌ insert %s: %v", cand.email, err)
			summary.Errors++
			contactErrors.WithLabelValues(string(entity.StageDiscover)).Inc()
			continue
		}

		publishStatus(ctx, uc.Events, summary.RunID, entity.StageDiscover, "", contact)
		summary.Processed++
		inserted++
	}
	return inserted, true
}

// delay is uniform in [DelayMin, DelayMax].
func (uc *DiscoverUseCase) delay() time.Duration {
	lo, hi := uc.Opts.DelayMin, uc.Opts.DelayMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// remainingInserts returns -1 when unlimited.
func remainingInserts(limit config.Limit, s *Summary) int {
	if limit.IsUnlimited() {
		return -1
	}
	left := int(limit) - s.Processed
	if left < 0 {
		return 0
	}
	return left
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
