package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/search"
	"github.com/xavierca1/prospect-agent/internal/infra/memstore"
)

func onPage(page int) any {
	return mock.MatchedBy(func(q search.Query) bool { return q.Page == page })
}

func newDiscover(store *memstore.Store, backend SearchBackend, queries QueryStore) *DiscoverUseCase {
	uc := NewDiscoverUseCase(store.Contacts(), backend, queries, nil, DiscoverOptions{
		Domains:  []string{"@gmail.com"},
		PageCap:  10,
		DelayMin: time.Second,
		DelayMax: 3 * time.Second,
		Limit:    config.Unlimited,
	})
	uc.Sleep = noSleep
	return uc
}

var firstPage = []search.Result{
	{Title: "Consultante SEO freelance", Snippet: "Contact : marie.curie@gmail.com", Link: "https://marie.fr"},
	{Title: "Expert SEO à Lyon", Snippet: "Écrivez à Paul.Martin@GMAIL.com", Link: "https://paulmartin.fr"},
	{Title: "SEO indépendant", Snippet: "louise.michel@gmail.com - devis gratuit", Link: "https://louise.fr"},
}

func TestDiscover_StopsWhenPageBringsNothingNew(t *testing.T) {
	store := memstore.New()
	backend := new(MockSearchBackend)
	backend.On("Search", mock.Anything, onPage(1)).Return(firstPage, nil).Once()
	backend.On("Search", mock.Anything, onPage(2)).Return(firstPage, nil).Once()

	queries := &memQueries{pending: []string{"expert SEO"}}
	summary, err := newDiscover(store, backend, queries).Execute(context.Background(), RunInput{})

	require.NoError(t, err)
	backend.AssertNumberOfCalls(t, "Search", 2)
	assert.Equal(t, 3, summary.Processed)
	assert.Empty(t, queries.pending)
	assert.Equal(t, []string{"expert SEO"}, queries.historic)

	got, err := store.Contacts().FindByEmail(context.Background(), "paul.martin@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusNew, got.Status)
	assert.Equal(t, "expert SEO", got.SourceQuery)
	assert.Equal(t, "https://paulmartin.fr", got.AdditionalData.String(entity.MetaURL))
}

func TestDiscover_SearchStringQuotesQueryAndDomain(t *testing.T) {
	backend := new(MockSearchBackend)
	backend.On("Search", mock.Anything, search.Query{Text: `"expert SEO" "@gmail.com"`, Page: 1}).
		Return([]search.Result{}, nil).Once()

	_, err := newDiscover(memstore.New(), backend, &memQueries{pending: []string{"expert SEO"}}).
		Execute(context.Background(), RunInput{})

	require.NoError(t, err)
	backend.AssertExpectations(t)
}

func TestDiscover_SameQueryTwiceInsertsOnce(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	backend := new(MockSearchBackend)
	backend.On("Search", mock.Anything, onPage(1)).Return(firstPage, nil)
	backend.On("Search", mock.Anything, mock.Anything).Return([]search.Result{}, nil)

	first, err := newDiscover(store, backend, &memQueries{pending: []string{"expert SEO"}}).Execute(ctx, RunInput{})
	require.NoError(t, err)
	second, err := newDiscover(store, backend, &memQueries{pending: []string{"expert SEO"}}).Execute(ctx, RunInput{})
	require.NoError(t, err)

	counts, err := store.Contacts().CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[entity.StatusNew])
	assert.Equal(t, 3, first.Processed)
	assert.Zero(t, second.Processed)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 3, second.Reasons["already known"])
}

func TestDiscover_RespectsInsertLimit(t *testing.T) {
	store := memstore.New()
	backend := new(MockSearchBackend)
	backend.On("Search", mock.Anything, onPage(1)).Return(firstPage, nil)
	backend.On("Search", mock.Anything, mock.Anything).Return([]search.Result{}, nil)

	two := config.Limit(2)
	summary, err := newDiscover(store, backend, &memQueries{pending: []string{"expert SEO"}}).
		Execute(context.Background(), RunInput{Limit: &two})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
}

func TestDiscover_LimitKeepsQueryPendingUntilEveryAddressStored(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	backend := new(MockSearchBackend)
	backend.On("Search", mock.Anything, onPage(1)).Return(firstPage, nil)
	backend.On("Search", mock.Anything, mock.Anything).Return([]search.Result{}, nil)
	queries := &memQueries{pending: []string{"expert SEO"}}

	one := config.Limit(1)
	first, err := newDiscover(store, backend, queries).Execute(ctx, RunInput{Limit: &one})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)
	assert.Equal(t, []string{"expert SEO"}, queries.pending)
	assert.Empty(t, queries.historic)

	second, err := newDiscover(store, backend, queries).Execute(ctx, RunInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Processed)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, queries.pending)
	assert.Equal(t, []string{"expert SEO"}, queries.historic)

	counts, err := store.Contacts().CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[entity.StatusNew])
}

func TestDiscover_LimitMatchingResultsMarksQueryDone(t *testing.T) {
	backend := new(MockSearchBackend)
	backend.On("Search", mock.Anything, onPage(1)).Return(firstPage, nil)
	backend.On("Search", mock.Anything, mock.Anything).Return([]search.Result{}, nil)
	queries := &memQueries{pending: []string{"expert SEO"}}

	three := config.Limit(3)
	summary, err := newDiscover(memstore.New(), backend, queries).Execute(context.Background(), RunInput{Limit: &three})

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, []string{"expert SEO"}, queries.historic)
}

func TestDiscover_SearchErrorKeepsQueryPending(t *testing.T) {
	store := memstore.New()
	backend := new(MockSearchBackend)
	backend.On("Search", mock.Anything, mock.MatchedBy(func(q search.Query) bool {
		return strings.Contains(q.Text, "@gmail.com")
	})).Return(firstPage[:1], nil)
	backend.On("Search", mock.Anything, mock.MatchedBy(func(q search.Query) bool {
		return strings.Contains(q.Text, "@outlook.fr")
	})).Return(nil, errors.New("HTTP 500"))

	uc := newDiscover(store, backend, nil)
	uc.Opts.Domains = []string{"@gmail.com", "@outlook.fr"}
	queries := &memQueries{pending: []string{"expert SEO", "graphiste freelance"}}
	uc.Queries = queries

	summary, err := uc.Execute(context.Background(), RunInput{})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, 2, summary.Reasons["search error"])
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, []string{"expert SEO", "graphiste freelance"}, queries.pending)
	assert.Empty(t, queries.historic)
}

func TestDiscover_UnreachableBackendAbortsAndKeepsQueryPending(t *testing.T) {
	backend := new(MockSearchBackend)
	backend.On("Search", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: connection refused", search.ErrBackendUnreachable))

	queries := &memQueries{pending: []string{"expert SEO", "graphiste freelance"}}
	summary, err := newDiscover(memstore.New(), backend, queries).Execute(context.Background(), RunInput{})

	require.Error(t, err)
	assert.True(t, IsTechnicalError(err))
	assert.NotEmpty(t, summary.Aborted)
	assert.Equal(t, []string{"expert SEO", "graphiste freelance"}, queries.pending)
	backend.AssertNumberOfCalls(t, "Search", 1)
}

func TestDiscover_MissingKeyIsConfigError(t *testing.T) {
	backend := new(MockSearchBackend)
	backend.On("Search", mock.Anything, mock.Anything).Return(nil, search.ErrNotConfigured)

	_, err := newDiscover(memstore.New(), backend, &memQueries{pending: []string{"q"}}).
		Execute(context.Background(), RunInput{})

	assert.True(t, IsConfigError(err))
}
