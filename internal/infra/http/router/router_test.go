package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
	"github.com/xavierca1/prospect-agent/internal/infra/http/handlers"
	"github.com/xavierca1/prospect-agent/internal/infra/memstore"
	"github.com/xavierca1/prospect-agent/internal/usecase"
)

type MockRunner struct {
	mock.Mock
	stage entity.Stage
}

func (m *MockRunner) Stage() entity.Stage { return m.stage }

func (m *MockRunner) Execute(ctx context.Context, in usecase.RunInput) (*usecase.Summary, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.Summary), args.Error(1)
}

func newRunner(stage entity.Stage) *MockRunner {
	return &MockRunner{stage: stage}
}

func newServer(t *testing.T, store *memstore.Store, runners ...usecase.StageRunner) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(Handlers{
		Health: handlers.NewHealthHandler(nil, nil, "test"),
		Runs:   handlers.NewRunHandler(usecase.NewPipeline(runners...)),
		Stats:  handlers.NewStatsHandler(store.Contacts()),
	}, nil))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeRun(t *testing.T, resp *http.Response) handlers.RunResponse {
	t.Helper()
	var out handlers.RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRunStage(t *testing.T) {
	verify := newRunner(entity.StageVerify)
	verify.On("Execute", mock.Anything, mock.MatchedBy(func(in usecase.RunInput) bool {
		return in.Limit != nil && *in.Limit == config.Limit(5)
	})).Return(&usecase.Summary{Stage: entity.StageVerify, Selected: 5, Processed: 4, Rejected: 1}, nil)

	srv := newServer(t, memstore.New(), verify)
	resp := post(t, srv.URL+"/runs/verify", `{"limit":"5"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeRun(t, resp)
	require.Len(t, out.Summaries, 1)
	assert.Equal(t, 4, out.Summaries[0].Processed)
	assert.Empty(t, out.Error)
	verify.AssertExpectations(t)
}

func TestRunStage_LimitFromQuery(t *testing.T) {
	draft := newRunner(entity.StageDraft)
	draft.On("Execute", mock.Anything, mock.MatchedBy(func(in usecase.RunInput) bool {
		return in.Limit != nil && in.Limit.IsUnlimited()
	})).Return(&usecase.Summary{Stage: entity.StageDraft}, nil)

	srv := newServer(t, memstore.New(), draft)
	resp := post(t, srv.URL+"/runs/draft?limit=*", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	draft.AssertExpectations(t)
}

func TestRunStage_ValidationErrors(t *testing.T) {
	srv := newServer(t, memstore.New())

	resp := post(t, srv.URL+"/runs/publish", `{"limit":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out handlers.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "VALIDATION_FAILED", out.Error)
	assert.Contains(t, out.Fields, "stage")
	assert.Contains(t, out.Fields, "limit")

	resp = post(t, srv.URL+"/runs/verify", `{"limit":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunStage_NotConfigured(t *testing.T) {
	srv := newServer(t, memstore.New())
	resp := post(t, srv.URL+"/runs/dispatch", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunStage_ConfigErrorKeepsSummary(t *testing.T) {
	dispatch := newRunner(entity.StageDispatch)
	dispatch.On("Execute", mock.Anything, mock.Anything).Return(
		&usecase.Summary{Stage: entity.StageDispatch, Aborted: "no verified sending domain"},
		&usecase.ConfigError{Message: "no verified sending domain"},
	)

	srv := newServer(t, memstore.New(), dispatch)
	resp := post(t, srv.URL+"/runs/dispatch", "")

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	out := decodeRun(t, resp)
	require.Len(t, out.Summaries, 1)
	assert.Equal(t, "no verified sending domain", out.Summaries[0].Aborted)
	assert.Contains(t, out.Error, "configuration error")
}

func TestRunAll(t *testing.T) {
	discover := newRunner(entity.StageDiscover)
	discover.On("Execute", mock.Anything, mock.Anything).Return(&usecase.Summary{Stage: entity.StageDiscover}, nil)
	verify := newRunner(entity.StageVerify)
	verify.On("Execute", mock.Anything, mock.Anything).Return(&usecase.Summary{Stage: entity.StageVerify}, nil)

	srv := newServer(t, memstore.New(), verify, discover)
	resp := post(t, srv.URL+"/runs", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeRun(t, resp)
	require.Len(t, out.Summaries, 2)
	assert.Equal(t, entity.StageDiscover, out.Summaries[0].Stage)
	assert.Equal(t, entity.StageVerify, out.Summaries[1].Stage)
}

func TestReclaim(t *testing.T) {
	store := memstore.New()
	srv := newServer(t, store, usecase.NewReclaimUseCase(store.Contacts()))

	resp := post(t, srv.URL+"/reclaim", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeRun(t, resp)
	require.Len(t, out.Summaries, 1)
	assert.Equal(t, entity.StageReclaim, out.Summaries[0].Stage)
}

func TestContactStats(t *testing.T) {
	store := memstore.New()
	for _, email := range []string{"jean.dupont@gmail.com", "anne.leroy@gmail.com"} {
		c, err := entity.NewContact(email, "expert SEO", nil)
		require.NoError(t, err)
		require.NoError(t, store.Contacts().Create(context.Background(), c))
	}

	srv := newServer(t, store)
	resp, err := http.Get(srv.URL + "/contacts/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out handlers.StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 2, out.ByStatus[entity.StatusNew])
	assert.Contains(t, out.ByStatus, entity.StatusProcessed)
}

func TestMetricsAndHealthRoutes(t *testing.T) {
	srv := newServer(t, memstore.New())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
