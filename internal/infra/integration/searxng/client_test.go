package searxng

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/search"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "3", r.URL.Query().Get("pageno"))
		assert.Equal(t, "fr-FR", r.URL.Query().Get("language"))
		w.Write([]byte(`{"results":[{"title":"T","content":"contact: a@free.fr","url":"https://a.fr"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "", time.Second)
	results, err := c.Search(context.Background(), search.Query{Text: "plombier", Page: 3})

	require.NoError(t, err)
	assert.Equal(t, []search.Result{{Title: "T", Snippet: "contact: a@free.fr", Link: "https://a.fr"}}, results)
}

func TestClient_Search_EmptyQuery(t *testing.T) {
	results, err := NewClient("http://unused", "", time.Second).Search(context.Background(), search.Query{Text: "  "})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClient_Search_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", time.Second).Search(context.Background(), search.Query{Text: "x", Page: 1})
	assert.ErrorIs(t, err, search.ErrBackendUnreachable)
}

func TestClient_Search_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Search(context.Background(), search.Query{Text: "x", Page: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, search.ErrBackendUnreachable)
}
