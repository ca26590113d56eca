package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xavierca1/prospect-agent/internal/infra/integration/search"
)

func TestClient_Search(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-123", r.Header.Get("X-API-KEY"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic":[{"title":"Jean Dupont","link":"https://jd.fr/a","snippet":"jean.dupont@gmail.com"}]}`))
	}))
	defer srv.Close()

	c := NewClient("key-123", srv.URL, Options{Country: "fr", Language: "fr", TimeRange: "qdr:m", Num: 10})
	results, err := c.Search(context.Background(), search.Query{Text: `"seo" "@gmail.com"`, Page: 2})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://jd.fr/a", results[0].Link)
	assert.Equal(t, "jean.dupont@gmail.com", results[0].Snippet)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, "fr", got.GL)
	assert.Equal(t, "qdr:m", got.TBS)
}

func TestClient_Search_Errors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewClient("", "http://unused", Options{}).Search(context.Background(), search.Query{Text: "x", Page: 1})
		assert.ErrorIs(t, err, search.ErrNotConfigured)
	})

	t.Run("non 2xx is not unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"Not enough credits"}`))
		}))
		defer srv.Close()

		_, err := NewClient("k", srv.URL, Options{}).Search(context.Background(), search.Query{Text: "x", Page: 1})
		require.Error(t, err)
		assert.NotErrorIs(t, err, search.ErrBackendUnreachable)
	})

	t.Run("connection refused is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := NewClient("k", url, Options{}).Search(context.Background(), search.Query{Text: "x", Page: 1})
		assert.ErrorIs(t, err, search.ErrBackendUnreachable)
	})
}
