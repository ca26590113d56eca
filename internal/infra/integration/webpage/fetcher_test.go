package webpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomepageURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://jd-seo.fr/blog/article?id=3", "https://jd-seo.fr/", true},
		{"http://example.com", "http://example.com/", true},
		{"ftp://example.com/file", "", false},
		{"not a url", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := HomepageURL(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractText(t *testing.T) {
	page := `<html><head><title>ignored</title><style>body{color:red}</style></head>
<body><h1>Expert SEO</h1><script>var x = 1;</script>
<p>Consultant&nbsp;indépendant &amp; formateur</p>
<div>   Paris
</div></body></html>`

	text, err := ExtractText(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "Expert SEO Consultant indépendant & formateur Paris", text)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "été", Truncate("été indien", 3))
	assert.Equal(t, "court", Truncate("court", 10))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestFetcher_FetchText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`<html><body><p>Bonjour, je suis développeur web à Lyon.</p></body></html>`))
	}))
	defer srv.Close()

	text, err := NewFetcher(time.Second).FetchText(context.Background(), srv.URL+"/", 7)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", text)
}

func TestFetcher_Skips(t *testing.T) {
	f := NewFetcher(time.Second)

	_, err := f.FetchText(context.Background(), "https://www.linkedin.com/in/jean", 100)
	assert.ErrorIs(t, err, ErrSkipped)

	_, err = f.FetchText(context.Background(), "mailto:a@b.fr", 100)
	assert.ErrorIs(t, err, ErrSkipped)
}

func TestFetcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewFetcher(time.Second).FetchText(context.Background(), srv.URL, 100)
	assert.Error(t, err)
}
