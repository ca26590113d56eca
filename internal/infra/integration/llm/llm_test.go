package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllama_Complete(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"message":{"role":"assistant","content":"true"}}`))
	}))
	defer srv.Close()

	text, err := NewOllama(srv.URL, "qwen2.5:7b-instruct-q4_K_M", time.Second).
		Complete(context.Background(), "sys", "user", 0.5, 100)

	require.NoError(t, err)
	assert.Equal(t, "true", text)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.5, got.Options.Temperature)
	assert.Equal(t, 100, got.Options.NumPredict)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestOllama_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "m", time.Second).Complete(context.Background(), "", "u", 0.5, 10)
	assert.ErrorContains(t, err, "model not found")
}

func TestOpenAICompat_Complete(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-pod1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"persona"}}]}`))
	}))
	defer srv.Close()

	text, err := NewOpenAICompat(srv.URL+"/v1", "sk-pod1", "qwen", time.Second).
		Complete(context.Background(), "sys", "user", 0.5, 300)

	require.NoError(t, err)
	assert.Equal(t, "persona", text)
	assert.Equal(t, 300, got.MaxTokens)
}

func TestOpenAICompat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompat(srv.URL, "x", "m", time.Second).Complete(context.Background(), "", "u", 0, 0)
	assert.ErrorContains(t, err, "bad key")
}

func TestNew(t *testing.T) {
	c, err := New(Config{Backend: "ollama", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, c)

	_, err = New(Config{Backend: "openai", Model: "m"})
	assert.Error(t, err)

	c, err = New(Config{Backend: "openai", BaseURL: PodBaseURL("abc"), Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAICompat{}, c)

	_, err = New(Config{Backend: "gemini"})
	assert.Error(t, err)
}
