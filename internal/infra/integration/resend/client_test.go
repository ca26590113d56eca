package resend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xavierca1/prospect-agent/internal/infra/mail"
)

func TestClient_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	id, err := NewClient("re_123", srv.URL).Send(context.Background(), mail.Message{
		From: "Jane Doe <acme.corp@mail.acme.fr>", To: "jean.dupont@gmail.com", Subject: "Hello", Text: "hi", HTML: "<p>hi</p>",
	})

	require.NoError(t, err)
	assert.Equal(t, "msg_1", id)
	assert.Equal(t, []string{"jean.dupont@gmail.com"}, got.To)
	assert.Equal(t, "<p>hi</p>", got.HTML)
}

func TestClient_Send_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"domain is not verified"}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", srv.URL).Send(context.Background(), mail.Message{
		From: "a@acme.fr", To: "b@gmail.com", Subject: "s", Text: "t",
	})
	assert.ErrorContains(t, err, "domain is not verified")
}

func TestClient_Send_Invalid(t *testing.T) {
	_, err := NewClient("k", "http://unused").Send(context.Background(), mail.Message{To: "b@gmail.com"})
	assert.Error(t, err)

	_, err = NewClient("", "http://unused").Send(context.Background(), mail.Message{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClient_ListVerifiedDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/domains", r.URL.Path)
		w.Write([]byte(`{"data":[
			{"id":"1","name":"mail.acme.fr","status":"verified"},
			{"id":"2","name":"pending.acme.fr","status":"pending"},
			{"id":"3","name":"Send.Acme.io","status":"verified"}
		]}`))
	}))
	defer srv.Close()

	domains, err := NewClient("k", srv.URL).ListVerifiedDomains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mail.acme.fr", "send.acme.io"}, domains)
}
