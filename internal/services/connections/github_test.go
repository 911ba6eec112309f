// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package connections_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"codeberg.org/oliverandrich/mdn-accounts/internal/services/connections"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_token","token_type":"bearer","scope":"user:email"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":583231,"login":"octocat","name":"The Octocat","email":"octocat@github.com"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newGitHub(t *testing.T, base string) *connections.GitHubProvider {
	t.Helper()
	p, err := connections.NewGitHubProvider(connections.GitHubConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/en-US/users/account/connect/github/callback",
		AuthURL:      base + "/login/oauth/authorize",
		TokenURL:     base + "/login/oauth/access_token",
		APIURL:       base,
	})
	require.NoError(t, err)
	return p
}

func TestNewGitHubProvider_RequiresCredentials(t *testing.T) {
	_, err := connections.NewGitHubProvider(connections.GitHubConfig{ClientID: "x"})
	assert.Error(t, err)
}

func TestGitHubProvider_AuthCodeURL(t *testing.T) {
	p := newGitHub(t, "https://github.example")

	raw := p.AuthCodeURL("state-123")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "github.example", u.Host)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Equal(t, "user:email", u.Query().Get("scope"))
}

func TestGitHubProvider_Exchange(t *testing.T) {
	srv := newGitHubServer(t)
	p := newGitHub(t, srv.URL)

	identity, err := p.Exchange(context.Background(), "good-code")

	require.NoError(t, err)
	assert.Equal(t, "github", identity.Provider)
	assert.Equal(t, "583231", identity.UID)
	assert.Equal(t, "octocat", identity.Login)
	assert.Equal(t, "octocat@github.com", identity.Email)
}

func TestGitHubProvider_ExchangeFails(t *testing.T) {
	srv := newGitHubServer(t)
	p := newGitHub(t, srv.URL)

	_, err := p.Exchange(context.Background(), "bad-code")

	assert.Error(t, err)
}
