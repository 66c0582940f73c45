package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/integrations/internal/model"
)

func testOAuth2Client(tokenURL string) oauth2Client {
	return newOAuth2Client("testprov", model.OAuth2Config{
		AuthorizeURL: "https://provider.example/oauth/authorize",
		TokenURL:     tokenURL,
		Scopes:       []string{"read", "write"},
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
}

func TestOAuth2Client_BuildAuthorizeURL(t *testing.T) {
	c := testOAuth2Client("https://provider.example/oauth/token")

	raw, err := c.BuildAuthorizeURL("state-token", "https://app.example/api/oauth/testprov/callback")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://app.example/api/oauth/testprov/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "read write", q.Get("scope"))
	assert.Equal(t, "state-token", q.Get("state"))
}

func TestOAuth2Client_BuildAuthorizeURL_NotConfigured(t *testing.T) {
	c := newOAuth2Client("testprov", model.OAuth2Config{
		AuthorizeURL: "https://provider.example/oauth/authorize",
		TokenURL:     "https://provider.example/oauth/token",
	})

	_, err := c.BuildAuthorizeURL("state-token", "https://app.example/callback")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOAuth2Client_ExchangeCode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		assert.Equal(t, "https://app.example/callback", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"bearer","scope":"read write","expires_in":3600}`))
	}))
	defer srv.Close()

	c := testOAuth2Client(srv.URL)
	tok, err := c.ExchangeCode(context.Background(), "auth-code", "https://app.example/callback")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Equal(t, "rt-1", tok.RefreshToken)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, "read write", tok.Scope)
	require.NotNil(t, tok.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *tok.ExpiresAt, 10*time.Second)
}

func TestOAuth2Client_ExchangeCode_NoExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","token_type":"bearer"}`))
	}))
	defer srv.Close()

	c := testOAuth2Client(srv.URL)
	tok, err := c.ExchangeCode(context.Background(), "auth-code", "https://app.example/callback")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Empty(t, tok.RefreshToken)
	assert.Nil(t, tok.ExpiresAt)
}

func TestOAuth2Client_ExchangeCode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	c := testOAuth2Client(srv.URL)
	_, err := c.ExchangeCode(context.Background(), "auth-code", "https://app.example/callback")
	require.Error(t, err)

	var xerr *ExchangeError
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, "testprov", xerr.Provider)
	assert.Equal(t, http.StatusUnauthorized, xerr.StatusCode)
	assert.Contains(t, xerr.Detail, "invalid_client")
}

func TestOAuth2Client_ExchangeCode_ErrorInOKBody(t *testing.T) {
	// GitHub reports errors like bad_verification_code with a 200 status.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`))
	}))
	defer srv.Close()

	c := testOAuth2Client(srv.URL)
	_, err := c.ExchangeCode(context.Background(), "stale-code", "https://app.example/callback")
	require.Error(t, err)

	var xerr *ExchangeError
	require.True(t, errors.As(err, &xerr))
	assert.Contains(t, xerr.Detail, "bad_verification_code")
	assert.Contains(t, xerr.Detail, "incorrect or expired")
}

func TestOAuth2Client_ExchangeCode_EmptyAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	c := testOAuth2Client(srv.URL)
	_, err := c.ExchangeCode(context.Background(), "auth-code", "https://app.example/callback")
	require.Error(t, err)

	var xerr *ExchangeError
	require.True(t, errors.As(err, &xerr))
	assert.Contains(t, xerr.Detail, "no access token")
}

func TestOAuth2Client_ExchangeCode_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := testOAuth2Client(srv.URL)
	_, err := c.ExchangeCode(context.Background(), "auth-code", "https://app.example/callback")
	require.Error(t, err)

	var xerr *ExchangeError
	require.True(t, errors.As(err, &xerr))
	assert.Contains(t, xerr.Detail, "malformed token response")
}

func TestOAuth2Client_RefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","refresh_token":"rt-new","token_type":"bearer","expires_in":7200}`))
	}))
	defer srv.Close()

	c := testOAuth2Client(srv.URL)
	tok, err := c.refreshToken(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-new", tok.AccessToken)
	assert.Equal(t, "rt-new", tok.RefreshToken)
	require.NotNil(t, tok.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *tok.ExpiresAt, 10*time.Second)
}

func TestOAuth2Client_RefreshToken_ProviderRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := testOAuth2Client(srv.URL)
	_, err := c.refreshToken(context.Background(), "rt-revoked")
	require.Error(t, err)

	var xerr *ExchangeError
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, http.StatusBadRequest, xerr.StatusCode)
}
