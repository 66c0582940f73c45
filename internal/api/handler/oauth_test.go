package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/integrations/internal/core"
	"github.com/edvin/integrations/internal/model"
)

const testUIRedirect = "https://app.example/settings/integrations"

func newOAuthHandler(svc OAuthExchanger) *OAuth {
	return NewOAuth(svc, testUIRedirect, zerolog.Nop())
}

func callbackRequest(target string) *http.Request {
	r := newRequest(http.MethodGet, target, nil)
	return withChiURLParam(r, "provider", "github")
}

// redirectQuery follows the Location header and returns its query values.
func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example", loc.Host)
	assert.Equal(t, "/settings/integrations", loc.Path)
	return loc.Query()
}

func TestOAuthCallback_Success(t *testing.T) {
	svc := new(mockOAuthExchanger)
	svc.On("HandleCallback", mock.Anything, core.CallbackParams{
		Provider: "github",
		Code:     "authcode",
		State:    "sealed-state",
	}).Return(&model.Credential{
		TenantID:  testTenantID,
		ProjectID: testProjectID,
		Provider:  "github",
	}, nil)
	h := newOAuthHandler(svc)

	rec := httptest.NewRecorder()
	h.Callback(rec, callbackRequest("/api/oauth/github/callback?code=authcode&state=sealed-state"))

	q := redirectQuery(t, rec)
	assert.Equal(t, "1", q.Get("connected"))
	assert.Equal(t, "github", q.Get("provider"))
	assert.Empty(t, q.Get("error"))
	svc.AssertExpectations(t)
}

func TestOAuthCallback_UserDenied(t *testing.T) {
	svc := new(mockOAuthExchanger)
	h := newOAuthHandler(svc)

	rec := httptest.NewRecorder()
	h.Callback(rec, callbackRequest("/api/oauth/github/callback?error=access_denied"))

	q := redirectQuery(t, rec)
	assert.Equal(t, "oauth_denied", q.Get("error"))
	// The exchange is never attempted on a denial.
	svc.AssertNotCalled(t, "HandleCallback", mock.Anything, mock.Anything)
}

func TestOAuthCallback_MissingCode(t *testing.T) {
	h := newOAuthHandler(new(mockOAuthExchanger))

	rec := httptest.NewRecorder()
	h.Callback(rec, callbackRequest("/api/oauth/github/callback?state=sealed-state"))

	q := redirectQuery(t, rec)
	assert.Equal(t, "oauth_denied", q.Get("error"))
}

func TestOAuthCallback_MissingState(t *testing.T) {
	h := newOAuthHandler(new(mockOAuthExchanger))

	rec := httptest.NewRecorder()
	h.Callback(rec, callbackRequest("/api/oauth/github/callback?code=authcode"))

	q := redirectQuery(t, rec)
	assert.Equal(t, "oauth_denied", q.Get("error"))
}

func TestOAuthCallback_CallbackErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"expired state", &core.CallbackError{Code: core.CallbackCodeExpired}, "oauth_expired"},
		{"tampered state", &core.CallbackError{Code: core.CallbackCodeInvalid}, "oauth_invalid"},
		{"unknown provider", &core.CallbackError{Code: core.CallbackCodeUnknown}, "unknown_provider"},
		{"exchange failed", &core.CallbackError{Code: core.CallbackCodeExchangeFailed}, "oauth_exchange_failed"},
		{"storage failure", errors.New("insert credential: connection refused"), "oauth_invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockOAuthExchanger)
			svc.On("HandleCallback", mock.Anything, mock.Anything).Return(nil, tt.err)
			h := newOAuthHandler(svc)

			rec := httptest.NewRecorder()
			h.Callback(rec, callbackRequest("/api/oauth/github/callback?code=authcode&state=sealed-state"))

			q := redirectQuery(t, rec)
			assert.Equal(t, tt.want, q.Get("error"))
		})
	}
}

func TestOAuthCallback_PreservesExistingRedirectQuery(t *testing.T) {
	svc := new(mockOAuthExchanger)
	svc.On("HandleCallback", mock.Anything, mock.Anything).
		Return(&model.Credential{Provider: "github"}, nil)
	h := NewOAuth(svc, "https://app.example/settings?tab=integrations", zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Callback(rec, callbackRequest("/api/oauth/github/callback?code=authcode&state=sealed-state"))

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "integrations", loc.Query().Get("tab"))
	assert.Equal(t, "1", loc.Query().Get("connected"))
}
