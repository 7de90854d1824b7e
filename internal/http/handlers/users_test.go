package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/userbase/internal/auth"
	"github.com/yourusername/userbase/internal/config"
	"github.com/yourusername/userbase/internal/models"
	"github.com/yourusername/userbase/internal/storage/memory"
	"github.com/yourusername/userbase/internal/users"
)

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []any           `json:"errors"`
}

type tokenPairBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	cfg := config.Config{
		JWTIssuer:       "userbase-test",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		CookieSecure:    false,
	}
	store := memory.NewUserStore()
	tokens := auth.NewTokenManager("access-secret", "refresh-secret", cfg.JWTIssuer,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	service := users.NewService(store, tokens)

	mux := http.NewServeMux()
	NewUserHandler(service, &cfg).Register(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, payload any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func registerDefault(t *testing.T, baseURL string) envelope {
	t.Helper()
	resp, env := postJSON(t, baseURL+"/api/users/register", map[string]string{
		"email":           "a@x.com",
		"phone":           "+1000",
		"firstName":       "ann",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return env
}

func loginDefault(t *testing.T, baseURL string) (tokenPairBody, *http.Response) {
	t.Helper()
	resp, env := postJSON(t, baseURL+"/api/users/login", map[string]string{
		"email":    "a@x.com",
		"password": "secret1",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair tokenPairBody
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair, resp
}

func TestRegisterEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	env := registerDefault(t, ts.URL)
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.StatusCode)

	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "a@x.com", user.Email)
	assert.False(t, user.EmailVerified)
	assert.NotEmpty(t, user.ID)
}

func TestRegisterDuplicateEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	registerDefault(t, ts.URL)

	resp, env := postJSON(t, ts.URL+"/api/users/register", map[string]string{
		"email":           "a@x.com",
		"phone":           "+2000",
		"firstName":       "bob",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Errors)
}

func TestLoginSetsCookies(t *testing.T) {
	ts, _ := newTestServer(t)
	registerDefault(t, ts.URL)

	pair, resp := loginDefault(t, ts.URL)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	names := map[string]bool{}
	for _, c := range resp.Cookies() {
		names[c.Name] = true
		assert.True(t, c.HttpOnly, "cookie %s must be HttpOnly", c.Name)
	}
	assert.True(t, names["auth_token"])
	assert.True(t, names["session_token"])
}

func TestProfileRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)
	registerDefault(t, ts.URL)

	resp, err := http.Get(ts.URL + "/api/users/profile")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfileWithBearerToken(t *testing.T) {
	ts, _ := newTestServer(t)
	registerDefault(t, ts.URL)
	pair, _ := loginDefault(t, ts.URL)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/users/profile", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "a@x.com", user.Email)
}

func TestRefreshRotationEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	registerDefault(t, ts.URL)
	pair, _ := loginDefault(t, ts.URL)

	resp, env := postJSON(t, ts.URL+"/api/users/tokens/refresh", map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rotated tokenPairBody
	require.NoError(t, json.Unmarshal(env.Data, &rotated))
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The superseded token no longer refreshes.
	resp, _ = postJSON(t, ts.URL+"/api/users/tokens/refresh", map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshViaCookie(t *testing.T) {
	ts, _ := newTestServer(t)
	registerDefault(t, ts.URL)
	pair, _ := loginDefault(t, ts.URL)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/users/tokens/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: pair.RefreshToken})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogoutEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	registerDefault(t, ts.URL)
	pair, _ := loginDefault(t, ts.URL)

	resp, _ := postJSON(t, ts.URL+"/api/users/logout", nil,
		map[string]string{"Authorization": "Bearer " + pair.AccessToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Refresh path is dead after logout.
	resp, _ = postJSON(t, ts.URL+"/api/users/tokens/refresh", map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangePasswordEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	registerDefault(t, ts.URL)
	pair, _ := loginDefault(t, ts.URL)
	authHeader := map[string]string{"Authorization": "Bearer " + pair.AccessToken}

	resp, _ := postJSON(t, ts.URL+"/api/users/password", map[string]string{
		"oldPassword":     "wrong",
		"newPassword":     "secret2",
		"confirmPassword": "secret2",
	}, authHeader)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/api/users/password", map[string]string{
		"oldPassword":     "secret1",
		"newPassword":     "secret2",
		"confirmPassword": "secret2",
	}, authHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/api/users/login", map[string]string{
		"email":    "a@x.com",
		"password": "secret2",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEmailVerificationEndpoints(t *testing.T) {
	ts, store := newTestServer(t)
	registerDefault(t, ts.URL)

	resp, _ := postJSON(t, ts.URL+"/api/users/email-verification/send", map[string]string{
		"email": "a@x.com",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, stored.EmailVerificationToken)

	url := fmt.Sprintf("%s/api/users/email-verification/%s", ts.URL, stored.EmailVerificationToken)
	resp, env := postJSON(t, url, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.True(t, user.EmailVerified)

	// Replay fails.
	resp, _ = postJSON(t, url, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPhoneVerificationEndpoints(t *testing.T) {
	ts, store := newTestServer(t)
	registerDefault(t, ts.URL)

	resp, _ := postJSON(t, ts.URL+"/api/users/phone-verification/send", map[string]string{
		"phone": "+1000",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := store.FindByPhone(context.Background(), "+1000")
	require.NoError(t, err)
	require.NotEmpty(t, stored.PhoneVerificationToken)

	resp, env := postJSON(t, ts.URL+"/api/users/phone-verification", map[string]string{
		"token": stored.PhoneVerificationToken,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.True(t, user.PhoneVerified)
	assert.False(t, user.EmailVerified)
}

func TestProfileUpdateAndDelete(t *testing.T) {
	ts, store := newTestServer(t)
	registerDefault(t, ts.URL)
	pair, _ := loginDefault(t, ts.URL)

	body, err := json.Marshal(map[string]string{"firstName": "Anna"})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/users/profile", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "anna", stored.FirstName)

	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/users/profile", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = store.FindByEmail(context.Background(), "a@x.com")
	assert.Error(t, err)
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/users/register")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
