package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slidecraft/internal/apperr"
	"slidecraft/internal/auth"
	"slidecraft/internal/httpx"
	"slidecraft/internal/models"
)

type stubUsers map[string]*models.User

func (s stubUsers) Get(_ context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("User not found")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFrom(r.Context())
		name := ""
		if u != nil {
			name = u.Username
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"user": name})
	})
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func problemCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var p httpx.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p.Code
}

func TestAuthenticate(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	users := stubUsers{"u1": {ID: "u1", Username: "alice", Role: models.RoleEmployee}}
	h := Authenticate(tokens, users)(okHandler())

	rec := serve(h, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", problemCode(t, rec))

	tok, _, err := tokens.Issue("u1", models.RoleEmployee)
	require.NoError(t, err)
	rec = serve(h, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user":"alice"}`, rec.Body.String())

	// пользователь удалён после выдачи токена
	gone, _, err := tokens.Issue("u2", models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, serve(h, gone).Code)

	expired, _, err := tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).Issue("u1", "employee")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, serve(h, expired).Code)
}

func TestOptionalAuth(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	users := stubUsers{"u1": {ID: "u1", Username: "alice"}}
	h := OptionalAuth(tokens, users)(okHandler())

	rec := serve(h, "garbage")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user":""}`, rec.Body.String())

	tok, _, err := tokens.Issue("u1", "employee")
	require.NoError(t, err)
	require.JSONEq(t, `{"user":"alice"}`, serve(h, tok).Body.String())
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	users := stubUsers{
		"adm": {ID: "adm", Username: "root", Role: models.RoleAdmin},
		"emp": {ID: "emp", Username: "bob", Role: models.RoleEmployee},
	}
	h := Authenticate(tokens, users)(RequireRole(models.RoleAdmin)(okHandler()))

	emp, _, _ := tokens.Issue("emp", models.RoleEmployee)
	rec := serve(h, emp)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", problemCode(t, rec))

	adm, _, _ := tokens.Issue("adm", models.RoleAdmin)
	require.Equal(t, http.StatusOK, serve(h, adm).Code)

	// без Authenticate в цепочке пользователя нет
	require.Equal(t, http.StatusUnauthorized, serve(RequireRole(models.RoleAdmin)(okHandler()), "").Code)
}

func TestRateLimitByIP(t *testing.T) {
	h := RateLimitByIP(2)(okHandler())
	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusOK, do("10.0.0.1"))
	require.Equal(t, http.StatusOK, do("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	require.Equal(t, http.StatusOK, do("10.0.0.2"))
}

func TestRecovererAndRequestID(t *testing.T) {
	h := RequestID(Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.NotContains(t, rec.Body.String(), "boom")
}
