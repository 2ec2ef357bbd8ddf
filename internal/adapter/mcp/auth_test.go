package mcp_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/humancheck/humancheck/internal/adapter/mcp"
)

func callAuth(t *testing.T, key string, decorate func(*http.Request)) int {
	t.Helper()
	handler := mcp.AuthMiddleware(key, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	if code := callAuth(t, "", nil); code != http.StatusNoContent {
		t.Fatalf("status = %d, want pass-through", code)
	}
}

func TestAuthMissingCredentials(t *testing.T) {
	if code := callAuth(t, "secret", nil); code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
}

func TestAuthBearerToken(t *testing.T) {
	code := callAuth(t, "secret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer secret")
	})
	if code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", code)
	}
}

func TestAuthAPIKeyHeader(t *testing.T) {
	code := callAuth(t, "secret", func(r *http.Request) {
		r.Header.Set("X-API-Key", "secret")
	})
	if code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", code)
	}
}

func TestAuthWrongKey(t *testing.T) {
	code := callAuth(t, "secret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer nope")
	})
	if code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", code)
	}
}
