// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireBearer_AuthorizationHeader(t *testing.T) {
	handler := requireBearer("secret-token", okHandler())
	req := httptest.NewRequest(http.MethodGet, "/info/refs", nil)
	req.Header.Set("Authorization", "Bearer secret-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireBearer_BasicAuth(t *testing.T) {
	handler := requireBearer("secret-token", okHandler())
	req := httptest.NewRequest(http.MethodGet, "/info/refs", nil)
	req.SetBasicAuth("secret-token", basicAuthPassword)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireBearer_QueryFallback(t *testing.T) {
	handler := requireBearer("secret-token", okHandler())
	req := httptest.NewRequest(http.MethodGet, "/info/refs?token=secret-token", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireBearer_Mismatch(t *testing.T) {
	handler := requireBearer("secret-token", okHandler())
	req := httptest.NewRequest(http.MethodGet, "/info/refs", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != `Basic realm="Git"` {
		t.Errorf("WWW-Authenticate = %q", rec.Header().Get("WWW-Authenticate"))
	}
}

func TestRequireBearer_BasicAuthWrongPassword(t *testing.T) {
	handler := requireBearer("secret-token", okHandler())
	req := httptest.NewRequest(http.MethodGet, "/info/refs", nil)
	req.SetBasicAuth("secret-token", "not-the-literal-password")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireBearer_NoCredentials(t *testing.T) {
	handler := requireBearer("secret-token", okHandler())
	req := httptest.NewRequest(http.MethodGet, "/info/refs", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestGenerateBearer_Unique(t *testing.T) {
	first, err := generateBearer()
	if err != nil {
		t.Fatalf("generateBearer: %v", err)
	}
	second, err := generateBearer()
	if err != nil {
		t.Fatalf("generateBearer: %v", err)
	}
	if first == second {
		t.Error("expected two calls to generateBearer to differ")
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
