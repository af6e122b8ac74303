package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticatorBearerTokens(t *testing.T) {
	auth, err := NewAuthenticator("topsecret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{name: "valid token", header: "Bearer topsecret", want: true},
		{name: "case insensitive scheme", header: "bearer topsecret", want: true},
		{name: "invalid token", header: "Bearer notsecret", want: false},
		{name: "wrong scheme", header: "Basic topsecret", want: false},
		{name: "missing token", header: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			if got := auth.authenticate(request) != nil; got != tt.want {
				t.Fatalf("authenticate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthenticatorMiddlewareSetsPrincipal(t *testing.T) {
	auth, err := NewAuthenticator("secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var method string
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if ok {
			method = principal.Method
		}
		w.WriteHeader(http.StatusOK)
	}))
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/admin", nil)
	request.Header.Set("Authorization", "Bearer secret")
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK || method != "bearer" {
		t.Fatalf("expected authenticated bearer principal, got status=%d method=%q", recorder.Code, method)
	}
}

func TestNewAuthenticatorRequiresToken(t *testing.T) {
	if _, err := NewAuthenticator("  "); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestClientIDPrefersForwardedHeaders(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "10.0.0.1:5555"
	if got := clientID(request); got != "10.0.0.1" {
		t.Fatalf("unexpected remote id %q", got)
	}
	request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientID(request); got != "203.0.113.7" {
		t.Fatalf("unexpected forwarded id %q", got)
	}
	request.Header.Set("X-Real-IP", "198.51.100.2")
	if got := clientID(request); got != "198.51.100.2" {
		t.Fatalf("unexpected real ip %q", got)
	}
}
