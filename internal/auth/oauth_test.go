package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOAuthDisabledWithoutCredentials(t *testing.T) {
	o := NewOAuth(OAuthConfig{BaseURL: "http://localhost:8080", SessionKey: "0123456789abcdef0123456789abcdef"})
	if o.Enabled() {
		t.Error("expected no providers without credentials")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/auth/google", nil)
	if _, err := o.BeginURL(rec, req, "google"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestOAuthGoogleBeginURL(t *testing.T) {
	o := NewOAuth(OAuthConfig{
		BaseURL:            "http://localhost:8080/",
		SessionKey:         "0123456789abcdef0123456789abcdef",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
	})
	if !o.Enabled() || o.Providers()[0] != "google" {
		t.Fatalf("expected google to be enabled, got %v", o.Providers())
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/auth/google", nil)
	url, err := o.BeginURL(rec, req, "google")
	if err != nil {
		t.Fatalf("BeginURL: %v", err)
	}
	if url == "" {
		t.Fatal("expected an authorization URL")
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected the sign-in state to be stored in a cookie")
	}
}

func TestFlashIsShownOnce(t *testing.T) {
	o := NewOAuth(OAuthConfig{SessionKey: "0123456789abcdef0123456789abcdef"})

	rec := httptest.NewRecorder()
	if err := o.SetFlash(rec, httptest.NewRequest("GET", "/", nil), "Sign-in failed"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/login", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	if got := o.Flash(rec, req); got != "Sign-in failed" {
		t.Fatalf("expected flash message, got %q", got)
	}

	// Reading the flash rewrote the cookie without the message.
	req = httptest.NewRequest("GET", "/login", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	if got := o.Flash(httptest.NewRecorder(), req); got != "" {
		t.Errorf("expected flash to be cleared, got %q", got)
	}
}

func TestFlashEmpty(t *testing.T) {
	o := NewOAuth(OAuthConfig{SessionKey: "0123456789abcdef0123456789abcdef"})
	if got := o.Flash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Errorf("expected empty flash, got %q", got)
	}
}
