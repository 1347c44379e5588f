package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
)

// OAuthConfig configures delegated sign-in.
type OAuthConfig struct {
	// BaseURL is the externally visible server URL, used to build callback
	// URLs such as <BaseURL>/auth/google/callback.
	BaseURL string
	// SessionKey signs the OAuth state and flash cookies.
	SessionKey string

	GoogleClientID     string
	GoogleClientSecret string

	SecureCookies bool
}

// Identity is the account a provider vouched for.
type Identity struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
}

// OAuth wraps goth and gothic. It also keeps one-shot flash messages in the
// same signed cookie store.
type OAuth struct {
	store     *sessions.CookieStore
	providers []string
}

const flashSession = "fermentlog_flash"

// ErrUnknownProvider is returned for a provider that is not configured.
var ErrUnknownProvider = errors.New("unknown sign-in provider")

// NewOAuth registers the configured goth providers. Providers without
// credentials are skipped, so the returned OAuth may have none enabled.
func NewOAuth(cfg OAuthConfig) *OAuth {
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store

	o := &OAuth{store: store}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		callbackURL := strings.TrimRight(cfg.BaseURL, "/") + "/auth/google/callback"
		goth.UseProviders(google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, callbackURL, "email", "profile"))
		o.providers = append(o.providers, "google")
	}
	return o
}

// Enabled reports whether any provider is configured.
func (o *OAuth) Enabled() bool {
	return len(o.providers) > 0
}

// Providers returns the names of the configured providers.
func (o *OAuth) Providers() []string {
	return o.providers
}

func (o *OAuth) has(provider string) bool {
	for _, p := range o.providers {
		if p == provider {
			return true
		}
	}
	return false
}

// withProvider returns a copy of r carrying the provider where gothic looks
// for it.
func withProvider(r *http.Request, provider string) *http.Request {
	r2 := r.Clone(r.Context())
	q := r2.URL.Query()
	q.Set("provider", provider)
	r2.URL.RawQuery = q.Encode()
	return r2
}

// BeginURL starts the provider's sign-in flow and returns the URL to
// redirect the browser to.
func (o *OAuth) BeginURL(w http.ResponseWriter, r *http.Request, provider string) (string, error) {
	if !o.has(provider) {
		return "", ErrUnknownProvider
	}
	url, err := gothic.GetAuthURL(w, withProvider(r, provider))
	if err != nil {
		return "", fmt.Errorf("starting %s sign-in: %w", provider, err)
	}
	return url, nil
}

// Complete finishes the provider's sign-in flow on its callback request.
func (o *OAuth) Complete(w http.ResponseWriter, r *http.Request, provider string) (*Identity, error) {
	if !o.has(provider) {
		return nil, ErrUnknownProvider
	}
	user, err := gothic.CompleteUserAuth(w, withProvider(r, provider))
	if err != nil {
		return nil, fmt.Errorf("completing %s sign-in: %w", provider, err)
	}
	if user.UserID == "" || user.Email == "" {
		return nil, fmt.Errorf("%s did not return an account id and email", provider)
	}
	return &Identity{
		Provider:       provider,
		ProviderUserID: user.UserID,
		Email:          user.Email,
		Name:           user.Name,
	}, nil
}

// SetFlash stores a message to be shown on the next page render.
func (o *OAuth) SetFlash(w http.ResponseWriter, r *http.Request, message string) error {
	session, _ := o.store.Get(r, flashSession)
	session.AddFlash(message)
	return session.Save(r, w)
}

// Flash returns the pending flash message and clears it. It returns "" when
// there is none.
func (o *OAuth) Flash(w http.ResponseWriter, r *http.Request) string {
	session, err := o.store.Get(r, flashSession)
	if err != nil {
		return ""
	}
	flashes := session.Flashes()
	if len(flashes) == 0 {
		return ""
	}
	_ = session.Save(r, w)
	msg, _ := flashes[len(flashes)-1].(string)
	return msg
}
