package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/solvetheriddle/fermentlog/internal/auth"
	"github.com/solvetheriddle/fermentlog/internal/metrics"
	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/store"
)

const signInFailed = "Sign-in failed. Please try again."

type loginPage struct {
	PageData
	Email     string
	Providers []string
}

// LoginPage handles GET /login. An error left by a failed sign-in is shown
// once.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderLogin(w, http.StatusOK, "", s.OAuth.Flash(w, r))
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, email, message string) {
	s.Templates.RenderStatus(w, status, "login.html", &loginPage{
		PageData:  PageData{Title: "Sign in", Error: message},
		Email:     email,
		Providers: s.OAuth.Providers(),
	})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	if email == "" || password == "" {
		s.renderLogin(w, http.StatusBadRequest, email, "Enter your email and password.")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), s.DB, email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		s.renderLogin(w, http.StatusInternalServerError, email, signInFailed)
		return
	}
	if user == nil || user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.RecordAuthAttempt("password", false)
		slog.Warn("login failed", "email", email, "remote", r.RemoteAddr)
		s.renderLogin(w, http.StatusUnauthorized, email, "Wrong email or password.")
		return
	}

	if err := s.signIn(w, user); err != nil {
		slog.Error("failed to sign in", "error", err)
		s.renderLogin(w, http.StatusInternalServerError, email, signInFailed)
		return
	}
	metrics.RecordAuthAttempt("password", true)
	http.Redirect(w, r, RoutePath(RouteActive), http.StatusSeeOther)
}

func (s *Server) signIn(w http.ResponseWriter, user *model.User) error {
	token, err := auth.GenerateToken(s.JWTSecret, user.ID, user.Email, user.Role)
	if err != nil {
		return err
	}
	s.setAuthCookie(w, token)
	slog.Info("user logged in", "user", user.Email, "provider", user.Provider)
	return nil
}

// ProviderBegin handles GET /auth/{provider}.
func (s *Server) ProviderBegin(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	url, err := s.OAuth.BeginURL(w, r, provider)
	if err != nil {
		if !errors.Is(err, auth.ErrUnknownProvider) {
			slog.Error("failed to start sign-in", "provider", provider, "error", err)
		}
		s.fail(w, r, "/login", signInFailed)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// ProviderCallback handles GET /auth/{provider}/callback.
func (s *Server) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	identity, err := s.OAuth.Complete(w, r, provider)
	if err != nil {
		metrics.RecordAuthAttempt(provider, false)
		slog.Warn("provider sign-in failed", "provider", provider, "error", err)
		s.fail(w, r, "/login", signInFailed)
		return
	}

	user, err := store.UpsertOAuthUser(r.Context(), s.DB, identity.Provider, identity.ProviderUserID, identity.Email, identity.Name)
	if err != nil {
		metrics.RecordAuthAttempt(provider, false)
		slog.Error("failed to store signed-in user", "provider", provider, "error", err)
		s.fail(w, r, "/login", signInFailed)
		return
	}

	if err := s.signIn(w, user); err != nil {
		slog.Error("failed to sign in", "error", err)
		s.fail(w, r, "/login", signInFailed)
		return
	}
	metrics.RecordAuthAttempt(provider, true)
	http.Redirect(w, r, RoutePath(RouteActive), http.StatusSeeOther)
}

// Logout handles POST /logout. The token is revoked, not just dropped from
// the browser.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(tokenCookie); err == nil && cookie.Value != "" {
		if claims, err := auth.ValidateToken(s.JWTSecret, cookie.Value); err == nil {
			expiresAt := time.Now().Add(auth.TokenExpiry)
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Time
			}
			if err := store.RevokeToken(r.Context(), s.DB, claims.ID, expiresAt); err != nil {
				slog.Error("failed to revoke token", "error", err)
			} else {
				slog.Info("user logged out", "user", claims.Email)
			}
		}
	}
	clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
