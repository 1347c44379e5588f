package web

import (
	"net/http"

	"github.com/solvetheriddle/fermentlog/internal/auth"
	"github.com/solvetheriddle/fermentlog/internal/watch"
	webembed "github.com/solvetheriddle/fermentlog/web"
)

// Config holds what the page router needs.
type Config struct {
	Repo          *watch.Repository
	JWTSecret     string
	OAuth         *auth.OAuth
	SecureCookies bool
	// LoginLimit wraps the sign-in endpoints; nil leaves them unlimited.
	LoginLimit func(http.Handler) http.Handler
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(cfg Config) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:            cfg.Repo.DB,
		Repo:          cfg.Repo,
		Templates:     templates,
		JWTSecret:     cfg.JWTSecret,
		OAuth:         cfg.OAuth,
		SecureCookies: cfg.SecureCookies,
	}

	limit := cfg.LoginLimit
	if limit == nil {
		limit = func(h http.Handler) http.Handler { return h }
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(cfg.JWTSecret, s.DB)
	page := func(h http.HandlerFunc) http.Handler { return cookieAuth(h) }
	admin := func(h http.HandlerFunc) http.Handler { return cookieAuth(RequireAdmin(h)) }

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.Handle("POST /login", limit(http.HandlerFunc(s.LoginSubmit)))
	mux.HandleFunc("POST /logout", s.Logout)
	mux.Handle("GET /auth/{provider}", limit(http.HandlerFunc(s.ProviderBegin)))
	mux.HandleFunc("GET /auth/{provider}/callback", s.ProviderCallback)

	// Navigation destinations.
	mux.Handle("GET /{$}", page(s.ActivePage))
	mux.Handle("GET /ingredients", page(s.IngredientsPage))
	mux.Handle("GET /vessels", page(s.VesselsPage))
	mux.Handle("GET /settings", page(s.SettingsPage))

	// Batches.
	mux.Handle("GET /events/batches", page(s.BatchEvents))
	mux.Handle("GET /batches/new", page(s.NewBatchPage))
	mux.Handle("POST /batches", page(s.BatchCreateSubmit))
	mux.Handle("GET /batches/{id}", page(s.BatchDetailPage))
	mux.Handle("POST /batches/{id}", page(s.BatchUpdateSubmit))
	mux.Handle("POST /batches/{id}/advance", page(s.BatchAdvanceSubmit))
	mux.Handle("POST /batches/{id}/complete", page(s.BatchCompleteSubmit))
	mux.Handle("POST /batches/{id}/delete", page(s.BatchDeleteSubmit))
	mux.Handle("POST /batches/{id}/image", page(s.BatchImageSubmit))
	mux.Handle("GET /batches/{id}/image", page(s.BatchImageGet))

	// Vessels and ingredients.
	mux.Handle("POST /vessels", page(s.VesselCreateSubmit))
	mux.Handle("POST /vessels/{id}", page(s.VesselUpdateSubmit))
	mux.Handle("POST /vessels/{id}/delete", page(s.VesselDeleteSubmit))
	mux.Handle("POST /ingredients", page(s.IngredientCreateSubmit))
	mux.Handle("POST /ingredients/{id}", page(s.IngredientUpdateSubmit))
	mux.Handle("POST /ingredients/{id}/delete", page(s.IngredientDeleteSubmit))

	// Account.
	mux.Handle("POST /settings/password", page(s.SettingsPasswordSubmit))

	// Users (admin only).
	mux.Handle("GET /users", admin(s.UsersPage))
	mux.Handle("POST /users", admin(s.UserCreateSubmit))
	mux.Handle("POST /users/{id}/role", admin(s.UserRoleSubmit))
	mux.Handle("POST /users/{id}/password", admin(s.UserPasswordSubmit))
	mux.Handle("POST /users/{id}/delete", admin(s.UserDeleteSubmit))

	return mux, nil
}
