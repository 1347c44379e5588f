package api

import (
	"net/http"

	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/watch"
)

// NewRouter creates the API router with all endpoints registered.
// loginLimit wraps the login endpoint; nil leaves it unlimited.
func NewRouter(repo *watch.Repository, jwtSecret string, loginLimit func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	db := repo.DB

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	vesselsHandler := &VesselsHandler{Repo: repo}
	ingredientsHandler := &IngredientsHandler{Repo: repo}
	batchesHandler := &BatchesHandler{Repo: repo}
	watchHandler := &WatchHandler{Repo: repo}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	if loginLimit == nil {
		loginLimit = func(h http.Handler) http.Handler { return h }
	}

	// Public: login.
	mux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(authHandler.Login)))

	// Authenticated routes.
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Vessels.
	mux.Handle("GET /api/vessels", authMW(http.HandlerFunc(vesselsHandler.List)))
	mux.Handle("POST /api/vessels", authMW(http.HandlerFunc(vesselsHandler.Create)))
	mux.Handle("GET /api/vessels/{id}", authMW(http.HandlerFunc(vesselsHandler.Get)))
	mux.Handle("PUT /api/vessels/{id}", authMW(http.HandlerFunc(vesselsHandler.Update)))
	mux.Handle("DELETE /api/vessels/{id}", authMW(http.HandlerFunc(vesselsHandler.Delete)))

	// Ingredients.
	mux.Handle("GET /api/ingredients", authMW(http.HandlerFunc(ingredientsHandler.List)))
	mux.Handle("POST /api/ingredients", authMW(http.HandlerFunc(ingredientsHandler.Create)))
	mux.Handle("GET /api/ingredients/{id}", authMW(http.HandlerFunc(ingredientsHandler.Get)))
	mux.Handle("PUT /api/ingredients/{id}", authMW(http.HandlerFunc(ingredientsHandler.Update)))
	mux.Handle("DELETE /api/ingredients/{id}", authMW(http.HandlerFunc(ingredientsHandler.Delete)))

	// Batches.
	mux.Handle("GET /api/batches", authMW(http.HandlerFunc(batchesHandler.List)))
	mux.Handle("POST /api/batches", authMW(http.HandlerFunc(batchesHandler.Create)))
	mux.Handle("GET /api/batches/{id}", authMW(http.HandlerFunc(batchesHandler.Get)))
	mux.Handle("PUT /api/batches/{id}", authMW(http.HandlerFunc(batchesHandler.Update)))
	mux.Handle("DELETE /api/batches/{id}", authMW(http.HandlerFunc(batchesHandler.Delete)))
	mux.Handle("POST /api/batches/{id}/complete", authMW(http.HandlerFunc(batchesHandler.Complete)))
	mux.Handle("POST /api/batches/{id}/advance", authMW(http.HandlerFunc(batchesHandler.Advance)))
	mux.Handle("PUT /api/batches/{id}/image", authMW(http.HandlerFunc(batchesHandler.UploadImage)))
	mux.Handle("GET /api/batches/{id}/image", authMW(http.HandlerFunc(batchesHandler.GetImage)))

	// Live snapshots.
	mux.Handle("GET /api/watch/{collection}", authMW(http.HandlerFunc(watchHandler.Stream)))

	return mux
}
