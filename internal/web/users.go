package web

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/store"
)

type settingsPage struct {
	PageData
	Account *model.User
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, s.page(w, r, "Settings", RouteSettings))
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, pd PageData) {
	account, err := store.GetUser(r.Context(), s.DB, pd.User.UserID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
	}
	s.Templates.Render(w, "settings.html", &settingsPage{PageData: pd, Account: account})
}

// SettingsPasswordSubmit handles POST /settings/password. Accounts created
// through a provider may set a first password without a current one.
func (s *Server) SettingsPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	pd := PageData{Title: "Settings", Nav: RouteSettings, Routes: Routes, User: claims}

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")

	if err := model.ValidatePassword(newPassword); err != nil {
		pd.Error = capitalize(err.Error()) + "."
		s.renderSettings(w, r, pd)
		return
	}

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil || user == nil {
		pd.Error = "Could not load your account."
		s.renderSettings(w, r, pd)
		return
	}

	if user.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
			pd.Error = "Current password is incorrect."
			s.renderSettings(w, r, pd)
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		pd.Error = "Could not save the password."
		s.renderSettings(w, r, pd)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), s.DB, claims.UserID, string(hash)); err != nil {
		slog.Error("failed to update password", "error", err)
		pd.Error = "Could not save the password."
		s.renderSettings(w, r, pd)
		return
	}

	slog.Info("user changed own password", "user", claims.Email)
	pd.Success = "Password changed."
	s.renderSettings(w, r, pd)
}

type usersPage struct {
	PageData
	Users []model.User
}

// UsersPage handles GET /users (admin only).
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	data := &usersPage{PageData: s.page(w, r, "Users", RouteSettings)}

	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		data.Error = "Could not load users."
	}
	data.Users = users

	s.Templates.Render(w, "users.html", data)
}

// UserCreateSubmit handles POST /users (admin only).
func (s *Server) UserCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	email := r.FormValue("email")
	password := r.FormValue("password")
	role := r.FormValue("role")

	if email == "" || (role != model.RoleAdmin && role != model.RoleUser) {
		s.fail(w, r, "/users", "Enter an email and pick a role.")
		return
	}
	if err := model.ValidatePassword(password); err != nil {
		s.fail(w, r, "/users", capitalize(err.Error())+".")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	if _, err := store.CreateUser(r.Context(), s.DB, email, r.FormValue("name"), string(hash), role); err != nil {
		s.fail(w, r, "/users", formMessage(err))
		return
	}
	slog.Info("user created", "user", claims.Email, "new_user", email, "role", role)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// UserRoleSubmit handles POST /users/{id}/role (admin only).
func (s *Server) UserRoleSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id := r.PathValue("id")
	role := r.FormValue("role")

	if role != model.RoleAdmin && role != model.RoleUser {
		s.fail(w, r, "/users", "Pick a valid role.")
		return
	}
	if id == claims.UserID && role != model.RoleAdmin {
		s.fail(w, r, "/users", "You cannot remove your own admin role.")
		return
	}
	if err := store.UpdateUserRole(r.Context(), s.DB, id, role); err != nil {
		s.fail(w, r, "/users", formMessage(err))
		return
	}
	slog.Info("user role updated", "user", claims.Email, "target_user", id, "new_role", role)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// UserPasswordSubmit handles POST /users/{id}/password (admin only).
func (s *Server) UserPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id := r.PathValue("id")

	newPassword := r.FormValue("new_password")
	if err := model.ValidatePassword(newPassword); err != nil {
		s.fail(w, r, "/users", capitalize(err.Error())+".")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}
	if err := store.UpdateUserPassword(r.Context(), s.DB, id, string(hash)); err != nil {
		s.fail(w, r, "/users", formMessage(err))
		return
	}
	slog.Info("user password reset", "user", claims.Email, "target_user", id)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// UserDeleteSubmit handles POST /users/{id}/delete (admin only).
func (s *Server) UserDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id := r.PathValue("id")

	if id == claims.UserID {
		s.fail(w, r, "/users", "You cannot delete yourself.")
		return
	}
	if err := store.DeleteUser(r.Context(), s.DB, id); err != nil {
		s.fail(w, r, "/users", formMessage(err))
		return
	}
	slog.Info("user deleted", "user", claims.Email, "deleted_user", id)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}
