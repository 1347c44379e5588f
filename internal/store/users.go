package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/solvetheriddle/fermentlog/internal/model"
)

const userColumns = `id, email, name, password_hash, role, provider, provider_user_id, created_at, deleted_at`

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var passwordHash, providerUserID sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &passwordHash, &u.Role, &u.Provider,
		&providerUserID, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	u.PasswordHash = passwordHash.String
	u.ProviderUserID = providerUserID.String
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser creates a local account with a password hash.
func CreateUser(ctx context.Context, db *sql.DB, email, name, passwordHash, role string) (*model.User, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, role, provider) VALUES (?, ?, ?, ?, ?, ?)`,
		id, normalizeEmail(email), strings.TrimSpace(name), passwordHash, role, model.ProviderLocal,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("creating user %s: %w", email, ErrConflict)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, db, id)
}

// UpsertOAuthUser returns the account linked to an external identity,
// creating it on first sign-in. An existing local account with the same
// email and no linked identity is linked instead of duplicated.
func UpsertOAuthUser(ctx context.Context, db *sql.DB, provider, providerUserID, email, name string) (*model.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	user, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE provider = ? AND provider_user_id = ? AND deleted_at IS NULL`,
		provider, providerUserID,
	))
	switch {
	case err == nil:
		if user.Email != email || (name != "" && user.Name != name) {
			if name == "" {
				name = user.Name
			}
			if _, err := db.ExecContext(ctx,
				`UPDATE users SET email = ?, name = ? WHERE id = ?`,
				email, name, user.ID,
			); err != nil {
				return nil, fmt.Errorf("refreshing user profile: %w", err)
			}
		}
		return GetUser(ctx, db, user.ID)
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("getting user by identity: %w", err)
	}

	if email != "" {
		existing, err := GetUserByEmail(ctx, db, email)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.DeletedAt == nil && existing.ProviderUserID == "" {
			if _, err := db.ExecContext(ctx,
				`UPDATE users SET provider = ?, provider_user_id = ? WHERE id = ?`,
				provider, providerUserID, existing.ID,
			); err != nil {
				return nil, fmt.Errorf("linking identity: %w", err)
			}
			return GetUser(ctx, db, existing.ID)
		}
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, provider, provider_user_id) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, name, model.RoleUser, provider, providerUserID,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("creating user %s: %w", email, ErrConflict)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the active user with the given email.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND deleted_at IS NULL`,
		normalizeEmail(email),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY email`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserRole updates a user's role.
func UpdateUserRole(ctx context.Context, db *sql.DB, id, role string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`,
		role, id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return requireAffected(result, "user", id)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return requireAffected(result, "user", id)
}

// DeleteUser soft-deletes a user. Their collections stay in place.
func DeleteUser(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
