package model

import (
	"fmt"
	"time"
)

// User is an account that owns its own batches, vessels and ingredients.
// The ID is opaque and doubles as the data namespace.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name,omitempty"`
	PasswordHash   string     `json:"-"`
	Role           string     `json:"role"`
	Provider       string     `json:"provider"`
	ProviderUserID string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Identity providers.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleUser:  1,
	}
	have, ok := levels[role]
	if !ok {
		return false
	}
	need, ok := levels[minimum]
	if !ok {
		return false
	}
	return have >= need
}

// MinPasswordLength is the shortest accepted local password.
const MinPasswordLength = 8

// ValidatePassword checks a new local password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
