package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/solvetheriddle/fermentlog/internal/db"
	"github.com/solvetheriddle/fermentlog/internal/model"
)

// newTestUser creates a local user to own test collections.
func newTestUser(t *testing.T, database *sql.DB, email string) *model.User {
	t.Helper()
	user, err := CreateUser(context.Background(), database, email, "", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return user
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func setupStoreTest(t *testing.T) (*sql.DB, *model.User) {
	t.Helper()
	database := db.NewTestDB(t)
	return database, newTestUser(t, database, "brewer@example.com")
}
