package db

import (
	"path/filepath"
	"testing"
)

func TestEnsureSchemaIdempotent(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "fermentlog.sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	for i := 0; i < 2; i++ {
		if err := EnsureSchema(database); err != nil {
			t.Fatalf("EnsureSchema run %d: %v", i+1, err)
		}
	}

	var fk int
	if err := database.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}
}

func TestMigrationLowercasesStatus(t *testing.T) {
	database := NewTestDB(t)

	if _, err := database.Exec(`INSERT INTO users (id, email) VALUES ('u1', 'a@example.com')`); err != nil {
		t.Fatal(err)
	}
	if _, err := database.Exec(
		`INSERT INTO batches (user_id, id, status, phase, start_date, vessel_id)
		 VALUES ('u1', 'b1', 'ACTIVE', 'PRIMARY', '2024-01-01', 'v1')`,
	); err != nil {
		t.Fatal(err)
	}

	if err := EnsureSchema(database); err != nil {
		t.Fatal(err)
	}

	var status, phase string
	if err := database.QueryRow(`SELECT status, phase FROM batches WHERE id = 'b1'`).Scan(&status, &phase); err != nil {
		t.Fatal(err)
	}
	if status != "active" || phase != "primary" {
		t.Errorf("expected lower-case values, got %q/%q", status, phase)
	}
}
