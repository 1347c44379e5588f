package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/solvetheriddle/fermentlog/internal/model"
)

// CreateVessel stores a new vessel in the user's namespace. An empty ID is
// replaced with a generated one.
func CreateVessel(ctx context.Context, db *sql.DB, userID string, v model.Vessel) (*model.Vessel, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.Name = strings.TrimSpace(v.Name)
	if err := v.Validate(); err != nil {
		return nil, invalid(err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO vessels (user_id, id, name, capacity) VALUES (?, ?, ?, ?)`,
		userID, v.ID, v.Name, v.Capacity,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("creating vessel %s: %w", v.ID, ErrConflict)
		}
		return nil, fmt.Errorf("creating vessel: %w", err)
	}

	return GetVessel(ctx, db, userID, v.ID)
}

// GetVessel returns a vessel by ID, or nil if it does not exist.
func GetVessel(ctx context.Context, db *sql.DB, userID, id string) (*model.Vessel, error) {
	v := &model.Vessel{}
	var capacity sql.NullFloat64
	err := db.QueryRowContext(ctx,
		`SELECT id, name, capacity FROM vessels WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&v.ID, &v.Name, &capacity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting vessel: %w", err)
	}
	if capacity.Valid {
		v.Capacity = &capacity.Float64
	}
	return v, nil
}

// ListVessels returns all of the user's vessels ordered by name.
func ListVessels(ctx context.Context, db *sql.DB, userID string) ([]model.Vessel, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, capacity FROM vessels WHERE user_id = ? ORDER BY name, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing vessels: %w", err)
	}
	defer rows.Close()

	vessels := []model.Vessel{}
	for rows.Next() {
		var v model.Vessel
		var capacity sql.NullFloat64
		if err := rows.Scan(&v.ID, &v.Name, &capacity); err != nil {
			return nil, fmt.Errorf("scanning vessel: %w", err)
		}
		if capacity.Valid {
			c := capacity.Float64
			v.Capacity = &c
		}
		vessels = append(vessels, v)
	}
	return vessels, rows.Err()
}

// UpdateVessel replaces a vessel's name and capacity.
func UpdateVessel(ctx context.Context, db *sql.DB, userID string, v model.Vessel) error {
	v.Name = strings.TrimSpace(v.Name)
	if err := v.Validate(); err != nil {
		return invalid(err)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE vessels SET name = ?, capacity = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND id = ?`,
		v.Name, v.Capacity, userID, v.ID,
	)
	if err != nil {
		return fmt.Errorf("updating vessel: %w", err)
	}
	return requireAffected(result, "vessel", v.ID)
}

// DeleteVessel removes a vessel. Fails with ErrVesselInUse while an active
// batch still references it. Deleting a missing vessel is not an error.
func DeleteVessel(ctx context.Context, db *sql.DB, userID, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batches WHERE user_id = ? AND vessel_id = ? AND status = ?`,
		userID, id, model.StatusActive,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking vessel usage: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete vessel: %d active batches: %w", count, ErrVesselInUse)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM vessels WHERE user_id = ? AND id = ?`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting vessel: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vessel deletion: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s update: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
