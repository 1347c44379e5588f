package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/solvetheriddle/fermentlog/internal/model"
)

// CreateIngredient stores a new ingredient in the user's namespace.
func CreateIngredient(ctx context.Context, db *sql.DB, userID string, i model.Ingredient) (*model.Ingredient, error) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	i.Name = strings.TrimSpace(i.Name)
	if err := i.Validate(); err != nil {
		return nil, invalid(err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO ingredients (user_id, id, name) VALUES (?, ?, ?)`,
		userID, i.ID, i.Name,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("creating ingredient %s: %w", i.ID, ErrConflict)
		}
		return nil, fmt.Errorf("creating ingredient: %w", err)
	}

	return &i, nil
}

// GetIngredient returns an ingredient by ID, or nil if it does not exist.
func GetIngredient(ctx context.Context, db *sql.DB, userID, id string) (*model.Ingredient, error) {
	i := &model.Ingredient{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name FROM ingredients WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&i.ID, &i.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting ingredient: %w", err)
	}
	return i, nil
}

// ListIngredients returns all of the user's ingredients ordered by name.
func ListIngredients(ctx context.Context, db *sql.DB, userID string) ([]model.Ingredient, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name FROM ingredients WHERE user_id = ? ORDER BY name, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := []model.Ingredient{}
	for rows.Next() {
		var i model.Ingredient
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, fmt.Errorf("scanning ingredient: %w", err)
		}
		ingredients = append(ingredients, i)
	}
	return ingredients, rows.Err()
}

// UpdateIngredient renames an ingredient. Batches keep the name they were
// created with.
func UpdateIngredient(ctx context.Context, db *sql.DB, userID string, i model.Ingredient) error {
	i.Name = strings.TrimSpace(i.Name)
	if err := i.Validate(); err != nil {
		return invalid(err)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE ingredients SET name = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND id = ?`,
		i.Name, userID, i.ID,
	)
	if err != nil {
		return fmt.Errorf("updating ingredient: %w", err)
	}
	return requireAffected(result, "ingredient", i.ID)
}

// DeleteIngredient removes an ingredient. Deleting a missing ingredient is
// not an error.
func DeleteIngredient(ctx context.Context, db *sql.DB, userID, id string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM ingredients WHERE user_id = ? AND id = ?`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting ingredient: %w", err)
	}
	return nil
}
