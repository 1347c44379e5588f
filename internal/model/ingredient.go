package model

import (
	"errors"
	"strings"
)

// Ingredient is a named substance that can be used in batches.
type Ingredient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Validate checks the user-editable fields of an ingredient.
func (i *Ingredient) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return errors.New("ingredient name required")
	}
	return nil
}

// IngredientAmount is an ingredient used in a batch with a free-text amount.
// The ingredient name is copied in so the batch keeps reading correctly after
// the ingredient is renamed or deleted.
type IngredientAmount struct {
	IngredientID string `json:"ingredient_id"`
	Name         string `json:"name"`
	Amount       string `json:"amount"`
}
