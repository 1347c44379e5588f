package api

import (
	"net/http"

	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/watch"
)

// IngredientsHandler handles ingredient endpoints.
type IngredientsHandler struct {
	Repo *watch.Repository
}

// List handles GET /api/ingredients.
func (h *IngredientsHandler) List(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.Repo.Ingredients(r.Context(), GetClaims(r.Context()).UserID)
	if err != nil {
		writeError(w, err, "list ingredients")
		return
	}
	jsonResponse(w, http.StatusOK, ingredients)
}

// Create handles POST /api/ingredients.
func (h *IngredientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var i model.Ingredient
	if err := decodeJSON(r, &i); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Repo.AddIngredient(r.Context(), GetClaims(r.Context()).UserID, i)
	if err != nil {
		writeError(w, err, "create ingredient")
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// Get handles GET /api/ingredients/{id}.
func (h *IngredientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ingredient, err := h.Repo.Ingredient(r.Context(), GetClaims(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "get ingredient")
		return
	}
	if ingredient == nil {
		jsonError(w, http.StatusNotFound, "ingredient not found")
		return
	}
	jsonResponse(w, http.StatusOK, ingredient)
}

// Update handles PUT /api/ingredients/{id}.
func (h *IngredientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var i model.Ingredient
	if err := decodeJSON(r, &i); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	i.ID = r.PathValue("id")

	if err := h.Repo.UpdateIngredient(r.Context(), GetClaims(r.Context()).UserID, i); err != nil {
		writeError(w, err, "update ingredient")
		return
	}
	updated, err := h.Repo.Ingredient(r.Context(), GetClaims(r.Context()).UserID, i.ID)
	if err != nil {
		writeError(w, err, "get ingredient")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/ingredients/{id}.
func (h *IngredientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteIngredient(r.Context(), GetClaims(r.Context()).UserID, r.PathValue("id")); err != nil {
		writeError(w, err, "delete ingredient")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "ingredient deleted"})
}
