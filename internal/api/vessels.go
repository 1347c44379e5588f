package api

import (
	"net/http"

	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/watch"
)

// VesselsHandler handles vessel endpoints.
type VesselsHandler struct {
	Repo *watch.Repository
}

// List handles GET /api/vessels.
func (h *VesselsHandler) List(w http.ResponseWriter, r *http.Request) {
	vessels, err := h.Repo.Vessels(r.Context(), GetClaims(r.Context()).UserID)
	if err != nil {
		writeError(w, err, "list vessels")
		return
	}
	jsonResponse(w, http.StatusOK, vessels)
}

// Create handles POST /api/vessels.
func (h *VesselsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var v model.Vessel
	if err := decodeJSON(r, &v); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Repo.AddVessel(r.Context(), GetClaims(r.Context()).UserID, v)
	if err != nil {
		writeError(w, err, "create vessel")
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// Get handles GET /api/vessels/{id}.
func (h *VesselsHandler) Get(w http.ResponseWriter, r *http.Request) {
	vessel, err := h.Repo.Vessel(r.Context(), GetClaims(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "get vessel")
		return
	}
	if vessel == nil {
		jsonError(w, http.StatusNotFound, "vessel not found")
		return
	}
	jsonResponse(w, http.StatusOK, vessel)
}

// Update handles PUT /api/vessels/{id}.
func (h *VesselsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var v model.Vessel
	if err := decodeJSON(r, &v); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v.ID = r.PathValue("id")

	if err := h.Repo.UpdateVessel(r.Context(), GetClaims(r.Context()).UserID, v); err != nil {
		writeError(w, err, "update vessel")
		return
	}
	updated, err := h.Repo.Vessel(r.Context(), GetClaims(r.Context()).UserID, v.ID)
	if err != nil {
		writeError(w, err, "get vessel")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/vessels/{id}.
func (h *VesselsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteVessel(r.Context(), GetClaims(r.Context()).UserID, r.PathValue("id")); err != nil {
		writeError(w, err, "delete vessel")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "vessel deleted"})
}
