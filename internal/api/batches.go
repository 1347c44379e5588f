package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/solvetheriddle/fermentlog/internal/imaging"
	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/store"
	"github.com/solvetheriddle/fermentlog/internal/watch"
)

// BatchesHandler handles batch endpoints.
type BatchesHandler struct {
	Repo *watch.Repository
}

// List handles GET /api/batches. The optional status query parameter
// filters by status. Batches whose vessel no longer exists are left out.
func (h *BatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidStatus(status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	batches, err := h.Repo.Batches(r.Context(), GetClaims(r.Context()).UserID, status)
	if err != nil {
		writeError(w, err, "list batches")
		return
	}
	jsonResponse(w, http.StatusOK, batches)
}

// Create handles POST /api/batches.
func (h *BatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var b model.Batch
	if err := decodeJSON(r, &b); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := GetClaims(r.Context()).UserID
	created, err := h.Repo.AddBatch(r.Context(), userID, b)
	if err != nil {
		writeError(w, err, "create batch")
		return
	}
	h.respondBatch(w, r, http.StatusCreated, created.ID)
}

// Get handles GET /api/batches/{id}.
func (h *BatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respondBatch(w, r, http.StatusOK, r.PathValue("id"))
}

func (h *BatchesHandler) respondBatch(w http.ResponseWriter, r *http.Request, status int, id string) {
	batch, err := h.Repo.Batch(r.Context(), GetClaims(r.Context()).UserID, id)
	if err != nil {
		writeError(w, err, "get batch")
		return
	}
	if batch == nil {
		jsonError(w, http.StatusNotFound, "batch not found")
		return
	}
	jsonResponse(w, status, batch)
}

// Update handles PUT /api/batches/{id}. Fields missing from the body keep
// their stored values.
func (h *BatchesHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := GetClaims(r.Context()).UserID
	id := r.PathValue("id")

	existing, err := h.Repo.Batch(r.Context(), userID, id)
	if err != nil {
		writeError(w, err, "get batch")
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "batch not found")
		return
	}

	b := *existing
	if err := decodeJSON(r, &b); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b.ID = id

	if err := h.Repo.UpdateBatch(r.Context(), userID, b); err != nil {
		writeError(w, err, "update batch")
		return
	}
	h.respondBatch(w, r, http.StatusOK, id)
}

// Delete handles DELETE /api/batches/{id}.
func (h *BatchesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteBatch(r.Context(), GetClaims(r.Context()).UserID, r.PathValue("id")); err != nil {
		writeError(w, err, "delete batch")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "batch deleted"})
}

// Complete handles POST /api/batches/{id}/complete.
func (h *BatchesHandler) Complete(w http.ResponseWriter, r *http.Request) {
	batch, err := h.Repo.CompleteBatch(r.Context(), GetClaims(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "complete batch")
		return
	}
	jsonResponse(w, http.StatusOK, batch)
}

// Advance handles POST /api/batches/{id}/advance.
func (h *BatchesHandler) Advance(w http.ResponseWriter, r *http.Request) {
	batch, err := h.Repo.AdvancePhase(r.Context(), GetClaims(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "advance batch")
		return
	}
	jsonResponse(w, http.StatusOK, batch)
}

// UploadImage handles PUT /api/batches/{id}/image. The photo is sent as the
// "image" field of a multipart form.
func (h *BatchesHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Prepare(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupported) {
			jsonError(w, http.StatusBadRequest, "image must be JPEG, PNG, GIF or WebP")
			return
		}
		slog.Warn("rejecting batch photo", "error", err)
		jsonError(w, http.StatusBadRequest, "could not read image")
		return
	}

	userID := GetClaims(r.Context()).UserID
	if err := h.Repo.SetBatchImage(r.Context(), userID, r.PathValue("id"), photo.Data, imaging.MIME); err != nil {
		writeError(w, err, "save image")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/batches/{id}/image.
func (h *BatchesHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetBatchImage(r.Context(), h.Repo.DB, GetClaims(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}
