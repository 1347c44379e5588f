package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/solvetheriddle/fermentlog/internal/imaging"
	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/sse"
	"github.com/solvetheriddle/fermentlog/internal/store"
	"github.com/solvetheriddle/fermentlog/internal/watch"
)

// Rows offered for ingredient amounts on the batch forms.
const (
	primaryRows   = 4
	secondaryRows = 3
)

type activePage struct {
	PageData
	Batches    []model.Batch
	HasVessels bool
}

// ActivePage handles GET /. Batches whose vessel no longer exists are not
// listed.
func (s *Server) ActivePage(w http.ResponseWriter, r *http.Request) {
	data := &activePage{PageData: s.page(w, r, "Active batches", RouteActive)}
	userID := data.User.UserID

	batches, err := s.Repo.Batches(r.Context(), userID, model.StatusActive)
	if err != nil {
		slog.Error("failed to list batches", "error", err)
		data.Error = "Could not load batches."
	}
	vessels, err := s.Repo.Vessels(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list vessels", "error", err)
	}
	data.Batches = batches
	data.HasVessels = len(vessels) > 0

	s.Templates.Render(w, "active.html", data)
}

// BatchEvents handles GET /events/batches. Every change to the user's
// batches or vessels pushes the re-rendered list of active batch cards.
func (s *Server) BatchEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetWebClaims(ctx).UserID

	stream, err := sse.NewWriter(w)
	if err != nil {
		slog.Error("opening event stream", "error", err)
		return
	}

	err = sse.Pump(ctx, stream, "batches", s.Repo.WatchBatches(ctx, userID), func(batches []model.Batch) ([]byte, error) {
		return s.Templates.Fragment("active.html", "batch_cards", watch.FilterStatus(batches, model.StatusActive))
	})
	if err != nil && ctx.Err() == nil {
		slog.Warn("batch event stream ended", "error", err)
	}
}

type batchFormPage struct {
	PageData
	Batch         model.Batch
	Vessels       []model.Vessel
	Ingredients   []model.Ingredient
	PrimaryRows   int
	SecondaryRows int
}

// NewBatchPage handles GET /batches/new. The vessel picker defaults to the
// first vessel. ?parent=<id> starts a secondary batch from an existing one.
func (s *Server) NewBatchPage(w http.ResponseWriter, r *http.Request) {
	data := &batchFormPage{
		PageData:      s.page(w, r, "New batch", RouteActive),
		PrimaryRows:   primaryRows,
		SecondaryRows: secondaryRows,
	}
	userID := data.User.UserID
	data.Batch.ApplyDefaults(s.Repo.Today())

	if !s.loadPickers(w, r, userID, data) {
		return
	}
	if len(data.Vessels) > 0 {
		data.Batch.VesselID = data.Vessels[0].ID
	}

	if parentID := r.URL.Query().Get("parent"); parentID != "" {
		parent, err := s.Repo.Batch(r.Context(), userID, parentID)
		if err != nil {
			slog.Error("failed to get parent batch", "error", err)
		}
		if parent != nil {
			data.Batch.ParentID = parent.ID
			data.Batch.Phase = model.PhaseSecondary
			data.Batch.PrimaryIngredients = parent.PrimaryIngredients
			data.Batch.Name = parent.Name
		}
	}

	s.Templates.Render(w, "batch_new.html", data)
}

func (s *Server) loadPickers(w http.ResponseWriter, r *http.Request, userID string, data *batchFormPage) bool {
	var err error
	if data.Vessels, err = s.Repo.Vessels(r.Context(), userID); err != nil {
		slog.Error("failed to list vessels", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return false
	}
	if data.Ingredients, err = s.Repo.Ingredients(r.Context(), userID); err != nil {
		slog.Error("failed to list ingredients", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return false
	}
	return true
}

// BatchCreateSubmit handles POST /batches. A name in new_vessel adds that
// vessel first and uses it for the batch.
func (s *Server) BatchCreateSubmit(w http.ResponseWriter, r *http.Request) {
	userID := GetWebClaims(r.Context()).UserID

	var b model.Batch
	if err := s.applyBatchForm(r, userID, &b); err != nil {
		s.fail(w, r, "/batches/new", formMessage(err))
		return
	}
	b.ParentID = r.FormValue("parent_id")
	if phase := r.FormValue("phase"); phase != "" {
		b.Phase = phase
	}

	var newVessel *model.Vessel
	if name := strings.TrimSpace(r.FormValue("new_vessel")); name != "" {
		vessel, err := s.Repo.AddVessel(r.Context(), userID, model.Vessel{Name: name})
		if err != nil {
			s.fail(w, r, "/batches/new", formMessage(err))
			return
		}
		newVessel = vessel
		b.VesselID = vessel.ID
	}

	created, err := s.Repo.AddBatch(r.Context(), userID, b)
	if err != nil {
		// The vessel was only added for this batch.
		if newVessel != nil {
			if err := s.Repo.DeleteVessel(r.Context(), userID, newVessel.ID); err != nil {
				slog.Error("failed to remove vessel after batch creation failed", "vessel", newVessel.ID, "error", err)
			}
		}
		s.fail(w, r, "/batches/new", formMessage(err))
		return
	}
	slog.Info("batch created", "user", GetWebClaims(r.Context()).Email, "batch", created.ID)
	http.Redirect(w, r, RoutePath(RouteActive), http.StatusSeeOther)
}

type batchDetailPage struct {
	batchFormPage
	Parent *model.Batch
}

// BatchDetailPage handles GET /batches/{id}.
func (s *Server) BatchDetailPage(w http.ResponseWriter, r *http.Request) {
	data := &batchDetailPage{batchFormPage: batchFormPage{
		PageData:      s.page(w, r, "Batch", RouteActive),
		PrimaryRows:   primaryRows,
		SecondaryRows: secondaryRows,
	}}
	userID := data.User.UserID

	batch, err := s.Repo.Batch(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get batch", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if batch == nil {
		http.NotFound(w, r)
		return
	}
	if !s.loadPickers(w, r, userID, &data.batchFormPage) {
		return
	}

	data.Batch = *batch
	data.Title = batch.DisplayName()
	if n := len(batch.PrimaryIngredients); n > data.PrimaryRows {
		data.PrimaryRows = n
	}
	if n := len(batch.SecondaryIngredients); n > data.SecondaryRows {
		data.SecondaryRows = n
	}
	if batch.ParentID != "" {
		data.Parent, _ = s.Repo.Batch(r.Context(), userID, batch.ParentID)
	}

	s.Templates.Render(w, "batch_detail.html", data)
}

// BatchUpdateSubmit handles POST /batches/{id}.
func (s *Server) BatchUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	userID := GetWebClaims(r.Context()).UserID
	id := r.PathValue("id")
	back := "/batches/" + id

	batch, err := s.Repo.Batch(r.Context(), userID, id)
	if err != nil || batch == nil {
		s.fail(w, r, RoutePath(RouteActive), "That batch no longer exists.")
		return
	}
	if err := s.applyBatchForm(r, userID, batch); err != nil {
		s.fail(w, r, back, formMessage(err))
		return
	}
	if err := s.Repo.UpdateBatch(r.Context(), userID, *batch); err != nil {
		s.fail(w, r, back, formMessage(err))
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// BatchAdvanceSubmit handles POST /batches/{id}/advance.
func (s *Server) BatchAdvanceSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Repo.AdvancePhase(r.Context(), GetWebClaims(r.Context()).UserID, id); err != nil {
		s.fail(w, r, "/batches/"+id, formMessage(err))
		return
	}
	http.Redirect(w, r, "/batches/"+id, http.StatusSeeOther)
}

// BatchCompleteSubmit handles POST /batches/{id}/complete.
func (s *Server) BatchCompleteSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Repo.CompleteBatch(r.Context(), GetWebClaims(r.Context()).UserID, id); err != nil {
		s.fail(w, r, "/batches/"+id, formMessage(err))
		return
	}
	http.Redirect(w, r, RoutePath(RouteActive), http.StatusSeeOther)
}

// BatchDeleteSubmit handles POST /batches/{id}/delete.
func (s *Server) BatchDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Repo.DeleteBatch(r.Context(), GetWebClaims(r.Context()).UserID, id); err != nil {
		s.fail(w, r, "/batches/"+id, formMessage(err))
		return
	}
	http.Redirect(w, r, RoutePath(RouteActive), http.StatusSeeOther)
}

// BatchImageSubmit handles POST /batches/{id}/image.
func (s *Server) BatchImageSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	back := "/batches/" + id

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		s.fail(w, r, back, "The photo is too large.")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		s.fail(w, r, back, "Choose a photo to upload.")
		return
	}
	defer file.Close()

	photo, err := imaging.Prepare(file)
	if err != nil {
		slog.Warn("rejecting batch photo", "error", err)
		s.fail(w, r, back, "Use a JPEG, PNG, GIF or WebP photo.")
		return
	}
	if err := s.Repo.SetBatchImage(r.Context(), GetWebClaims(r.Context()).UserID, id, photo.Data, imaging.MIME); err != nil {
		s.fail(w, r, back, formMessage(err))
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// BatchImageGet handles GET /batches/{id}/image.
func (s *Server) BatchImageGet(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetBatchImage(r.Context(), s.DB, GetWebClaims(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get image", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}

// applyBatchForm copies the editable batch fields from a submitted form.
// Ingredient rows are parallel <prefix>_ingredient / <prefix>_amount fields;
// rows without an ingredient are skipped.
func (s *Server) applyBatchForm(r *http.Request, userID string, b *model.Batch) error {
	if err := r.ParseForm(); err != nil {
		return errBadForm
	}

	b.Name = r.PostForm.Get("name")
	if v := r.PostForm.Get("vessel_id"); v != "" {
		b.VesselID = v
	}
	if d := r.PostForm.Get("start_date"); d != "" {
		date, err := model.ParseDate(d)
		if err != nil {
			return errBadDate
		}
		b.StartDate = date
	}

	ingredients, err := s.Repo.Ingredients(r.Context(), userID)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(ingredients))
	for _, i := range ingredients {
		names[i.ID] = i.Name
	}

	b.PrimaryIngredients = amountsFromForm(r, "primary", names)
	b.SecondaryIngredients = amountsFromForm(r, "secondary", names)
	return nil
}

func amountsFromForm(r *http.Request, prefix string, names map[string]string) []model.IngredientAmount {
	ids := r.PostForm[prefix+"_ingredient"]
	amounts := r.PostForm[prefix+"_amount"]

	out := []model.IngredientAmount{}
	for i, id := range ids {
		name, ok := names[id]
		if !ok {
			continue
		}
		a := model.IngredientAmount{IngredientID: id, Name: name}
		if i < len(amounts) {
			a.Amount = strings.TrimSpace(amounts[i])
		}
		out = append(out, a)
	}
	return out
}

var (
	errBadForm = errors.New("could not read the form")
	errBadDate = errors.New("start date must look like 2024-03-05")
)

// formMessage turns a write error into a message for the user.
func formMessage(err error) string {
	switch {
	case errors.Is(err, errBadForm), errors.Is(err, errBadDate):
		return capitalize(err.Error()) + "."
	case errors.Is(err, store.ErrInvalid):
		return capitalize(strings.TrimPrefix(err.Error(), store.ErrInvalid.Error()+": ")) + "."
	case errors.Is(err, store.ErrVesselInUse):
		return "That vessel still holds an active batch."
	case errors.Is(err, store.ErrConflict):
		return "That already exists."
	case errors.Is(err, store.ErrNotFound):
		return "That no longer exists."
	case errors.Is(err, watch.ErrPhaseFinal):
		return "This batch is already in secondary fermentation."
	default:
		slog.Error("write failed", "error", err)
		return "Something went wrong. Please try again."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
