package web

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/solvetheriddle/fermentlog/internal/model"
)

type vesselsPage struct {
	PageData
	Vessels []model.Vessel
	Edit    *model.Vessel
}

// VesselsPage handles GET /vessels. ?edit=<id> opens the edit dialog for a
// vessel; ?add opens an empty one.
func (s *Server) VesselsPage(w http.ResponseWriter, r *http.Request) {
	data := &vesselsPage{PageData: s.page(w, r, "Vessels", RouteVessels)}

	vessels, err := s.Repo.Vessels(r.Context(), data.User.UserID)
	if err != nil {
		slog.Error("failed to list vessels", "error", err)
		data.Error = "Could not load vessels."
	}
	data.Vessels = vessels

	if id := r.URL.Query().Get("edit"); id != "" {
		for i := range vessels {
			if vessels[i].ID == id {
				data.Edit = &vessels[i]
			}
		}
	} else if r.URL.Query().Has("add") {
		data.Edit = &model.Vessel{}
	}

	s.Templates.Render(w, "vessels.html", data)
}

func vesselFromForm(r *http.Request) (model.Vessel, bool) {
	v := model.Vessel{Name: strings.TrimSpace(r.FormValue("name"))}
	if c := strings.TrimSpace(r.FormValue("capacity")); c != "" {
		capacity, err := strconv.ParseFloat(strings.Replace(c, ",", ".", 1), 64)
		if err != nil || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
			return v, false
		}
		v.Capacity = &capacity
	}
	return v, true
}

// VesselCreateSubmit handles POST /vessels.
func (s *Server) VesselCreateSubmit(w http.ResponseWriter, r *http.Request) {
	v, ok := vesselFromForm(r)
	if !ok {
		s.fail(w, r, "/vessels?add", "Capacity must be a number of liters.")
		return
	}
	if _, err := s.Repo.AddVessel(r.Context(), GetWebClaims(r.Context()).UserID, v); err != nil {
		s.fail(w, r, "/vessels?add", formMessage(err))
		return
	}
	http.Redirect(w, r, RoutePath(RouteVessels), http.StatusSeeOther)
}

// VesselUpdateSubmit handles POST /vessels/{id}.
func (s *Server) VesselUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, ok := vesselFromForm(r)
	if !ok {
		s.fail(w, r, "/vessels?edit="+id, "Capacity must be a number of liters.")
		return
	}
	v.ID = id
	if err := s.Repo.UpdateVessel(r.Context(), GetWebClaims(r.Context()).UserID, v); err != nil {
		s.fail(w, r, "/vessels?edit="+id, formMessage(err))
		return
	}
	http.Redirect(w, r, RoutePath(RouteVessels), http.StatusSeeOther)
}

// VesselDeleteSubmit handles POST /vessels/{id}/delete.
func (s *Server) VesselDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.Repo.DeleteVessel(r.Context(), GetWebClaims(r.Context()).UserID, r.PathValue("id")); err != nil {
		s.fail(w, r, RoutePath(RouteVessels), formMessage(err))
		return
	}
	http.Redirect(w, r, RoutePath(RouteVessels), http.StatusSeeOther)
}
