package web

import (
	"log/slog"
	"net/http"

	"github.com/solvetheriddle/fermentlog/internal/model"
)

type ingredientsPage struct {
	PageData
	Ingredients []model.Ingredient
	Edit        *model.Ingredient
}

// IngredientsPage handles GET /ingredients.
func (s *Server) IngredientsPage(w http.ResponseWriter, r *http.Request) {
	data := &ingredientsPage{PageData: s.page(w, r, "Ingredients", RouteIngredients)}

	ingredients, err := s.Repo.Ingredients(r.Context(), data.User.UserID)
	if err != nil {
		slog.Error("failed to list ingredients", "error", err)
		data.Error = "Could not load ingredients."
	}
	data.Ingredients = ingredients

	if id := r.URL.Query().Get("edit"); id != "" {
		for i := range ingredients {
			if ingredients[i].ID == id {
				data.Edit = &ingredients[i]
			}
		}
	} else if r.URL.Query().Has("add") {
		data.Edit = &model.Ingredient{}
	}

	s.Templates.Render(w, "ingredients.html", data)
}

// IngredientCreateSubmit handles POST /ingredients.
func (s *Server) IngredientCreateSubmit(w http.ResponseWriter, r *http.Request) {
	i := model.Ingredient{Name: r.FormValue("name")}
	if _, err := s.Repo.AddIngredient(r.Context(), GetWebClaims(r.Context()).UserID, i); err != nil {
		s.fail(w, r, "/ingredients?add", formMessage(err))
		return
	}
	http.Redirect(w, r, RoutePath(RouteIngredients), http.StatusSeeOther)
}

// IngredientUpdateSubmit handles POST /ingredients/{id}.
func (s *Server) IngredientUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	i := model.Ingredient{ID: r.PathValue("id"), Name: r.FormValue("name")}
	if err := s.Repo.UpdateIngredient(r.Context(), GetWebClaims(r.Context()).UserID, i); err != nil {
		s.fail(w, r, "/ingredients?edit="+i.ID, formMessage(err))
		return
	}
	http.Redirect(w, r, RoutePath(RouteIngredients), http.StatusSeeOther)
}

// IngredientDeleteSubmit handles POST /ingredients/{id}/delete. Batches keep
// their copy of the ingredient name.
func (s *Server) IngredientDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.Repo.DeleteIngredient(r.Context(), GetWebClaims(r.Context()).UserID, r.PathValue("id")); err != nil {
		s.fail(w, r, RoutePath(RouteIngredients), formMessage(err))
		return
	}
	http.Redirect(w, r, RoutePath(RouteIngredients), http.StatusSeeOther)
}
