package web

import (
	"bytes"
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/solvetheriddle/fermentlog/internal/auth"
	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/watch"
	webembed "github.com/solvetheriddle/fermentlog/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"route":       RoutePath,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleUser:
				return "Brewer"
			default:
				return role
			}
		},
		"phaseName": func(phase string) string {
			switch phase {
			case model.PhasePrimary:
				return "Primary"
			case model.PhaseSecondary:
				return "Secondary"
			default:
				return phase
			}
		},
		"days": func(n int) string {
			if n == 1 {
				return "1 day"
			}
			return fmt.Sprintf("%d days", n)
		},
		"capacity": func(c *float64) string {
			if c == nil {
				return ""
			}
			return fmt.Sprintf("%g L", *c)
		},
		"seq": func(n int) []int {
			s := make([]int, n)
			for i := range s {
				s[i] = i
			}
			return s
		},
		"amountAt": func(amounts []model.IngredientAmount, i int) model.IngredientAmount {
			if i < len(amounts) {
				return amounts[i]
			}
			return model.IngredientAmount{}
		},
		"rows": func(prefix string, n int, amounts []model.IngredientAmount, ingredients []model.Ingredient) ingredientRows {
			return ingredientRows{Prefix: prefix, Rows: n, Amounts: amounts, Ingredients: ingredients}
		},
	}
}

// ingredientRows feeds the ingredient_rows partial.
type ingredientRows struct {
	Prefix      string
	Rows        int
	Amounts     []model.IngredientAmount
	Ingredients []model.Ingredient
}

// pages lists every page template. Each is parsed together with the layout
// and the shared partials.
var pages = []string{
	"login.html",
	"active.html",
	"batch_new.html",
	"batch_detail.html",
	"vessels.html",
	"ingredients.html",
	"settings.html",
	"users.html",
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}
	partialBytes, err := fs.ReadFile(tfs, "partials.html")
	if err != nil {
		return nil, fmt.Errorf("reading partials template: %w", err)
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		for _, src := range [][]byte{layoutBytes, partialBytes, pageBytes} {
			if tmpl, err = tmpl.Parse(string(src)); err != nil {
				return nil, fmt.Errorf("parsing template %s: %w", page, err)
			}
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a page with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a page with a non-200 status.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// Fragment renders one named partial to bytes.
func (ts *Templates) Fragment(page, name string, data any) ([]byte, error) {
	tmpl, ok := ts.templates[page]
	if !ok {
		return nil, fmt.Errorf("template %s not found", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	Nav     string
	Routes  []Route
	User    *auth.Claims
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB            *sql.DB
	Repo          *watch.Repository
	Templates     *Templates
	JWTSecret     string
	OAuth         *auth.OAuth
	SecureCookies bool
}

// page builds the base page data for a signed-in request. A pending flash
// message is consumed and shown as an error.
func (s *Server) page(w http.ResponseWriter, r *http.Request, title, nav string) PageData {
	return PageData{
		Title:  title,
		Nav:    nav,
		Routes: Routes,
		User:   GetWebClaims(r.Context()),
		Error:  s.OAuth.Flash(w, r),
	}
}

// fail stores a flash message and redirects.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, to, message string) {
	if err := s.OAuth.SetFlash(w, r, message); err != nil {
		slog.Error("failed to store flash message", "error", err)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
