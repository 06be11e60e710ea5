package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/enrollhub/enrollhub/internal/identity"
	"github.com/enrollhub/enrollhub/internal/routing"
	"github.com/enrollhub/enrollhub/internal/shared"
	"github.com/enrollhub/enrollhub/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// Navbar is the identity strip shown on every page.
type Navbar struct {
	LoggedIn bool
	Username string
	Role     string
	Home     string
}

// NavbarFor builds the navbar of id.
func NavbarFor(id identity.Identity) Navbar {
	if !id.Present() {
		return Navbar{Home: routing.PathLogin}
	}
	return Navbar{
		LoggedIn: true,
		Username: id.Username,
		Role:     id.Role.Label(),
		Home:     routing.DefaultPath(id.Role),
	}
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Nav         Navbar
	Data        any
}

// FormatGrade renders a stored grade, or "Not graded".
func FormatGrade(g *float64) string {
	if g == nil {
		return "Not graded"
	}
	return strconv.FormatFloat(*g, 'f', -1, 64)
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"grade": FormatGrade,
		"gradeInput": func(g *float64) string {
			if g == nil {
				return ""
			}
			return strconv.FormatFloat(*g, 'f', -1, 64)
		},
		"seats": func(count, capacity int) string {
			return fmt.Sprintf("%d/%d", count, capacity)
		},
		"full": func(count, capacity int) bool {
			return count >= capacity
		},
		"coursePath": routing.CoursePath,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template. Output is buffered so a failing template
// never leaves a half-written page.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
