// Package render turns controller snapshots into HTML. The page and each
// live fragment come from embedded html/template files, so record text is
// always contextually escaped.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"unicode"

	"github.com/starford/casedeck/internal/controller"
	"github.com/starford/casedeck/internal/models"
)

//go:embed templates/*.html static/*.css
var assetsFS embed.FS

// Fragment ids. Each fragment template renders a single root element with
// the matching id, so it can replace itself in place.
const (
	Stats   = "stats"
	Grid    = "grid"
	Modal   = "modal"
	Confirm = "confirm"
	Notice  = "notice"
)

// Fragments lists every live fragment in patch order.
var Fragments = []string{Stats, Grid, Modal, Confirm, Notice}

// PageData feeds the full page template.
type PageData struct {
	Title       string
	DatastarURL string
	Snapshot    controller.Snapshot
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
	css  []byte
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"badge":      BadgeClass,
		"priorities": func(cur models.Priority) []models.Priority { return models.Choices(models.Priorities, cur) },
		"statuses":   func(cur models.Status) []models.Status { return models.Choices(models.Statuses, cur) },
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	css, err := assetsFS.ReadFile("static/app.css")
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}
	return &Renderer{tmpl: tmpl, css: css}, nil
}

// Page writes the full document.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = "Test Case Manager"
	}
	return r.tmpl.ExecuteTemplate(w, "page", data)
}

// Fragment renders the named fragment for s.
func (r *Renderer) Fragment(name string, s controller.Snapshot) (string, error) {
	var b strings.Builder
	if err := r.tmpl.ExecuteTemplate(&b, name, s); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

// CSS returns the stylesheet.
func (r *Renderer) CSS() []byte {
	return r.css
}

// BadgeClass derives a CSS class suffix from an enum value: lowercased,
// with anything outside [a-z0-9-] dropped so unknown backend values stay
// inert.
func BadgeClass(v any) string {
	s := strings.ToLower(fmt.Sprint(v))
	return strings.Map(func(r rune) rune {
		if r == '-' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return r
		}
		return -1
	}, s)
}
