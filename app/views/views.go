// Package views renders the HTML pages of the site.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"time"

	"quill/app/models"
)

//go:embed *.html */*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Pages lists every renderable page by name.
var Pages = []string{
	"home",
	"dashboard",
	"error",
	"posts/index",
	"posts/show",
	"posts/form",
	"categories/index",
	"categories/show",
	"tags/index",
	"tags/show",
	"auth/login",
	"auth/register",
}

// Page is what every template receives.
type Page struct {
	Title  string
	Actor  *models.User
	Notice string
	Errors map[string]string
	Data   any
}

// Views holds the parsed page templates.
type Views struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Views, error) {
	v := &Views{pages: make(map[string]*template.Template, len(Pages))}
	for _, name := range Pages {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"layout.html",
			"shared/*.html",
			name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		v.pages[name] = tmpl
	}
	return v, nil
}

// Render writes the named page wrapped in the layout. Output is buffered so
// a failing template never leaves a half written page.
func (v *Views) Render(w io.Writer, name string, page *Page) error {
	tmpl, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded stylesheet and assets.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

var funcs = template.FuncMap{
	"date":     formatDate,
	"datetime": formatDateTime,
	"safe":     func(s string) template.HTML { return template.HTML(s) },
	"add":      func(a, b int) int { return a + b },
	"hasTag":   hasTag,
	"inCategory": func(p *models.Post, id int) bool {
		return p != nil && p.CategoryID != nil && *p.CategoryID == id
	},
	"owns": func(actor *models.User, userID int) bool {
		return actor != nil && actor.ID == userID
	},
	"list": func(items ...string) []string { return items },
	"dict": dict,
}

// dict builds a map from alternating keys and values so partials can take
// more than one argument.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict needs key value pairs, got %d arguments", len(pairs))
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("Jan 2, 2006")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("Jan 2, 2006")
	}
	return ""
}

// formatDateTime produces the value a datetime-local input expects.
func formatDateTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04")
}

func hasTag(p *models.Post, id int) bool {
	if p == nil {
		return false
	}
	for _, tag := range p.Tags {
		if tag.ID == id {
			return true
		}
	}
	return false
}
