package web

import (
	"encoding/gob"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/erazemk/lofoph/internal/model"
	"github.com/erazemk/lofoph/internal/refdata"
	webembed "github.com/erazemk/lofoph/web"
)

func init() {
	gob.Register(Flash{})
}

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map. resolve turns an image
// reference from the API into a URL the browser can load.
func FuncMap(resolve func(string) string) template.FuncMap {
	return template.FuncMap{
		"imageURL": resolve,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"peso": func(v *float64) string {
			if v == nil {
				return ""
			}
			return "₱" + groupThousands(*v)
		},
		"join": strings.Join,
		"typeName": func(itemType string) string {
			if itemType == model.ItemTypeFound {
				return "Found"
			}
			return "Lost"
		},
	}
}

// groupThousands formats a whole amount with comma separators.
func groupThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates(resolve func(string) string) (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}
	partials, err := fs.ReadFile(tfs, "partials.html")
	if err != nil {
		return nil, fmt.Errorf("reading partials template: %w", err)
	}

	pages := []string{
		"home.html",
		"listing.html",
		"item.html",
		"login.html",
		"signup.html",
		"report.html",
		"account.html",
		"message.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap(resolve))
		for _, src := range [][]byte{layoutBytes, partials, pageBytes} {
			if tmpl, err = tmpl.Parse(string(src)); err != nil {
				return nil, fmt.Errorf("parsing template %s: %w", page, err)
			}
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given status and data.
func (ts *Templates) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title     string
	Path      string
	User      *model.User
	Loaded    bool
	Flashes   []Flash
	CSRFField template.HTML
	Error     string
}

// Server holds all dependencies for page handlers.
type Server struct {
	Templates     *Templates
	Visitors      *Registry
	Sessions      sessions.Store
	RefData       *refdata.Dataset
	CookieSecure  bool
	// CredentialTTL is how long the browser keeps the credential cookie.
	// Zero makes it a browser-session cookie.
	CredentialTTL time.Duration
}

// page builds the base page data. Notifications queued on the visitor and
// flashes left in the cookie by a previous redirect are consumed.
func (s *Server) page(w http.ResponseWriter, r *http.Request, title string) PageData {
	v := visitorFrom(r.Context())
	pd := PageData{
		Title:     title,
		Path:      r.URL.Path,
		CSRFField: csrf.TemplateField(r),
	}
	if v == nil {
		return pd
	}

	pd.User = v.Session.User()
	pd.Loaded = v.Session.Loaded()

	sess, _ := s.Sessions.Get(r, sessionName)
	if flashes := sess.Flashes(); len(flashes) > 0 {
		for _, f := range flashes {
			if fm, ok := f.(Flash); ok {
				pd.Flashes = append(pd.Flashes, fm)
			}
		}
		if err := sess.Save(r, w); err != nil {
			slog.Error("failed to save visitor cookie", "error", err)
		}
	}
	pd.Flashes = append(pd.Flashes, v.takeNotices()...)
	return pd
}

// redirect sends the visitor to its pending navigation, or to fallback.
// Queued notifications travel in the cookie so they survive the redirect.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, fallback string) {
	target := fallback
	if v := visitorFrom(r.Context()); v != nil {
		target = v.takeRedirect(fallback)
		if notices := v.takeNotices(); len(notices) > 0 {
			sess, _ := s.Sessions.Get(r, sessionName)
			for _, n := range notices {
				sess.AddFlash(n)
			}
			if err := sess.Save(r, w); err != nil {
				slog.Error("failed to save flashes", "error", err)
			}
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// message renders a standalone message page.
func (s *Server) message(w http.ResponseWriter, r *http.Request, status int, title, text string) {
	s.Templates.Render(w, status, "message.html", &struct {
		PageData
		Message string
	}{
		PageData: s.page(w, r, title),
		Message:  text,
	})
}
