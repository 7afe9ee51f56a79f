package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/erazemk/lofoph/internal/guard"
)

type webContextKey string

const visitorKey webContextKey = "visitor"

// sessionName is the signed cookie identifying the visitor.
const sessionName = "lofoph"

const visitorIDKey = "visitor"

// MaxRequestBody caps any request body. The report form is the largest.
const MaxRequestBody = maxReportBody

// NewCookieStore returns the store holding the visitor cookie. The cookie
// lives as long as an idle visitor does.
func NewCookieStore(key []byte, ttl time.Duration, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options.Path = "/"
	store.Options.MaxAge = int(ttl.Seconds())
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// VisitorMiddleware attaches the visitor owning the request, creating one
// when the cookie is missing or the visitor has expired. A new visitor's
// client is seeded from the browser's credential cookie and its session
// resolved before the page handler runs; so is a visitor whose browser
// cookie changed behind its back.
func (s *Server) VisitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Sessions.Get(r, sessionName)
		if err != nil {
			slog.Debug("discarding visitor cookie", "error", err)
		}

		id, _ := sess.Values[visitorIDKey].(string)
		v := s.Visitors.Lookup(id)
		if v == nil {
			v, err = s.Visitors.Create()
			if err != nil {
				slog.Error("failed to create visitor", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			sess.Values[visitorIDKey] = v.ID
			if err := sess.Save(r, w); err != nil {
				slog.Error("failed to save visitor cookie", "error", err)
			}
		}

		token := browserToken(r)
		if !v.Session.Loaded() || token != v.Client.SessionToken() {
			v.Client.SetSessionToken(token)
			v.Session.CheckSession(r.Context())
		}

		ctx := context.WithValue(r.Context(), visitorKey, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// visitorFrom returns the visitor attached by VisitorMiddleware.
func visitorFrom(ctx context.Context) *Visitor {
	v, _ := ctx.Value(visitorKey).(*Visitor)
	return v
}

func browserToken(r *http.Request) string {
	if c, err := r.Cookie(guard.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// setCredential mirrors the API credential held by the visitor's client to
// the browser, so the route guard sees it. An empty credential clears the
// cookie.
func (s *Server) setCredential(w http.ResponseWriter, v *Visitor) {
	c := &http.Cookie{
		Name:     guard.CookieName,
		Value:    v.Client.SessionToken(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if c.Value == "" {
		c.MaxAge = -1
	} else if s.CredentialTTL > 0 {
		c.Expires = time.Now().Add(s.CredentialTTL)
	}
	http.SetCookie(w, c)
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests with method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
			"ip", r.RemoteAddr,
		)
	})
}

// LimitBodyMiddleware caps request bodies at n bytes. It must run before
// anything that parses the body, CSRF protection included.
func LimitBodyMiddleware(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware adds standard security headers. Item photos
// are served by the API, so img-src also allows the API origin.
func SecurityHeadersMiddleware(imageOrigin string) func(http.Handler) http.Handler {
	csp := "default-src 'self'; style-src 'self'; script-src 'self'; img-src 'self' data:"
	if imageOrigin != "" {
		csp += " " + imageOrigin
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "same-origin")
			w.Header().Set("Content-Security-Policy", csp)
			next.ServeHTTP(w, r)
		})
	}
}
