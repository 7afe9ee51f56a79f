// Package guard decides whether a navigated path needs a session before any
// page handler runs. It only checks for the presence of the credential
// cookie; the API remains the security boundary.
package guard

import (
	"log/slog"
	"net/http"
	"strings"
)

// LoginPath is where protected paths redirect when no credential is present.
const LoginPath = "/login"

// CookieName is the credential cookie whose presence is checked.
const CookieName = "jwt"

// Match is how a rule's pattern is compared with a path.
type Match int

const (
	// Exact matches the pattern only.
	Exact Match = iota
	// Prefix matches the pattern and every path below it, on segment
	// boundaries: "/lost" matches "/lost" and "/lost/x" but not "/lostx".
	Prefix
	// Pattern matches segment by segment; ":name" segments match any
	// single non-empty segment.
	Pattern
)

// Access is the policy attached to a rule.
type Access int

const (
	Public Access = iota
	Protected
)

// Rule is one row of a policy table.
type Rule struct {
	Path   string
	Match  Match
	Access Access
}

// Matches reports whether path is covered by the rule.
func (r Rule) Matches(path string) bool {
	path = clean(path)
	switch r.Match {
	case Exact:
		return path == r.Path
	case Prefix:
		if r.Path == "/" {
			return true
		}
		return path == r.Path || strings.HasPrefix(path, r.Path+"/")
	case Pattern:
		want := strings.Split(strings.Trim(r.Path, "/"), "/")
		got := strings.Split(strings.Trim(path, "/"), "/")
		if len(want) != len(got) {
			return false
		}
		for i, seg := range want {
			if strings.HasPrefix(seg, ":") {
				if got[i] == "" {
					return false
				}
				continue
			}
			if seg != got[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Policy is an ordered rule table.
type Policy []Rule

// DefaultPolicy is the front end's route table.
var DefaultPolicy = Policy{
	{Path: "/", Match: Exact, Access: Public},
	{Path: "/login", Match: Prefix, Access: Public},
	{Path: "/signup", Match: Prefix, Access: Public},
	{Path: "/items", Match: Prefix, Access: Public},
	{Path: "/items/:id", Match: Pattern, Access: Public},
	{Path: "/view/found", Match: Prefix, Access: Public},
	{Path: "/view/lost", Match: Prefix, Access: Public},
	{Path: "/lost", Match: Prefix, Access: Public},
	{Path: "/found", Match: Prefix, Access: Public},
	{Path: "/static", Match: Prefix, Access: Public},
	{Path: "/report", Match: Prefix, Access: Protected},
	{Path: "/account", Match: Prefix, Access: Protected},
}

// Decision is the outcome of evaluating a path.
type Decision struct {
	Allow    bool
	Redirect string
}

// Decide evaluates path against the policy. Public rules win over protected
// ones, unlisted paths are allowed, and protected paths need the credential
// cookie.
func (p Policy) Decide(path string, hasCookie bool) Decision {
	for _, r := range p {
		if r.Access == Public && r.Matches(path) {
			return Decision{Allow: true}
		}
	}

	protected := false
	for _, r := range p {
		if r.Access == Protected && r.Matches(path) {
			protected = true
			break
		}
	}
	if !protected || hasCookie {
		return Decision{Allow: true}
	}
	return Decision{Redirect: LoginPath}
}

// Decide evaluates path against DefaultPolicy.
func Decide(path string, hasCookie bool) Decision {
	return DefaultPolicy.Decide(path, hasCookie)
}

// HasCredential reports whether the request carries a non-empty credential
// cookie.
func HasCredential(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	return err == nil && c.Value != ""
}

// Middleware redirects requests for protected paths without a credential
// to the login page.
func Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := p.Decide(r.URL.Path, HasCredential(r))
			if !d.Allow {
				slog.Debug("guard redirect", "path", r.URL.Path, "to", d.Redirect)
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clean(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
