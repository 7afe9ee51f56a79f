package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erazemk/lofoph/internal/session"
)

type authPage struct {
	PageData
	Name  string
	Email string
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	if visitorFrom(r.Context()).Session.IsLoggedIn() {
		http.Redirect(w, r, session.LandingPath, http.StatusSeeOther)
		return
	}
	s.Templates.Render(w, http.StatusOK, "login.html", &authPage{PageData: s.page(w, r, "Log in")})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	fail := func(msg string) {
		pd := s.page(w, r, "Log in")
		pd.Error = msg
		s.Templates.Render(w, http.StatusOK, "login.html", &authPage{PageData: pd, Email: email})
	}

	if email == "" || password == "" {
		fail("Please provide email and password")
		return
	}

	if err := v.Session.Login(r.Context(), email, password); err != nil {
		fail(flowMessage(err, "Login failed"))
		return
	}

	s.setCredential(w, v)
	s.redirect(w, r, session.LandingPath)
}

// SignupPage handles GET /signup.
func (s *Server) SignupPage(w http.ResponseWriter, r *http.Request) {
	if visitorFrom(r.Context()).Session.IsLoggedIn() {
		http.Redirect(w, r, session.LandingPath, http.StatusSeeOther)
		return
	}
	s.Templates.Render(w, http.StatusOK, "signup.html", &authPage{PageData: s.page(w, r, "Sign up")})
}

// SignupSubmit handles POST /signup. Failures are reported through the
// visitor's notifications.
func (s *Server) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))

	err := v.Session.Signup(r.Context(), name, email, r.FormValue("password"), r.FormValue("passwordConfirm"))
	if err != nil {
		s.Templates.Render(w, http.StatusOK, "signup.html", &authPage{
			PageData: s.page(w, r, "Sign up"),
			Name:     name,
			Email:    email,
		})
		return
	}

	s.setCredential(w, v)
	s.redirect(w, r, session.LandingPath)
}

// Logout handles POST /logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	v.Session.Logout(r.Context())

	// Whatever the API said, the browser forgets the credential too.
	v.Client.SetSessionToken("")
	s.setCredential(w, v)
	s.redirect(w, r, session.LandingPath)
}

// flowMessage returns the display message of a failed session flow.
func flowMessage(err error, fallback string) string {
	var fe *session.FlowError
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return fallback
}
