package web

import (
	"net/http"

	"github.com/erazemk/lofoph/internal/guard"
	"github.com/erazemk/lofoph/internal/model"
	webembed "github.com/erazemk/lofoph/web"
)

// Routes registers all page routes and returns the handler with the
// visitor and route guard middleware applied. The route guard runs first,
// before any visitor state is touched.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	mux.HandleFunc("GET /{$}", s.HomePage)

	for _, t := range []string{model.ItemTypeLost, model.ItemTypeFound} {
		mux.HandleFunc("GET /"+t, s.ListingPage(t))
		mux.HandleFunc("POST /"+t+"/more", s.LoadMore(t))
		mux.Handle("GET /view/"+t, http.RedirectHandler("/"+t, http.StatusMovedPermanently))
	}
	mux.Handle("GET /items", http.RedirectHandler("/lost", http.StatusSeeOther))
	mux.HandleFunc("GET /items/{id}", s.ItemPage)

	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("GET /signup", s.SignupPage)
	mux.HandleFunc("POST /signup", s.SignupSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	// Protected by the route guard.
	mux.Handle("GET /report", http.RedirectHandler("/report/lost", http.StatusSeeOther))
	mux.HandleFunc("GET /report/{type}", s.ReportPage)
	mux.HandleFunc("POST /report/{type}", s.ReportSubmit)
	mux.HandleFunc("GET /account", s.AccountPage)
	mux.HandleFunc("POST /account/more", s.AccountMore)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.message(w, r, http.StatusNotFound, "Not found", "The page you are looking for does not exist.")
	})

	return guard.Middleware(guard.DefaultPolicy)(s.VisitorMiddleware(mux))
}
