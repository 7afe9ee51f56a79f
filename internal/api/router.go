// Package api implements a development stand-in for the lost-and-found
// REST API, backed by SQLite.
package api

import (
	"database/sql"
	"net/http"
)

// Options configures the router.
type Options struct {
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, SecureCookie: opts.SecureCookie}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)

	// Public: session management.
	mux.HandleFunc("POST /api/v1/users/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/users/signup", authHandler.Signup)
	mux.HandleFunc("GET /api/v1/users/logout", authHandler.Logout)

	mux.Handle("GET /api/v1/users/me", authMW(http.HandlerFunc(usersHandler.Me)))

	// Items: read (public), report (logged in).
	mux.HandleFunc("GET /api/v1/items", itemsHandler.List)
	mux.Handle("POST /api/v1/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.HandleFunc("GET /api/v1/items/{id}", itemsHandler.Get)
	mux.HandleFunc("GET /api/v1/images/{id}", itemsHandler.Image)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "Can't find "+r.URL.Path+" on this server!")
	})

	return LoggingMiddleware(mux)
}
