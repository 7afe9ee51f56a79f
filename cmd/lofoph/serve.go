package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/csrf"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/lofoph/internal/client"
	"github.com/erazemk/lofoph/internal/config"
	"github.com/erazemk/lofoph/internal/listing"
	"github.com/erazemk/lofoph/internal/refdata"
	"github.com/erazemk/lofoph/internal/web"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

var serveFlags struct {
	addr     string
	apiURL   string
	pageSize int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web front end",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.StringVarP(&serveFlags.addr, "addr", "a", config.DefaultAddr, "listen address (overrides LOFOPH_ADDR)")
	f.StringVar(&serveFlags.apiURL, "api-url", config.DefaultAPIURL, "REST API root (overrides API_URL)")
	f.IntVar(&serveFlags.pageSize, "page-size", config.DefaultPageSize, "items per listing page (overrides PAGE_SIZE)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = serveFlags.addr
	}
	if cmd.Flags().Changed("api-url") {
		cfg.APIURL = serveFlags.apiURL
	}
	if cmd.Flags().Changed("page-size") {
		cfg.PageSize = serveFlags.pageSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	path, level, err := logSettings(cmd, cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	closeLog, err := setupLogger(path, level)
	if err != nil {
		return err
	}
	defer closeLog()

	newClient := func() (*client.Client, error) {
		return client.New(cfg.APIURL, cfg.HTTPTimeout)
	}
	probe, err := newClient()
	if err != nil {
		return err
	}

	templates, err := web.LoadTemplates(probe.ResolveURL)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	visitors := web.NewRegistry(newClient, cfg.VisitorTTL,
		listing.WithPageSize(cfg.PageSize),
		listing.WithLoadMoreDelay(cfg.LoadMoreDelay),
	)
	if err := visitors.Start(); err != nil {
		return err
	}

	s := &web.Server{
		Templates:     templates,
		Visitors:      visitors,
		Sessions:      web.NewCookieStore(cfg.SessionKey, cfg.VisitorTTL, cfg.CookieSecure),
		RefData:       refdata.Default(),
		CookieSecure:  cfg.CookieSecure,
		CredentialTTL: cfg.CredentialTTL,
	}

	protect := csrf.Protect(cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
	)

	// Chain: Logger -> Security Headers -> Body Limit -> CSRF -> Route Guard -> Visitor -> Mux
	handler := protect(s.Routes())
	if !cfg.CookieSecure {
		handler = plaintextHTTP(handler)
	}
	handler = web.LimitBodyMiddleware(web.MaxRequestBody)(handler)
	handler = web.LoggingMiddleware(web.SecurityHeadersMiddleware(origin(cfg.APIURL))(handler))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("front end starting", "addr", cfg.Addr, "api", cfg.APIURL)
	err = runHTTP(cmd.Context(), server)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	visitors.Stop(ctx)
	slog.Info("front end stopped")
	return err
}

// plaintextHTTP marks requests as served over plain HTTP so the CSRF origin
// checks do not expect TLS.
func plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

// origin returns the scheme and host of an absolute URL.
func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// runHTTP serves until the server fails or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
func runHTTP(parent context.Context, server *http.Server) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving %s: %w", server.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "addr", server.Addr)

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	})
	return g.Wait()
}
