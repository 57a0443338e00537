package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kalamarcito/dav/internal/auth"
	"github.com/kalamarcito/dav/internal/config"
	"github.com/kalamarcito/dav/internal/dav"
	"github.com/kalamarcito/dav/internal/http/ratelimit"
	"github.com/kalamarcito/dav/internal/metrics"
	"github.com/kalamarcito/dav/internal/store"
)

func init() {
	for _, method := range []string{
		"PROPFIND",
		"PROPPATCH",
		"MKCOL",
		"REPORT",
	} {
		chi.RegisterMethod(method)
	}
}

// NewRouter wires all HTTP routes for the DAV endpoints.
func NewRouter(cfg *config.Config, st *store.Store, authService *auth.Service, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// DAV sync clients poll aggressively; keep the budget permissive.
	davRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	// Handle both GET and PROPFIND for CalDAV/CardDAV discovery.
	wellKnownHandler := func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dav/", http.StatusMovedPermanently)
	}
	r.Get("/.well-known/caldav", wellKnownHandler)
	r.MethodFunc("PROPFIND", "/.well-known/caldav", wellKnownHandler)
	r.Get("/.well-known/carddav", wellKnownHandler)
	r.MethodFunc("PROPFIND", "/.well-known/carddav", wellKnownHandler)
	r.MethodFunc("PROPFIND", "/", wellKnownHandler)

	davHandler := dav.NewHandler(cfg, st, log)

	r.Route("/dav", func(r chi.Router) {
		r.Use(davRateLimiter.Middleware())

		// OPTIONS must be accessible without authentication for client
		// discovery.
		r.MethodFunc("OPTIONS", "/*", davHandler.Options)

		r.Group(func(r chi.Router) {
			r.Use(authService.RequireDAVAuth)

			r.MethodFunc("PROPFIND", "/", davHandler.PropfindHome)
			r.MethodFunc("PROPFIND", "/collections/", davHandler.PropfindHome)

			r.MethodFunc("MKCOL", "/collections/{ref}", davHandler.MkCol)
			r.MethodFunc("PROPFIND", "/collections/{ref}/", davHandler.Propfind)
			r.MethodFunc("PROPPATCH", "/collections/{ref}/", davHandler.Proppatch)
			r.MethodFunc("REPORT", "/collections/{ref}/", davHandler.Report)
			r.Post("/collections/{ref}/", davHandler.Post)
			r.Delete("/collections/{ref}/", davHandler.DeleteCollection)

			r.Get("/collections/{ref}/{object}", davHandler.GetObject)
			r.Put("/collections/{ref}/{object}", davHandler.PutObject)
			r.Delete("/collections/{ref}/{object}", davHandler.DeleteObject)
		})
	})

	return r
}
