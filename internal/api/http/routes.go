// Package http exposes the application over HTTP: the redirect entry
// point, the JSON API and the gated upload facility.
package http

import (
	"context"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shortstat/shortstat/internal/entity"
)

type URLService interface {
	Shorten(ctx context.Context, rawURL string) (*entity.URLMapping, error)
	Lookup(ctx context.Context, shortCode string) (*entity.URLMapping, error)
	Resolve(ctx context.Context, shortCode, ipAddress string, now time.Time) (*entity.URLMapping, error)
	Stats(ctx context.Context, rawURL string) (*entity.StatsReport, error)
	Reset(ctx context.Context, key string) error
}

type UploadStore interface {
	Save(name string, r io.Reader) (string, error)
	Find(fragment string) (string, error)
	Path(stored string) (string, error)
	Purge() (int, error)
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func NewRouter(logger *httplog.Logger, urlSvc URLService, uploads UploadStore, masterKey, cleanKey string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Static prefixes take precedence over the short-code wildcard.
	r.Get("/{shortCode}", handleRedirect(urlSvc))
	r.Get("/uploads/{name}", handleServeUpload(uploads))

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			r.With(middleware.AllowContentType("application/json")).
				Post("/", handleShorten(urlSvc, validate))

			r.Route("/{shortCode}", func(r chi.Router) {
				r.Get("/", handleLookup(urlSvc))
				r.Get("/qr", handleQRCode(urlSvc))
			})
		})

		r.With(middleware.AllowContentType("application/json")).
			Post("/stats", handleStats(urlSvc, validate))

		r.With(middleware.AllowContentType("application/json")).
			Post("/admin/reset", handleReset(urlSvc, validate))

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/", handleUpload(uploads, masterKey))
			r.Get("/{name}", handleFindUpload(uploads))
			r.With(middleware.AllowContentType("application/json")).
				Post("/clean", handleCleanUploads(uploads, cleanKey, validate))
		})
	})

	return r
}
