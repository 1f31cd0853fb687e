// Package app wires the configuration, stores, services and HTTP server
// together and runs the process until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	api "github.com/shortstat/shortstat/internal/api/http"
	"github.com/shortstat/shortstat/internal/cache"
	"github.com/shortstat/shortstat/internal/config"
	"github.com/shortstat/shortstat/internal/repository/postgres"
	"github.com/shortstat/shortstat/internal/service"
	"github.com/shortstat/shortstat/internal/shortcode"
	"github.com/shortstat/shortstat/internal/upload"
	pkgpostgres "github.com/shortstat/shortstat/pkg/postgres"
)

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := setupLogger(cfg.Env)

	db, err := pkgpostgres.New(
		ctx,
		cfg.Postgres.DSN(),
		pkgpostgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pkgpostgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pkgpostgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pkgpostgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := pkgpostgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	var mappingCache *cache.MappingCache
	if cfg.Redis.Enabled() {
		client, err := cache.NewClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}
		defer client.Close()

		mappingCache = cache.NewMappingCache(client, cfg.Redis.TTL)
	}

	reportingLocation, err := time.LoadLocation(cfg.ReportingTimezone)
	if err != nil {
		return fmt.Errorf("%s: failed to load reporting timezone: %w", op, err)
	}

	mappingRepo := postgres.NewMappingRepository(db, cfg.InitialVisitCount)
	visitRepo := postgres.NewVisitRepository(db, cfg.VisitMode)
	resetter := postgres.NewResetter(db)

	urlSvc := newURLService(mappingRepo, visitRepo, resetter, mappingCache, logger.Logger, cfg, reportingLocation)

	uploads, err := upload.NewStore(cfg.Upload.Dir)
	if err != nil {
		return fmt.Errorf("%s: failed to create upload store: %w", op, err)
	}

	router := api.NewRouter(logger, urlSvc, uploads, cfg.MasterKey, cfg.CleanKey)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

func newURLService(
	mappings service.MappingRepository,
	visits service.VisitRepository,
	resetter service.Resetter,
	mappingCache *cache.MappingCache,
	logger *slog.Logger,
	cfg *config.Config,
	reportingLocation *time.Location,
) *service.URLService {
	// A nil *MappingCache must stay a nil interface inside the service.
	var svcCache service.MappingCache
	if mappingCache != nil {
		svcCache = mappingCache
	}

	return service.New(
		mappings,
		visits,
		resetter,
		shortcode.New(cfg.ShortCodeLength),
		svcCache,
		logger,
		service.Options{
			CountMode:         cfg.CountMode,
			StrictValidation:  cfg.StrictValidation,
			ReportingLocation: reportingLocation,
			MasterKey:         cfg.MasterKey,
		},
	)
}

func setupLogger(env string) *httplog.Logger {
	opts := httplog.Options{
		LogLevel: slog.LevelDebug,
		JSON:     false,
		Concise:  true,
	}

	switch env {
	case config.EnvStage:
		opts.LogLevel = slog.LevelInfo
		opts.JSON = true
	case config.EnvProd:
		opts.LogLevel = slog.LevelWarn
		opts.JSON = true
		opts.Concise = false
	}

	return httplog.NewLogger("shortstat", opts)
}
