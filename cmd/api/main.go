package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"donation-rewards-api/internal/auth"
	"donation-rewards-api/internal/cache"
	"donation-rewards-api/internal/clock"
	"donation-rewards-api/internal/config"
	"donation-rewards-api/internal/database"
	"donation-rewards-api/internal/events"
	"donation-rewards-api/internal/features"
	"donation-rewards-api/internal/handler"
	"donation-rewards-api/internal/logging"
	"donation-rewards-api/internal/middleware"
	"donation-rewards-api/internal/service"
	"donation-rewards-api/internal/storage"
	"donation-rewards-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to a JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(sctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	var backend cache.Cache = cache.NewInMemoryCache()
	if cfg.Cache.RedisEnabled {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: "donation-rewards:",
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rc.Close()
		backend = rc
	}

	media, err := storage.New(ctx, storage.Config{
		Backend:       cfg.Storage.Backend,
		LocalDir:      cfg.Storage.LocalDir,
		LocalBaseURL:  cfg.Storage.LocalBaseURL,
		S3Bucket:      cfg.Storage.S3Bucket,
		S3Region:      cfg.Storage.S3Region,
		PublicBaseURL: cfg.Storage.S3PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize media storage: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	flags := features.NewDefaultManager(cfg.Features)
	eventManager := events.NewManager(flags.IsEnabled(features.FeatureEventHooks), logger)
	eventManager.SubscribeLogging(logger)
	defer eventManager.Shutdown()

	clk := clock.System()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.TokenTTL(), clk)

	svc := service.NewService(db, service.Options{
		Clock:        clk,
		Location:     loc,
		Cache:        cache.NewEligibilityCache(backend, cfg.EligibilityCacheTTL(), logger),
		Events:       eventManager,
		Features:     flags,
		Tokens:       tokens,
		Media:        media,
		Logger:       logger,
		QueryTimeout: cfg.QueryTimeout(),
	})

	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize:  cfg.Security.MaxRequestBodySize,
		MaxMediaSize: cfg.Security.MaxMediaSize,
		Logger:       logger,
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware())

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h.Mount(r, tokens)

	if local, ok := media.(*storage.LocalStorage); ok {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(local.Dir()))))
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", addr),
			zap.Bool("tls", cfg.Server.EnableTLS),
			zap.String("database_driver", db.Driver()),
			zap.String("media_backend", cfg.Storage.Backend),
			zap.Bool("redis", cfg.Cache.RedisEnabled),
			zap.String("eligibility_timezone", loc.String()),
		)
		var err error
		if cfg.Server.EnableTLS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
