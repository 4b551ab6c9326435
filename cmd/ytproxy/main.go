package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ytproxy/internal/config"
	dbRedis "github.com/kailas-cloud/ytproxy/internal/db/redis"
	"github.com/kailas-cloud/ytproxy/internal/keypool"
	logpkg "github.com/kailas-cloud/ytproxy/internal/logger"
	"github.com/kailas-cloud/ytproxy/internal/metrics"
	"github.com/kailas-cloud/ytproxy/internal/repository/respcache"
	youtuberepo "github.com/kailas-cloud/ytproxy/internal/repository/youtube"
	"github.com/kailas-cloud/ytproxy/internal/scheduler"
	chiTransport "github.com/kailas-cloud/ytproxy/internal/transport/chi"
	"github.com/kailas-cloud/ytproxy/internal/upstream"
	healthuc "github.com/kailas-cloud/ytproxy/internal/usecase/health"
	mediauc "github.com/kailas-cloud/ytproxy/internal/usecase/media"
	usageuc "github.com/kailas-cloud/ytproxy/internal/usecase/usage"
	"github.com/kailas-cloud/ytproxy/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ytproxy",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Int("keys", len(cfg.Upstream.Keys)),
		zap.String("reset_at_utc", cfg.Reset.At),
		zap.Bool("cache", cfg.Cache.Enabled),
	)

	pool, err := keypool.New(cfg.Upstream.Keys, cfg.Upstream.DefaultQuota, logger.Named("keypool"))
	if err != nil {
		logger.Fatal("Invalid key pool", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.Register(prometheus.DefaultRegisterer)
	prometheus.MustRegister(metrics.NewKeyPoolCollector(pool))

	httpClient, err := upstream.NewHTTPClient(upstream.ClientConfig{
		ConnectTimeout: time.Duration(cfg.Upstream.ConnectTimeoutSec) * time.Second,
		Timeout:        time.Duration(cfg.Upstream.RequestTimeoutSec) * time.Second,
		ProxyURL:       cfg.Upstream.ProxyURL,
		NoProxy:        cfg.Upstream.NoProxy,
	})
	if err != nil {
		logger.Fatal("Invalid upstream client settings", zap.Error(err))
	}

	dispatcher := upstream.NewDispatcher(pool, httpClient, cfg.Upstream.BaseURL, logger.Named("upstream")).
		WithQuotaExceededStatuses(cfg.Upstream.QuotaExceededStatuses...)

	// Optional response cache. Pass a nil interface (not a typed nil pointer) to health when disabled.
	var cachePinger healthuc.CachePinger
	cacheTTL := time.Duration(0)
	if cfg.Cache.Enabled {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		readyCtx := context.Background()
		if err := store.WaitForReady(readyCtx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))

		dispatcher.WithCache(respcache.New(store, metrics.ResponseCacheTotal, logger.Named("respcache")))
		cachePinger = store
		cacheTTL = time.Duration(cfg.Cache.TTLSec) * time.Second
	}

	// Daily budget reset
	hour, minute, err := cfg.Reset.Clock()
	if err != nil {
		logger.Fatal("Invalid reset time", zap.Error(err))
	}
	resetter, err := scheduler.New(pool, hour, minute, logger.Named("scheduler"))
	if err != nil {
		logger.Fatal("Invalid reset schedule", zap.Error(err))
	}
	resetter.OnReset(func(time.Time) { metrics.QuotaResetsTotal.Inc() })

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go resetter.Run(schedCtx)

	// Repositories and use cases
	ytRepo := youtuberepo.New(dispatcher, youtuberepo.Costs{
		Search:       cfg.Upstream.Costs.Search,
		Single:       cfg.Upstream.Costs.Single,
		PlaylistPage: cfg.Upstream.Costs.PlaylistPage,
	}).WithCacheTTL(cacheTTL)

	mediaSvc := mediauc.New(ytRepo)
	usageSvc := usageuc.New(pool, resetter)
	healthSvc := healthuc.New(pool, cachePinger)

	server := chiTransport.NewServer(mediaSvc, usageSvc, healthSvc, logger)

	clientKeys := cfg.Auth.APIKeys
	if cfg.Auth.Disabled {
		logger.Warn("Client authentication disabled by config")
		clientKeys = nil
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.APIKeyMiddleware(clientKeys))
	r.Use(metrics.Middleware())
	chiTransport.HandlerWithOptions(server, chiTransport.ChiServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
				Code:    chiTransport.ErrorCodeBadRequest,
				Message: err.Error(),
			})
		},
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr), zap.Time("next_reset", resetter.NextRun()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger; the upstream dispatcher picks it up from the context
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", redactQuery(r)),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

// redactQuery drops credentials a client may have put in the query string.
func redactQuery(r *http.Request) string {
	q := r.URL.Query()
	for _, k := range []string{"key", "api_key"} {
		if q.Has(k) {
			q.Set(k, "****")
		}
	}
	return q.Encode()
}
