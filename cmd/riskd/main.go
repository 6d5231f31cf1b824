package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"

	"klendrisk/native/lending"
	"klendrisk/observability"
	"klendrisk/observability/logging"
	telemetry "klendrisk/observability/otel"
	"klendrisk/services/riskd/config"
	"klendrisk/services/riskd/middleware"
	"klendrisk/services/riskd/registry"
	"klendrisk/services/riskd/rpc"
	"klendrisk/services/riskd/server"
	"klendrisk/services/riskd/storage"
)

const limiterIdle = 10 * time.Minute

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/riskd/config.yaml", "path to riskd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(logging.Options{
		Service:     cfg.Observability.ServiceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})

	if cfg.Observability.Tracing || cfg.Observability.Metrics {
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.FromEnv(telemetry.Config{
			ServiceName: cfg.Observability.ServiceName,
			Environment: cfg.Environment,
			Insecure:    true,
			Metrics:     cfg.Observability.Metrics,
			Traces:      cfg.Observability.Tracing,
		}, os.LookupEnv))
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	var store *storage.Store
	if cfg.Storage.Driver != "" {
		store, err = storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			log.Fatalf("open storage: %v", err)
		}
		defer store.Close()
	}

	engineMetrics := observability.Engine()
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    cfg.Auth.Enabled,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ScopeClaim: cfg.Auth.ScopeClaim,
		ClockSkew:  cfg.Auth.ClockSkew,
	}, logger)
	auth.OnDenied(func(reason string) {
		engineMetrics.RecordThrottle("snapshots", reason)
	})

	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for _, name := range cfg.RateLimitNames() {
		limit := cfg.RateLimits[name]
		limits[name] = middleware.RateLimit{RequestsPerMinute: limit.RequestsPerMinute, Burst: limit.Burst}
	}
	limiter := middleware.NewRateLimiter(limits)
	limiter.OnThrottle(func(group string) {
		engineMetrics.RecordThrottle(group, "rate_limited")
	})

	reg := registry.New()
	engine := lending.NewEngine()
	engine.SetObserver(engineMetrics)
	engineCfg := cfg.Engine
	srv := server.New(server.Options{
		Engine:       engine,
		EngineConfig: &engineCfg,
		Registry:     reg,
		Store:        store,
		Logger:       logger,
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName:   cfg.Observability.ServiceName,
			MetricsPrefix: cfg.Observability.MetricsPrefix,
			LogRequests:   cfg.Observability.LogRequests,
			Enabled:       true,
		}, logger),
		Auth:        auth,
		Limiter:     limiter,
		WriteScope:  cfg.Auth.WriteScope,
		CORSOrigins: cfg.CORS.AllowedOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	restored, err := srv.Restore(ctx)
	if err != nil {
		log.Fatalf("restore snapshots: %v", err)
	}
	if restored > 0 {
		logger.Info("restored snapshots", slog.Int("count", restored))
	}
	for _, path := range cfg.Snapshots {
		if _, err := srv.LoadFile(ctx, path); err != nil {
			log.Fatalf("load snapshot %s: %v", path, err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           otelhttp.NewHandler(srv.Handler(), "riskd"),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("riskd listening", slog.String("address", cfg.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCListen != "" {
		listener, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			log.Fatalf("listen on %s: %v", cfg.GRPCListen, err)
		}
		grpcServer = rpc.NewServer(rpc.New(engine, reg, logger), logger)
		go func() {
			logger.Info("riskd gRPC listening", slog.String("address", cfg.GRPCListen))
			serverErr <- grpcServer.Serve(listener)
		}()
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep(limiterIdle)
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", slog.Any("error", err))
	}
	if grpcServer != nil {
		done := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("forcing gRPC stop")
			grpcServer.Stop()
		}
	}
}
