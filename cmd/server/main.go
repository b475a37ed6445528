package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"basegraph.app/editorial/common/id"
	"basegraph.app/editorial/common/logger"
	"basegraph.app/editorial/common/otel"
	"basegraph.app/editorial/core/config"
	"basegraph.app/editorial/core/db"
	"basegraph.app/editorial/internal/http/middleware"
	httprouter "basegraph.app/editorial/internal/http/router"
	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/persona"
	"basegraph.app/editorial/internal/queue"
	"basegraph.app/editorial/internal/service"
	"basegraph.app/editorial/internal/store"
	"basegraph.app/editorial/internal/tracker"
)

const (
	dedupePrefix    = "editorial:dedupe:"
	shutdownTimeout = 10 * time.Second
)

func main() {
	fmt.Printf("%s\n", banner)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.ErrorContext(ctx, "editorial server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The production log handler exports through the otel provider.
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		return fmt.Errorf("initializing otel: %w", err)
	}
	logger.Setup(cfg)
	slog.InfoContext(ctx, "editorial server starting",
		"env", cfg.Env,
		"service", cfg.OTel.ServiceName,
		"otel", telemetry != nil)

	if err := id.Init(1); err != nil {
		return fmt.Errorf("initializing snowflake ids: %w", err)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	redisClient, err := connectRedis(ctx, cfg.Pipeline.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	defer producer.Close()

	catalog, err := persona.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("loading persona catalog: %w", err)
	}

	stores := store.NewStores(database.Pool())
	services := service.NewServices(
		stores,
		catalog,
		knowledge.NewService(stores, id.Snowflake{}, cfg.Engine.AppendAttempts),
		id.Snowflake{},
		service.NewRedisDeduper(redisClient, dedupePrefix),
		producer,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(cfg, services),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.InfoContext(gctx, "http server listening", "port", cfg.Port, "stream", cfg.Pipeline.RedisStream)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
		}
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	slog.InfoContext(ctx, "shutdown complete")
	return err
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// otelgin first so Recovery and Logger see the request span.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	routerCfg := httprouter.RouterConfig{
		TraceHeaderName: cfg.Pipeline.TraceHeaderName,
		AdminAPIKey:     cfg.AdminAPIKey,
		DefaultPersona:  cfg.Engine.DefaultPersona,
	}
	if routerCfg.DefaultPersona == "" {
		routerCfg.DefaultPersona = persona.SystemDefault
	}
	if cfg.GitLab.WebhookSecret != "" {
		routerCfg.Webhook = tracker.NewWebhookParser(cfg.GitLab.WebhookSecret, cfg.GitLab.BotUsername)
	}

	httprouter.SetupRoutes(router, services, routerCfg)

	return router
}

const banner = `
 ___    _ _ _           _      _
| __|__| (_) |_ ___ _ _(_)__ _| |   ___ ___ _ ___ _____ _ _
| _|/ _' | |  _/ _ \ '_| / _' | |  (_-</ -_) '_\ V / -_) '_|
|___\__,_|_|\__\___/_| |_\__,_|_|  /__/\___|_|  \_/\___|_|
`
