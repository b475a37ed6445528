package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/editorial/common/id"
	"basegraph.app/editorial/common/llm"
	"basegraph.app/editorial/common/logger"
	"basegraph.app/editorial/common/otel"
	"basegraph.app/editorial/core/config"
	"basegraph.app/editorial/core/db"
	"basegraph.app/editorial/internal/assembler"
	"basegraph.app/editorial/internal/engine"
	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/lock"
	"basegraph.app/editorial/internal/memory"
	"basegraph.app/editorial/internal/persona"
	"basegraph.app/editorial/internal/phase"
	"basegraph.app/editorial/internal/queue"
	"basegraph.app/editorial/internal/store"
	"basegraph.app/editorial/internal/tracker"
	"basegraph.app/editorial/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "editorial worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	// Different node id than the server.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	processor, err := newProcessor(cfg, database, redisClient)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build editorial engine", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    1,
		Block:        5 * time.Second,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	w := worker.New(consumer, processor, worker.Config{
		MaxAttempts: cfg.Engine.MaxDeliveryAttempt,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   cfg.Engine.ThreadLockTTL,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.HandleMessage)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Reclaimer first; the worker may be mid-event.
	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

func newProcessor(cfg config.Config, database *db.DB, redisClient *redis.Client) (*engine.Processor, error) {
	catalog, err := persona.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("loading persona catalog: %w", err)
	}
	if cfg.Engine.DefaultPersona != "" && !catalog.Has(cfg.Engine.DefaultPersona) {
		return nil, fmt.Errorf("EDITOR_PERSONA %q is not in the catalog", cfg.Engine.DefaultPersona)
	}

	editorClient, err := llm.NewCompletionClient(llm.Config{
		Provider:  cfg.EditorLLM.Provider,
		APIKey:    cfg.EditorLLM.APIKey,
		BaseURL:   cfg.EditorLLM.BaseURL,
		Model:     cfg.EditorLLM.Model,
		MaxTokens: cfg.EditorLLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating editor llm client: %w", err)
	}

	summarizerClient, err := llm.New(llm.Config{
		Provider:  cfg.SummarizerLLM.Provider,
		APIKey:    cfg.SummarizerLLM.APIKey,
		BaseURL:   cfg.SummarizerLLM.BaseURL,
		Model:     cfg.SummarizerLLM.Model,
		MaxTokens: cfg.SummarizerLLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating summarizer llm client: %w", err)
	}

	gitlab, err := tracker.NewGitLab(cfg.GitLab.BaseURL, cfg.GitLab.Token, cfg.GitLab.BotUsername)
	if err != nil {
		return nil, err
	}

	var rules assembler.RulesSource = assembler.DefaultRules()
	if info, err := os.Stat(cfg.Engine.RulesDir); err == nil && info.IsDir() {
		rules = assembler.NewFileRules(cfg.Engine.RulesDir)
	}

	stores := store.NewStores(database.Pool())
	mem := memory.NewManager(
		memory.NewLLMSummarizer(summarizerClient),
		memory.NewRedisSummaryCache(redisClient, cfg.Engine.SummaryCacheTTL),
		cfg.Engine.RecentTurns,
	)

	return engine.NewProcessor(engine.Config{
		Thresholds: phase.Thresholds{
			MinWords:    cfg.Engine.ReviseMinWords,
			MinChapters: cfg.Engine.ReviseMinChapters,
		},
		EnvPersona: cfg.Engine.DefaultPersona,
		LLMTimeout: cfg.Engine.LLMTimeout,
		LockTTL:    cfg.Engine.ThreadLockTTL,
	}, engine.Deps{
		Source:    gitlab,
		Stores:    stores,
		Tx:        store.NewTxRunner(database),
		Locker:    lock.NewRedis(redisClient),
		Resolver:  persona.NewResolver(catalog, cfg.Engine.IntensityStep),
		Memory:    mem,
		Knowledge: knowledge.NewService(stores, id.Snowflake{}, cfg.Engine.AppendAttempts),
		Assembler: assembler.New(catalog, rules, memory.Budget{MaxOutput: cfg.EditorLLM.MaxTokens}),
		Responder: engine.NewLLMResponder(editorClient, cfg.EditorLLM.MaxTokens),
		Publisher: gitlab,
	}), nil
}

const banner = `
 ___    _ _ _           _      _                        _
| __|__| (_) |_ ___ _ _(_)__ _| |  __ __ _____ _ _| |_____ _ _
| _|/ _' | |  _/ _ \ '_| / _' | |  \ V  V / _ \ '_| / / -_) '_|
|___\__,_|_|\__\___/_| |_\__,_|_|   \_/\_/\___/_| |_\_\___|_|
`
