// Command worker runs the Orchestrator Worker: a pool of concurrent tasks
// draining queued Jobs, driving the ReAct loop, and finalizing Turns, plus
// the Reconciler that requeues jobs stranded by a crashed worker
// (spec.md §4.2, §5, §8 scenario 5).
//
// # Configuration
//
// Environment variables:
//
//	MONGO_URI              - MongoDB connection URI (default: "mongodb://localhost:27017")
//	MONGO_DATABASE         - MongoDB database name (default: "rca")
//	REDIS_ADDR             - Redis address backing Pulse streams (default: "localhost:6379")
//	REDIS_PASSWORD         - Redis password (optional)
//	PLATFORM_ANTHROPIC_KEY - API key for the operator-provided default LLM (domain.LLMPlatform workspaces)
//	PLATFORM_DEFAULT_MODEL - Default model id for PLATFORM_ANTHROPIC_KEY (default: "claude-sonnet-4-5")
//	PLATFORM_MAX_TOKENS    - Max output tokens for the platform LLM (default: 4096)
//	WORKER_CONCURRENCY     - Concurrent jobs processed at once (default: 4)
//	RECONCILER_INTERVAL    - How often the reconciler scans for stale jobs (default: "30s")
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	pulseclient "github.com/akshatgg/vibe-monitor-back/features/pulse"
	modelresolver "github.com/akshatgg/vibe-monitor-back/features/model"
	queuepulse "github.com/akshatgg/vibe-monitor-back/features/queue/pulse"
	"github.com/akshatgg/vibe-monitor-back/features/provider"
	"github.com/akshatgg/vibe-monitor-back/features/provider/cloudwatch"
	"github.com/akshatgg/vibe-monitor-back/features/provider/github"
	"github.com/akshatgg/vibe-monitor-back/features/provider/prometheus"
	"github.com/akshatgg/vibe-monitor-back/features/store/mongo"
	streampulse "github.com/akshatgg/vibe-monitor-back/features/stream/pulse"
	"github.com/akshatgg/vibe-monitor-back/features/tools"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/cmdutil"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/telemetry"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/worker"
)

const systemPrompt = `You are an on-call root-cause-analysis assistant. You
investigate production incidents using the logs, metrics, and code-search
tools available to you. Be precise, cite what you observed from each tool
call, and state your conclusion clearly once you have enough evidence.`

func main() {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	if err := run(ctx); err != nil {
		log.Fatal(ctx, err)
	}
}

func run(ctx context.Context) error {
	mongoURI := cmdutil.EnvOr("MONGO_URI", "mongodb://localhost:27017")
	mongoDB := cmdutil.EnvOr("MONGO_DATABASE", "rca")
	redisAddr := cmdutil.EnvOr("REDIS_ADDR", "localhost:6379")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	concurrency := cmdutil.EnvIntOr("WORKER_CONCURRENCY", 4)
	reconcilerInterval := cmdutil.EnvDurationOr("RECONCILER_INTERVAL", 30*time.Second)

	mongoClient, err := mongodriver.Connect(options.Client().ApplyURI(mongoURI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() { _ = mongoClient.Disconnect() }()

	store, err := mongo.New(ctx, mongo.Options{Client: mongoClient, Database: mongoDB})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, Password: redisPassword})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	pulse, err := pulseclient.New(pulseclient.Options{Redis: rdb})
	if err != nil {
		return fmt.Errorf("init pulse client: %w", err)
	}
	defer func() { _ = pulse.Close(ctx) }()

	jobQueue, err := queuepulse.New(ctx, queuepulse.Options{Client: pulse})
	if err != nil {
		return fmt.Errorf("init job queue: %w", err)
	}
	bus := streampulse.New(pulse)

	logger := telemetry.NewClueLogger()

	registry := provider.New(store,
		cloudwatch.NewOpener(store),
		prometheus.NewOpener(store),
		github.NewOpener(store),
	)

	models := &modelresolver.Resolver{
		Platform: modelresolver.PlatformConfig{
			APIKey:       os.Getenv("PLATFORM_ANTHROPIC_KEY"),
			DefaultModel: cmdutil.EnvOr("PLATFORM_DEFAULT_MODEL", "claude-sonnet-4-5"),
			MaxTokens:    cmdutil.EnvIntOr("PLATFORM_MAX_TOKENS", 4096),
		},
	}

	cfg := worker.DefaultConfig()
	cfg.Concurrency = concurrency

	pool := &worker.Pool{
		Config:       cfg,
		Jobs:         store,
		Turns:        store,
		LLMConfig:    store,
		Providers:    registry,
		Queue:        jobQueue,
		Bus:          bus,
		Models:       models,
		ToolSet:      tools.NewBuilder(),
		SystemPrompt: systemPrompt,
		Logger:       logger,
		Metrics:      telemetry.NewClueMetrics("rca_worker"),
	}

	reconciler := &worker.Reconciler{
		Jobs:              store,
		Turns:             store,
		Queue:             jobQueue,
		MaxTurnDuration:   cfg.MaxTurnDuration,
		Interval:          reconcilerInterval,
		DefaultMaxRetries: cfg.DefaultMaxRetries,
		Logger:            logger,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go reconciler.Run(runCtx)

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		log.Printf(ctx, "worker pool running (concurrency=%d)", cfg.Concurrency)
		errc <- pool.Run(runCtx)
	}()

	log.Printf(ctx, "exiting (%v)", <-errc)
	cancel()
	return nil
}
