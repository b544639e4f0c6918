// Command api runs the Chat API HTTP server: admission (POST /chat), Turn
// streaming/CRUD, and session CRUD, per spec.md §4.1/§4.6.
//
// # Configuration
//
// Environment variables:
//
//	API_ADDR               - HTTP listen address (default: ":8080")
//	MONGO_URI              - MongoDB connection URI (default: "mongodb://localhost:27017")
//	MONGO_DATABASE         - MongoDB database name (default: "rca")
//	REDIS_ADDR             - Redis address backing Pulse streams (default: "localhost:6379")
//	REDIS_PASSWORD         - Redis password (optional)
//	PLATFORM_ANTHROPIC_KEY - API key for the operator-provided default LLM (Prompt Guard's classifier call)
//	DAILY_RCA_LIMIT        - Default daily admission quota per workspace (default: 50)
//	SHUTDOWN_TIMEOUT       - Grace period for in-flight requests on shutdown (default: "15s")
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	pulseclient "github.com/akshatgg/vibe-monitor-back/features/pulse"
	"github.com/akshatgg/vibe-monitor-back/features/httpapi"
	"github.com/akshatgg/vibe-monitor-back/features/model/anthropic"
	queuepulse "github.com/akshatgg/vibe-monitor-back/features/queue/pulse"
	"github.com/akshatgg/vibe-monitor-back/features/policy/guard"
	"github.com/akshatgg/vibe-monitor-back/features/policy/quota"
	"github.com/akshatgg/vibe-monitor-back/features/store/mongo"
	streampulse "github.com/akshatgg/vibe-monitor-back/features/stream/pulse"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/chatapi"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/cmdutil"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/policy"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/telemetry"
)

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
	addr := cmdutil.EnvOr("API_ADDR", ":8080")
	mongoURI := cmdutil.EnvOr("MONGO_URI", "mongodb://localhost:27017")
	mongoDB := cmdutil.EnvOr("MONGO_DATABASE", "rca")
	redisAddr := cmdutil.EnvOr("REDIS_ADDR", "localhost:6379")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	dailyLimit := cmdutil.EnvInt64Or("DAILY_RCA_LIMIT", 50)
	shutdownTimeout := cmdutil.EnvDurationOr("SHUTDOWN_TIMEOUT", 15*time.Second)

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

	// promptGuard stays a nil policy.PromptGuard (not a typed-nil *guard.Guard)
	// when no classifier key is configured, so chatapi.Service's "Guard != nil"
	// check behaves correctly.
	var promptGuard policy.PromptGuard
	if key := os.Getenv("PLATFORM_ANTHROPIC_KEY"); key != "" {
		classifier, err := anthropic.NewFromAPIKey(key, "claude-3-5-haiku-latest", 256)
		if err != nil {
			return fmt.Errorf("init prompt guard classifier: %w", err)
		}
		promptGuard = guard.New(guard.Options{Client: classifier})
	} else {
		log.Print(ctx, log.KV{K: "warn", V: "PLATFORM_ANTHROPIC_KEY unset, prompt guard disabled"})
	}

	quotaGate := quota.New(store, func(string) int64 { return dailyLimit })

	svc := &chatapi.Service{
		Sessions:   store,
		Turns:      store,
		Jobs:       store,
		Security:   store,
		LLMConfigs: store,
		Guard:      promptGuard,
		Quota:      quotaGate,
		Queue:      jobQueue,
		Bus:        bus,
		DailyLimit: func(string) int64 { return dailyLimit },
		Logger:     logger,
	}

	srv := httpapi.New(svc, store, logger)
	httpServer := &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		log.Printf(ctx, "chat api listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	log.Printf(ctx, "exiting (%v)", <-errc)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
