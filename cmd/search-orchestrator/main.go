// Command search-orchestrator runs the HTTP/WebSocket API for the
// natural-language restaurant search backend: job submission and
// polling, the Realtime Hub, and the Assistant SSE stream.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shacharon/pizza-sub006/pkg/api"
	"github.com/shacharon/pizza-sub006/pkg/assistant"
	"github.com/shacharon/pizza-sub006/pkg/auth"
	"github.com/shacharon/pizza-sub006/pkg/audit"
	"github.com/shacharon/pizza-sub006/pkg/cleanup"
	"github.com/shacharon/pizza-sub006/pkg/config"
	"github.com/shacharon/pizza-sub006/pkg/database"
	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/llm"
	"github.com/shacharon/pizza-sub006/pkg/pipeline"
	"github.com/shacharon/pizza-sub006/pkg/provider"
	"github.com/shacharon/pizza-sub006/pkg/ranking"
	"github.com/shacharon/pizza-sub006/pkg/realtime"
	"github.com/shacharon/pizza-sub006/pkg/slack"

	"github.com/redis/go-redis/v9"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := ranking.ValidateProfiles(); err != nil {
		slog.Error("ranking profile weights failed validation", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbClient, err := wireDatabase(ctx)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = dbClient.Close() }()

	hub := realtime.NewHub(cfg.WSOutboundQueueMax, cfg.WSHeartbeatInterval)
	go hub.RunHeartbeat(ctx)

	store, err := wireJobStore(ctx, cfg, hub)
	if err != nil {
		slog.Error("failed to wire job store", "error", err)
		os.Exit(1)
	}

	llmClient, err := llm.Dial(cfg.LLMGRPCAddr)
	if err != nil {
		slog.Error("failed to dial LLM collaborator", "error", err)
		os.Exit(1)
	}
	defer func() { _ = llmClient.Close() }()

	providerClient := provider.NewClient(provider.Config{
		BaseURL:       getEnv("PLACES_API_BASE_URL", "https://places.example.com"),
		APIKey:        os.Getenv("PLACES_API_KEY"),
		TextSearchTO:  cfg.ProviderTextSearchTimeout,
		NearbyTO:      cfg.ProviderNearbyTimeout,
		FindPlaceTO:   cfg.ProviderFindPlaceTimeout,
		RetryAttempts: cfg.ProviderRetryAttempts,
		RetryBackoff:  cfg.ProviderRetryBackoff,
	})

	auditSink := audit.NewSink(dbClient.DB())

	retention := cleanup.NewService(&cleanup.Config{
		RetentionDays:   getEnvInt("AUDIT_RETENTION_DAYS", 90),
		CleanupInterval: 6 * time.Hour,
	}, auditSink)
	retention.Start(ctx)
	defer retention.Stop()

	var notifier *slack.Service
	if cfg.SlackWebhookURL != "" {
		notifier = slack.NewService(slack.ServiceConfig{
			Token:        os.Getenv("SLACK_BOT_TOKEN"),
			Channel:      os.Getenv("SLACK_CHANNEL"),
			DashboardURL: os.Getenv("DASHBOARD_URL"),
		})
	}

	orchestrator := &pipeline.Orchestrator{
		Store:      store,
		Gate:       &pipeline.LLMGate{Client: llmClient},
		Intent:     &pipeline.LLMIntent{Client: llmClient},
		Route:      pipeline.DeterministicRoute{},
		Provider:   &pipeline.ProviderCallStage{Client: providerClient},
		PostFilter: &pipeline.DeterministicPostFilter{},
		Rank:       &pipeline.DeterministicRank{CuisineEnforcer: cuisineEnforcer{llm: llmClient}},
		Assistant:  &pipeline.BundleAssembler{},
		Publisher:  hub,
		Audit:      auditSink,
		Timeouts:   pipeline.DefaultTimeouts(),
	}
	if notifier != nil {
		orchestrator.OnTerminalFailure = func(requestID, failureReason string) {
			notifier.NotifyJobFailed(context.Background(), slack.JobFailedInput{
				RequestID:     requestID,
				FailureReason: failureReason,
			})
		}
	}

	streamer := &assistant.Streamer{
		Store:        store,
		LLM:          llmClient,
		PollInterval: cfg.AssistantPollInterval,
		Timeout:      cfg.AssistantSSETimeout,
	}

	authService := &auth.Service{
		Backend:      auth.NewStore(7*24*time.Hour, 60*time.Second),
		CookieSecret: cfg.SessionCookieSecret,
		TicketTTL:    60 * time.Second,
	}

	server := api.NewServer(cfg, dbClient, store, orchestrator, hub, streamer, authService)

	go runStaleSweep(ctx, store)

	addr := ":" + cfg.HTTPPort
	slog.Info("starting search orchestrator", "addr", addr)

	srvErr := make(chan error, 1)
	go func() { srvErr <- server.Start(addr) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server exited", "error", err)
		}
	case <-stop:
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}
}

func wireDatabase(ctx context.Context) (*database.Client, error) {
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return database.NewClient(ctx, dbCfg)
}

// wireJobStore picks the Redis backend when REDIS_URL is configured,
// falling back to the in-process Memory store for single-replica runs.
// subs lets the store ask the Realtime Hub whether a request still has
// live subscribers before marking it stale.
func wireJobStore(ctx context.Context, cfg *config.Config, subs jobstore.SubscriberChecker) (jobstore.Store, error) {
	storeCfg := jobstore.Config{
		RunningMaxAge:      cfg.DedupRunningMaxAge,
		SuccessFreshWindow: cfg.DedupSuccessFreshWindow,
		JobTTL:             5 * time.Minute,
		TicketTTL:          cfg.WSHeartbeatInterval,
		SessionTTL:         7 * 24 * time.Hour,
		CandidatePoolTTL:   5 * time.Minute,
	}

	if cfg.RedisURL == "" {
		return jobstore.NewMemory(storeCfg, subs), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return jobstore.NewRedis(client, storeCfg, subs), nil
}

// runStaleSweep periodically lists RUNNING jobs so an operator can see
// reclaim candidates in logs; actual reclaim happens lazily inside
// CreateOrGet's dedup check on the next request for the same key.
func runStaleSweep(ctx context.Context, store jobstore.Store) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobs, err := store.GetRunningJobs(ctx)
			if err != nil {
				slog.Warn("stale sweep: failed to list running jobs", "error", err)
				continue
			}
			if len(jobs) > 0 {
				slog.Debug("running jobs observed", "count", len(jobs))
			}
		}
	}
}

// cuisineEnforcer adapts the llm.Client into ranking.CuisineEnforcer,
// issuing one boost-only scoring call per ranking pass.
type cuisineEnforcer struct{ llm llm.Client }

func (c cuisineEnforcer) Score(cuisineKey string, items []jobstore.ResultItem) (map[string]float64, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.PlaceID
	}
	payload, err := json.Marshal(struct {
		CuisineKey string   `json:"cuisineKey"`
		PlaceIDs   []string `json:"placeIds"`
	}{CuisineKey: cuisineKey, PlaceIDs: ids})
	if err != nil {
		return nil, err
	}

	ch, err := c.llm.Generate(context.Background(), &llm.Request{
		Stage:       llm.StageCuisineEnforcer,
		SchemaName:  "cuisine_enforcer",
		ContextJSON: string(payload),
	})
	if err != nil {
		return nil, err
	}
	result, err := llm.Collect(ch)
	if err != nil {
		return nil, err
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(result), &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

var _ ranking.CuisineEnforcer = cuisineEnforcer{}
