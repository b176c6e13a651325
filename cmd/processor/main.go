// cmd/processor/main.go
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

	"go.uber.org/zap"

	"taas-es-processor/internal/aggregate"
	"taas-es-processor/internal/bus"
	"taas-es-processor/internal/common/auth"
	"taas-es-processor/internal/common/config"
	"taas-es-processor/internal/common/database"
	commonhttp "taas-es-processor/internal/common/http"
	"taas-es-processor/internal/common/logger"
	"taas-es-processor/internal/common/notifier"
	"taas-es-processor/internal/common/observability"
	"taas-es-processor/internal/common/rcrm"
	"taas-es-processor/internal/dispatcher"
	"taas-es-processor/internal/events"
	"taas-es-processor/internal/processors"
	"taas-es-processor/internal/retry"
	"taas-es-processor/internal/store"
	"taas-es-processor/internal/supervisor"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.Build(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: cfg.App.Name,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting processor...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("strategy", cfg.Aggregate.Strategy),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	blockTimeout := config.GetDuration(cfg.Bus.BlockTimeout)
	redisClient := database.NewRedis(cfg.Database.Redis, blockTimeout)
	err = retryWithBackoff(func() error {
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	set, err := buildProcessors(ctx, cfg, redisClient, log)
	if err != nil {
		zapLog.Fatal("processor setup failed", zap.Error(err))
	}

	router, err := events.NewRouter(events.Bindings(cfg.Topics), set.Handlers())
	if err != nil {
		zapLog.Fatal("router setup failed", zap.Error(err))
	}

	streams := bus.NewRedisStreams(redisClient.Client, bus.StreamsConfig{
		Group:        cfg.Bus.Group,
		Consumer:     cfg.Bus.Consumer,
		BatchSize:    int64(cfg.Bus.BatchSize),
		BlockTimeout: blockTimeout,
	}, log)

	client := store.NewClient(store.NewESEngine(esClient.Client, cfg.Database.Elasticsearch.Refresh), log)
	d := dispatcher.New(router, client, streams, log, dispatcher.WithObservability(obs))

	pump := retry.NewPump(
		retry.NewRedisQueue(redisClient.Client, cfg.Retry.QueueKey, log),
		streams,
		retry.PumpConfig{
			Topic:        cfg.Topics.ActionRetry,
			Originator:   cfg.App.Originator,
			PollInterval: config.GetDuration(cfg.Retry.PollInterval),
			BatchSize:    cfg.Retry.BatchSize,
		},
		log,
	)

	server := &http.Server{
		Addr: cfg.Metrics.Address,
		Handler: supervisor.NewHTTPHandler(
			supervisor.Check{Name: "elasticsearch", Ping: esClient.Ping},
			supervisor.Check{Name: "redis", Ping: redisClient.Ping},
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	tree := supervisor.NewTree(cfg.App.Name, log, supervisor.DefaultTreeConfig())
	tree.AddPipelineService(supervisor.NewRunnerService("dispatcher", d.Run))
	tree.AddPipelineService(pump)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))

	zapLog.Info("processor started",
		zap.Int("topics", len(router.Topics())),
		zap.String("metricsAddress", cfg.Metrics.Address),
	)

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zapLog.Error("supervisor stopped with error", zap.Error(err))
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		zapLog.Warn("services did not stop in time", zap.Int("count", len(unstopped)))
	}
	zapLog.Info("processor stopped", zap.Int64("handled", d.Handled()))
}

func buildProcessors(ctx context.Context, cfg *config.Config, rdb *database.RedisClient, log logger.Logger) (*processors.Set, error) {
	queue := retry.NewRedisQueue(rdb.Client, cfg.Retry.QueueKey, log)
	scheduler := retry.NewScheduler(queue, cfg.Retry.MaxRetry, config.GetDuration(cfg.Retry.BaseDelay), log)

	notify, err := notifier.New(ctx, cfg.Notifications, log)
	if err != nil {
		return nil, err
	}

	var tokens auth.TokenProvider = auth.StaticToken("")
	if cfg.Auth.M2M.TokenURL != "" {
		tokens = auth.NewM2MClient(
			cfg.Auth.M2M.TokenURL,
			cfg.Auth.M2M.ClientID,
			cfg.Auth.M2M.ClientSecret,
			cfg.Auth.M2M.Audience,
			commonhttp.NewClient(config.GetDuration(cfg.Notifications.Timeout)),
		)
	}

	var crm processors.JobSyncer
	if cfg.RCRM.Enabled() {
		crm = rcrm.NewCRMClient(cfg.RCRM, commonhttp.NewClient(config.GetDuration(cfg.RCRM.Timeout)))
	}

	return processors.NewSet(processors.Deps{
		Config:     cfg,
		Maintainer: aggregate.NewMaintainer(aggregate.Strategy(cfg.Aggregate.Strategy), log),
		Scheduler:  scheduler,
		Notifier:   notify,
		Tokens:     tokens,
		CRM:        crm,
		Logger:     log,
	})
}
