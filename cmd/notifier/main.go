// cmd/notifier/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"candidate-notifier/internal/api"
	"candidate-notifier/internal/common/admission"
	awsclient "candidate-notifier/internal/common/aws"
	"candidate-notifier/internal/common/config"
	"candidate-notifier/internal/common/database"
	apphttp "candidate-notifier/internal/common/http"
	"candidate-notifier/internal/common/logger"
	"candidate-notifier/internal/common/metrics"
	"candidate-notifier/internal/common/observability"
	"candidate-notifier/internal/store"

	sn "candidate-notifier/internal/workers/application/send-notification"
	es "candidate-notifier/internal/workers/communication/email-send"
	ss "candidate-notifier/internal/workers/communication/sms-send"
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

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := loadConfig()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(zap.String("service", cfg.App.Name))
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting candidate notifier...",
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("email", cfg.Notifications.Email.Enabled),
		zap.Bool("sms", cfg.Notifications.SMS.Enabled),
	)
	if cfg.Webhook.Secret == "" {
		zapLog.Warn("webhook secret is not configured, /webhook endpoints accept unauthenticated requests")
	}

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}

	ctx := context.Background()

	providerTimeout := config.GetDuration(max(cfg.Notifications.Email.Timeout, cfg.Notifications.SMS.Timeout))
	httpClient := apphttp.NewClient(providerTimeout + 5*time.Second)

	// --- Record store ---
	var recordStore store.Store
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		zapLog.Warn("using in-memory record store, notification marks are not persisted")
		recordStore = store.NewMemoryStore()
	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		recordStore = store.NewPostgresStore(
			pg.DB,
			store.TablesFromConfig(cfg.Store),
			cfg.Store.ScoreScale,
			config.GetDuration(cfg.Store.QueryTimeout),
		)
	}

	// --- Optional run lock ---
	var locker store.RunLocker
	if cfg.Database.Redis.Enabled() {
		rc := database.NewRedis(cfg.Database.Redis)
		defer rc.Close()

		err = retryWithBackoff(func() error {
			return rc.Ping(ctx)
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unreachable, run lock will fail open until it recovers", zap.Error(err))
		} else {
			zapLog.Info("Redis connected successfully")
		}
		locker = store.NewRedisRunLocker(rc.Client, config.GetDuration(cfg.Database.Redis.LockTTL))
	}

	// --- Optional outcome journal ---
	var journal store.Journal = store.NopJournal{}
	if cfg.Database.Elasticsearch.Enabled() {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch, httpClient.Transport())
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		if err := esClient.Ping(ctx); err != nil {
			zapLog.Warn("elasticsearch unreachable, outcomes will be logged only", zap.Error(err))
		} else {
			zapLog.Info("Elasticsearch connected successfully")
		}
		journal = store.NewElasticsearchJournal(esClient.Client, cfg.Database.Elasticsearch.Index)
	}

	// --- Channel senders ---
	needsAWS := cfg.Notifications.SMS.Enabled ||
		(cfg.Notifications.Email.Enabled && cfg.Notifications.Email.Provider == config.EmailProviderSES)

	var emailSender, smsSender sn.Sender
	if needsAWS {
		awsCfg, err := awsclient.LoadConfig(ctx, awsclient.Options{
			Region:     cfg.Notifications.AWS.Region,
			Endpoint:   cfg.Notifications.AWS.Endpoint,
			HTTPClient: httpClient,
		})
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}

		if cfg.Notifications.SMS.Enabled {
			svc, err := ss.NewService(ss.ServiceDependencies{
				Logger: log,
				SNS:    awsclient.NewSNSClient(awsCfg),
			}, ss.NewConfig(cfg))
			if err != nil {
				zapLog.Fatal("sms sender init failed", zap.Error(err))
			}
			smsSender = svc
		}

		if cfg.Notifications.Email.Enabled && cfg.Notifications.Email.Provider == config.EmailProviderSES {
			svc, err := es.NewService(es.ServiceDependencies{
				Logger: log,
				SES:    awsclient.NewSESClient(awsCfg),
			}, es.NewConfig(cfg))
			if err != nil {
				zapLog.Fatal("email sender init failed", zap.Error(err))
			}
			emailSender = svc
		}
	}
	if cfg.Notifications.Email.Enabled && cfg.Notifications.Email.Provider == config.EmailProviderSMTP {
		svc, err := es.NewService(es.ServiceDependencies{Logger: log}, es.NewConfig(cfg))
		if err != nil {
			zapLog.Fatal("email sender init failed", zap.Error(err))
		}
		emailSender = svc
	}

	// --- Orchestration ---
	gate := admission.New(cfg.Notifications.Concurrency)

	handler, err := sn.NewHandler(sn.NewConfig(cfg), sn.Dependencies{
		Store:         recordStore,
		Gate:          gate,
		Locker:        locker,
		Journal:       journal,
		EmailSender:   emailSender,
		SMSSender:     smsSender,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("orchestrator init failed", zap.Error(err))
	}

	dispatcher := sn.NewDispatcher(handler,
		cfg.Notifications.Concurrency+cfg.Notifications.QueueSize,
		log,
		sn.WithOnClose(gate.Close),
	)

	metrics.RegisterRuntimeGauges(prometheus.DefaultRegisterer,
		func() (int, int) {
			stats := gate.Stats()
			return stats.Active, stats.Waiting
		},
		dispatcher.Pending,
	)

	// --- HTTP ---
	server, err := api.New(api.Options{
		Service:        cfg.App.Name,
		Version:        cfg.App.Version,
		WebhookSecret:  cfg.Webhook.Secret,
		MonitoredTable: cfg.Webhook.MonitoredTable,
		Tables:         store.TablesFromConfig(cfg.Store),
		Features: api.Features{
			Store:         recordStore != nil,
			StoreDriver:   cfg.Store.Driver,
			Email:         emailSender != nil,
			SMS:           smsSender != nil,
			WebhookSecret: cfg.Webhook.Secret != "",
			RunLock:       locker != nil,
			Journal:       cfg.Database.Elasticsearch.Enabled(),
		},
	}, api.Dependencies{
		Dispatcher: dispatcher,
		Admission:  gate,
		Store:      recordStore,
		Logger:     log,
	})
	if err != nil {
		zapLog.Fatal("http server init failed", zap.Error(err))
	}

	// --- Graceful Shutdown ---
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	grace := config.GetDuration(cfg.Server.ShutdownGracePeriod)
	if err := server.Run(sigCtx, cfg.Server.Address, config.GetDuration(cfg.Server.ReadHeaderTimeout), grace); err != nil {
		zapLog.Error("http server stopped with error", zap.Error(err))
	}

	zapLog.Info("Shutdown signal received, draining notification runs...",
		zap.Int("pending", dispatcher.Pending()),
	)
	drainCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		zapLog.Warn("in-flight runs cancelled after grace period", zap.Error(err))
	}

	if err := obs.Shutdown(context.Background()); err != nil {
		zapLog.Warn("otel shutdown failed", zap.Error(err))
	}

	zapLog.Info("Candidate notifier stopped")
}
