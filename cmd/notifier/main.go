// cmd/notifier/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"gaia-notifier/internal/common/aws"
	"gaia-notifier/internal/common/config"
	"gaia-notifier/internal/common/database"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/common/observability"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/audience"
	"gaia-notifier/internal/notifier/dispatch"
	"gaia-notifier/internal/notifier/render"
	"gaia-notifier/internal/notifier/window"
	"gaia-notifier/internal/store"
)

// sweepHorizon is how far past a root's end time the sweep keeps evaluating
// it, so after-the-fact triggers (job end, photos available) still fire.
const sweepHorizon = 14 * 24 * time.Hour

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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notifier...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name, os.Getenv("JAEGER_COLLECTOR_ENDPOINT"))
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
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

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch audit mirror (optional) ---
	var audit *store.AuditIndexer
	if cfg.Audit.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		audit = store.NewAuditIndexer(esClient.Client, cfg.Audit.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init delivery clients ---
	var sesClient *aws.SESClient
	if cfg.Channels.Email.Enabled {
		sesClient, err = aws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
	}

	var snsClient *aws.SNSClient
	if cfg.Channels.SMS.Enabled {
		snsClient, err = aws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
	}

	var slackClient *slack.Client
	if cfg.Channels.Chat.Enabled {
		slackClient = slack.New(cfg.Slack.Token)
	}
	zapLog.Info("Delivery clients initialized")

	// --- Wire the engine ---
	st := store.New(pg.DB, audit, log)
	graph := store.NewGraph(pg.DB)
	locker := store.NewScheduleLocker(rdb.Client, config.GetDuration(cfg.Dispatch.LockTTL), log)

	factory := &connectorFactory{
		cfg:   cfg,
		ses:   sesClient,
		sns:   snsClient,
		slack: slackClient,
		log:   log,
	}

	dispatcher := dispatch.New(dispatch.Config{
		Evaluator:  window.New(window.SystemClock{}),
		Resolver:   audience.New(graph),
		Engine:     render.NewFileEngine(cfg.Dispatch.TemplateRoot),
		Connectors: factory,
		Store:      st,
		Locker:     locker,
		PoolSize:   cfg.Dispatch.PoolSize,
		Logger:     log,
	})

	sweeper := &sweeper{
		store:      st,
		graph:      graph,
		dispatcher: dispatcher,
		obs:        obs,
		log:        log,
	}

	// --- Recurrence sweep ---
	c := cron.New()
	if _, err := c.AddFunc(cfg.Dispatch.SweepSpec, func() { sweeper.run(ctx) }); err != nil {
		zapLog.Fatal("invalid sweep spec", zap.Error(err), zap.String("spec", cfg.Dispatch.SweepSpec))
	}
	c.Start()
	zapLog.Info("Recurrence sweep scheduled", zap.String("spec", cfg.Dispatch.SweepSpec))

	// One sweep immediately on boot so a restart does not wait a full period.
	go sweeper.run(ctx)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping sweep...")
	cronCtx := c.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		zapLog.Warn("sweep did not drain in time")
	}

	zapLog.Info("Notifier stopped gracefully")
}

// sweeper evaluates every active schedule against every live root entity of
// its trigger type.
type sweeper struct {
	store      *store.Store
	graph      *store.Graph
	dispatcher *dispatch.Dispatcher
	obs        *observability.Observability
	log        logger.Logger
}

func (s *sweeper) run(ctx context.Context) {
	ctx, end := s.obs.StartSpan(ctx, "sweep")
	defer end()

	schedules, err := s.store.ListActiveSchedules(ctx)
	if err != nil {
		s.log.WithError(err).Error("sweep: failed to list schedules", nil)
		return
	}
	if len(schedules) == 0 {
		return
	}

	jobs, err := s.graph.UpcomingJobs(ctx, sweepHorizon)
	if err != nil {
		s.log.WithError(err).Error("sweep: failed to load jobs", nil)
		return
	}
	groups, err := s.graph.ActiveSubjectGroups(ctx, sweepHorizon)
	if err != nil {
		s.log.WithError(err).Error("sweep: failed to load subject groups", nil)
		return
	}

	for _, sched := range schedules {
		switch sched.TriggerType {
		case models.TriggerJob:
			for _, job := range jobs {
				s.dispatchOne(ctx, sched, models.Root{Job: job})
				if !sched.Active {
					break
				}
			}
		case models.TriggerSubjectGroup:
			for _, sg := range groups {
				s.dispatchOne(ctx, sched, models.Root{SubjectGroup: sg})
				if !sched.Active {
					break
				}
			}
		}
	}
}

func (s *sweeper) dispatchOne(ctx context.Context, sched *models.Schedule, root models.Root) {
	started := time.Now()
	result, err := s.dispatcher.Dispatch(ctx, sched, root)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		s.log.WithError(err).Error("dispatch failed", map[string]interface{}{
			"scheduleId": sched.ID,
		})
	case result.Skipped:
		outcome = "skipped"
	case !result.Eligible:
		outcome = "ineligible"
	}
	s.obs.RecordDispatch(ctx, outcome)
	s.obs.RecordDispatchDuration(ctx, time.Since(started), outcome)
}
