// Command monitor-svc runs the Monitor: taps features.online.v1,
// alerts.scores.v1, and alerts.decisions.v1 off the hot path to compute
// PSI drift, Brier calibration, throughput, and latency, exposed as
// pull-based Prometheus metrics (spec.md §4.6).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/audit"
	"github.com/enterprise/fraud-pipeline/internal/config"
	"github.com/enterprise/fraud-pipeline/internal/decision"
	"github.com/enterprise/fraud-pipeline/internal/eventlog"
	"github.com/enterprise/fraud-pipeline/internal/features"
	"github.com/enterprise/fraud-pipeline/internal/httpmw"
	"github.com/enterprise/fraud-pipeline/internal/monitor"
	"github.com/enterprise/fraud-pipeline/internal/postgres"
	"github.com/enterprise/fraud-pipeline/internal/scoring"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	httpmw.SetupLogging(cfg.Server.Environment)

	log.Info().Str("environment", cfg.Server.Environment).Str("port", cfg.Server.Port).Msg("starting monitor-svc")

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to index store")
	}
	defer db.Close()
	index := audit.NewIndexRepository(db)

	producer, err := eventlog.NewProducer(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to event log")
	}
	defer producer.Close()

	registry := prometheus.NewRegistry()
	tracker := monitor.NewTracker(registry, cfg.Policy, index)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	featureConsumer, err := eventlog.NewConsumerGroup(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup+"-monitor-features",
		[]string{features.TopicFeaturesOnline},
		monitor.FeatureTapHandler(tracker), cfg.Kafka.RetryAttempts, producer, cfg.Kafka.DeadLetterFmt, cfg.Kafka.OperationTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start feature tap consumer group")
	}

	scoreConsumer, err := eventlog.NewConsumerGroup(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup+"-monitor-scores",
		[]string{scoring.TopicAlertsScores},
		monitor.ScoreTapHandler(tracker), cfg.Kafka.RetryAttempts, producer, cfg.Kafka.DeadLetterFmt, cfg.Kafka.OperationTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start score tap consumer group")
	}

	decisionConsumer, err := eventlog.NewConsumerGroup(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup+"-monitor-decisions",
		[]string{decision.TopicAlertsDecisions},
		monitor.DecisionTapHandler(tracker), cfg.Kafka.RetryAttempts, producer, cfg.Kafka.DeadLetterFmt, cfg.Kafka.OperationTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start decision tap consumer group")
	}

	consumers := []*eventlog.ConsumerGroup{featureConsumer, scoreConsumer, decisionConsumer}
	for _, c := range consumers {
		c := c
		go func() {
			if err := c.Run(ctx); err != nil {
				log.Error().Err(err).Msg("consumer group stopped")
			}
		}()
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), httpmw.RequestID(), httpmw.Logging(), httpmw.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	})

	monitor.RegisterRoutes(router, tracker, registry)

	runAndWait(router, cfg.Server, cancel, consumers)
}

func runAndWait(router *gin.Engine, sc config.ServerConfig, cancel context.CancelFunc, consumers []*eventlog.ConsumerGroup) {
	srv := &http.Server{
		Addr:         ":" + sc.Port,
		Handler:      router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
	}

	go func() {
		log.Info().Str("port", sc.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	ctx, done := context.WithTimeout(context.Background(), 30*time.Second)
	defer done()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	for _, c := range consumers {
		_ = c.Close()
	}
	log.Info().Msg("exited")
}
