// Command audit-svc runs the Auditor: taps the raw event and decision
// topics, writes immutable, content-addressed evidence bundles to the
// object store, and appends rows to the Postgres audit index (spec.md
// §4.5). It also serves the query/verify HTTP surface directly (no
// separate read path).
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
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/audit"
	"github.com/enterprise/fraud-pipeline/internal/auth"
	"github.com/enterprise/fraud-pipeline/internal/config"
	"github.com/enterprise/fraud-pipeline/internal/decision"
	"github.com/enterprise/fraud-pipeline/internal/eventlog"
	"github.com/enterprise/fraud-pipeline/internal/httpmw"
	"github.com/enterprise/fraud-pipeline/internal/ingest"
	"github.com/enterprise/fraud-pipeline/internal/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	httpmw.SetupLogging(cfg.Server.Environment)

	log.Info().Str("environment", cfg.Server.Environment).Str("port", cfg.Server.Port).Msg("starting audit-svc")

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to index store")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	objects, err := audit.NewObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to object store")
	}

	index := audit.NewIndexRepository(db)
	auditor := audit.NewAuditor(objects, index)

	producer, err := eventlog.NewProducer(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to event log")
	}
	defer producer.Close()

	txnConsumer, err := eventlog.NewConsumerGroup(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup+"-audit-txn",
		[]string{ingest.TopicEventsTxns},
		audit.IngestTapHandler(auditor, "transaction"), cfg.Kafka.RetryAttempts, producer, cfg.Kafka.DeadLetterFmt, cfg.Kafka.OperationTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start transaction tap consumer group")
	}

	claimConsumer, err := eventlog.NewConsumerGroup(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup+"-audit-claim",
		[]string{ingest.TopicEventsClaims},
		audit.IngestTapHandler(auditor, "claim"), cfg.Kafka.RetryAttempts, producer, cfg.Kafka.DeadLetterFmt, cfg.Kafka.OperationTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start claim tap consumer group")
	}

	decisionConsumer, err := eventlog.NewConsumerGroup(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup+"-audit-decision",
		[]string{decision.TopicAlertsDecisions},
		audit.DecisionTapHandler(auditor), cfg.Kafka.RetryAttempts, producer, cfg.Kafka.DeadLetterFmt, cfg.Kafka.OperationTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start decision tap consumer group")
	}

	consumers := []*eventlog.ConsumerGroup{txnConsumer, claimConsumer, decisionConsumer}
	for _, c := range consumers {
		c := c
		go func() {
			if err := c.Run(ctx); err != nil {
				log.Error().Err(err).Msg("consumer group stopped")
			}
		}()
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret)
	limiter := httpmw.NewRateLimiter(100, time.Minute)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), httpmw.RequestID(), httpmw.Logging(), httpmw.CORS(), httpmw.RateLimit(limiter))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	})

	authenticated := router.Group("/")
	authenticated.Use(auth.AuthMiddleware(jwtManager))
	audit.RegisterRoutes(authenticated, auditor)

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
