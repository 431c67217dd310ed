// Command decision-svc runs the Decision Engine: evaluates a versioned
// policy plus watchlist/velocity/graph side signals against each score
// record and publishes the resulting action to alerts.decisions.v1
// (spec.md §4.4).
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

	"github.com/enterprise/fraud-pipeline/internal/auth"
	"github.com/enterprise/fraud-pipeline/internal/config"
	"github.com/enterprise/fraud-pipeline/internal/decision"
	"github.com/enterprise/fraud-pipeline/internal/eventlog"
	"github.com/enterprise/fraud-pipeline/internal/httpmw"
	"github.com/enterprise/fraud-pipeline/internal/postgres"
	"github.com/enterprise/fraud-pipeline/internal/scoring"
	"github.com/enterprise/fraud-pipeline/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	httpmw.SetupLogging(cfg.Server.Environment)

	log.Info().Str("environment", cfg.Server.Environment).Str("port", cfg.Server.Port).Msg("starting decision-svc")

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to index store")
	}
	defer db.Close()

	entityStore, err := store.New(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to entity store")
	}

	producer, err := eventlog.NewProducer(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to event log")
	}
	defer producer.Close()

	fallback := decision.DefaultPolicy(cfg.Policy.BlockThreshold, cfg.Policy.HoldThreshold, cfg.Policy.TrustedChannels)
	policies := decision.NewPolicyStore(db, fallback)
	if err := policies.Reload(context.Background()); err != nil {
		log.Warn().Err(err).Msg("no active decision_policy row yet, running on the configured fallback policy")
	}

	engine := decision.NewEngine(policies, entityStore)
	worker := decision.NewWorker(engine, producer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer, err := eventlog.NewConsumerGroup(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		[]string{scoring.TopicAlertsScores},
		worker.HandleMessage, cfg.Kafka.RetryAttempts, producer, cfg.Kafka.DeadLetterFmt, cfg.Kafka.OperationTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer group")
	}

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("consumer group stopped")
		}
	}()

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
	decision.RegisterRoutes(authenticated, worker, policies)

	runAndWait(router, cfg.Server, cancel, consumer)
}

func runAndWait(router *gin.Engine, sc config.ServerConfig, cancel context.CancelFunc, consumer *eventlog.ConsumerGroup) {
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
	_ = consumer.Close()
	log.Info().Msg("exited")
}
