// Command score-svc runs the Ensemble Scorer: consumes feature vectors,
// produces gradient-boosted/neural/rules sub-scores plus a calibrated
// ensemble score, and publishes the result to alerts.scores.v1 (spec.md
// §4.3).
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
	"github.com/enterprise/fraud-pipeline/internal/eventlog"
	"github.com/enterprise/fraud-pipeline/internal/features"
	"github.com/enterprise/fraud-pipeline/internal/httpmw"
	"github.com/enterprise/fraud-pipeline/internal/scoring"
)

// defaultGBMWeights is a fixed, deterministic stand-in gradient-boosted
// model (scoring.LinearGBM), loaded at start so the pipeline always has a
// real scoring model rather than only ever running the model-absent
// degraded path (spec.md §4.3, §7). Order matches scoring.NumericFeatures.
var defaultGBMWeights = []float64{
	0.00006, // amount
	0.18,    // velocity_1h
	0.05,    // velocity_24h
	0.01,    // velocity_7d
	1.2,     // ip_risk_score
	0.8,     // merchant_risk_score
	0.0015,  // geo_distance_km
	-0.002,  // account_age_days
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	httpmw.SetupLogging(cfg.Server.Environment)

	log.Info().Str("environment", cfg.Server.Environment).Str("port", cfg.Server.Port).Msg("starting score-svc")

	producer, err := eventlog.NewProducer(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to event log")
	}
	defer producer.Close()

	weights := scoring.Weights{GBM: cfg.Policy.EnsembleWeights[0], NN: cfg.Policy.EnsembleWeights[1], Rules: cfg.Policy.EnsembleWeights[2]}
	calibration := scoring.CalibrationParams{K: cfg.Policy.PlattK, X0: cfg.Policy.PlattX0}
	gbm := scoring.NewLinearGBM(defaultGBMWeights, -1.5, "linear-gbm-v1")

	ensemble, err := scoring.NewEnsemble(weights, calibration, gbm, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ensemble configuration")
	}

	worker := scoring.NewWorker(ensemble, producer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer, err := eventlog.NewConsumerGroup(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		[]string{features.TopicFeaturesOnline},
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
	scoring.RegisterRoutes(authenticated, worker)

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
