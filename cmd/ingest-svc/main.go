// Command ingest-svc runs the Ingest component: validates inbound
// transaction/claim payloads and publishes them to the durable event log
// (spec.md §4.1). Wiring shape grounded on the teacher's
// cmd/api-server/main.go (config load, gin router, graceful shutdown).
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
	"github.com/enterprise/fraud-pipeline/internal/httpmw"
	"github.com/enterprise/fraud-pipeline/internal/ingest"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	httpmw.SetupLogging(cfg.Server.Environment)

	log.Info().Str("environment", cfg.Server.Environment).Str("port", cfg.Server.Port).Msg("starting ingest-svc")

	producer, err := eventlog.NewProducer(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to event log")
	}
	defer producer.Close()

	svc := ingest.NewService(producer)
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
	ingest.RegisterRoutes(authenticated, svc)

	runAndWait(router, cfg.Server)
}

func runAndWait(router *gin.Engine, sc config.ServerConfig) {
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
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("exited")
}
