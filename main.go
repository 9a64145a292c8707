package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"client-data-service/consumer"
	"client-data-service/handlers"
	"client-data-service/lookup"
	"client-data-service/middleware"
	"client-data-service/models"
	"client-data-service/monitoring"
	"client-data-service/utils"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

const (
	maxRetries = 3
	retryDelay = 1 * time.Second
)

func main() {
	logger := log.New(os.Stdout, "CLIENT-DATA: ", log.LstdFlags|log.Lshortfile)

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := utils.InitSentry(dsn); err != nil {
			logger.Printf("Sentry disabled: %v", err)
		}
	}

	// Подключаемся к Postgres с ретраями
	var repo *models.PostgresRepository
	var err error
	for i := 0; i < maxRetries; i++ {
		repo, err = models.NewPostgresRepository()
		if err == nil {
			break
		}
		logger.Printf("Attempt %d: Failed to connect to Postgres: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		logger.Fatalf("Failed to initialize Postgres after %d attempts: %v", maxRetries, err)
	}
	defer repo.Close()

	// Подключаемся к Redis с ретраями; без него кэш просто выключен
	var redisClient utils.RedisClient
	for i := 0; i < maxRetries; i++ {
		redisClient, err = utils.NewRedisClient()
		if err == nil {
			break
		}
		logger.Printf("Attempt %d: Failed to connect to Redis: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		logger.Printf("Running without reference cache: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// Kafka и Elasticsearch опциональны
	kafkaProducer, err := utils.NewKafkaProducer()
	if err != nil {
		logger.Printf("Running without submission events: %v", err)
		kafkaProducer = nil
	} else {
		defer kafkaProducer.Close()
	}

	esClient, err := utils.NewElasticsearchClient()
	if err != nil {
		logger.Printf("Running without search: %v", err)
		esClient = nil
	}

	monitoring.Init()

	provider := lookup.NewProvider(repo, redisClient)
	clientHandler := handlers.NewClientHandler(repo, provider, kafkaProducer, esClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var submissionConsumer *consumer.SubmissionConsumer
	if kafkaProducer != nil && esClient != nil {
		submissionConsumer = consumer.NewSubmissionConsumer(esClient)
		submissionConsumer.Start(ctx)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.PrometheusMetrics())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.ErrorHandler())

	api := router.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			details := gin.H{"postgres": "available", "redis": "available"}
			status := http.StatusOK

			if err := repo.Ping(); err != nil {
				details["postgres"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
			if redisClient == nil {
				details["redis"] = "disabled"
			} else {
				hctx, hcancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
				defer hcancel()
				if err := redisClient.SetToCache(hctx, "healthcheck", "ping", 10*time.Second); err != nil {
					details["redis"] = "unavailable"
				}
			}

			body := gin.H{"status": "ok", "details": details}
			if status != http.StatusOK {
				body["status"] = "degraded"
			}
			c.JSON(status, body)
		})

		api.GET("/reference", clientHandler.GetReference)
		api.POST("/reference/refresh", clientHandler.RefreshReference)

		api.POST("/clients", clientHandler.SubmitClient)
		api.GET("/clients/prefill", clientHandler.GetPrefill)
		api.GET("/clients/recent", clientHandler.GetRecent)
		api.GET("/clients/search", clientHandler.SearchClients)
		api.GET("/clients/:id", clientHandler.GetRecord)
	}

	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.Printf("Server is running on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down...")
	cancel()
	if submissionConsumer != nil {
		submissionConsumer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Server shutdown error: %v", err)
	}
	sentry.Flush(2 * time.Second)
	logger.Println("Server stopped")
}
