package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"formrunner/internal/cache"
	"formrunner/internal/config"
	"formrunner/internal/repository"
	"formrunner/internal/service"
	"formrunner/internal/transport/rest"
	"formrunner/internal/transport/ws"
)

// @title Form Runner API
// @version 1.0
// @description Public questionnaire runner for the survey platform
// @BasePath /v1
func main() {
	log.Println("started")
	ctx := context.Background()

	cfg := config.Load()
	log.Printf("Upstream API: %s (source tag %q)", cfg.UpstreamAPIURL, cfg.UpstreamSource)

	// Redis connection (progress store)
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// MongoDB connection (submission journal)
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	mongoPingCtx, mongoCancel := context.WithTimeout(ctx, 5*time.Second)
	defer mongoCancel()
	if err := mongoClient.Ping(mongoPingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	// Wiring
	upstream := service.NewUpstreamClient(cfg.UpstreamAPIURL)
	progressCache := cache.NewProgressCache(redisClient)
	journalRepo := repository.NewJournalRepo(mongoClient)

	loader := service.NewQuizLoader(upstream, cfg.QuizCacheTTL)
	interviewSvc := service.NewInterviewService(upstream, progressCache, cfg.UpstreamSource)
	runnerSvc := service.NewRunnerService(loader, upstream, progressCache, interviewSvc, journalRepo)
	tokenSvc := service.NewSessionTokenService(cfg.SessionSecret)

	wsHub := ws.NewHub()
	runnerSvc.SetBroadcaster(wsHub)

	container := &rest.Container{
		RunnerService: runnerSvc,
		TokenService:  tokenSvc,
		WSHub:         wsHub,
	}

	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		log.Println("Endpoints:")
		log.Println("  POST /v1/forms/{quizId}/open")
		log.Println("  GET  /v1/forms/{quizId}")
		log.Println("  POST /v1/forms/{quizId}/answers")
		log.Println("  POST /v1/forms/{quizId}/next")
		log.Println("  POST /v1/forms/{quizId}/back")
		log.Println("  POST /v1/forms/{quizId}/finalize")
		log.Println("  GET  /v1/forms/{quizId}/journal")
		log.Println("  WS   /v1/ws/forms/{quizId}/events")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
