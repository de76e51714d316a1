package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-backend/internal/cache"
	"github.com/stemsi/ielts-backend/internal/config"
	"github.com/stemsi/ielts-backend/internal/database"
	"github.com/stemsi/ielts-backend/internal/handler"
	"github.com/stemsi/ielts-backend/internal/llm"
	"github.com/stemsi/ielts-backend/internal/logger"
	"github.com/stemsi/ielts-backend/internal/metrics"
	"github.com/stemsi/ielts-backend/internal/repository"
	"github.com/stemsi/ielts-backend/internal/router"
	"github.com/stemsi/ielts-backend/internal/service"
	"github.com/stemsi/ielts-backend/internal/validator"
	"github.com/stemsi/ielts-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Bool("ai_feedback", cfg.LLMEnabled()).
		Msg("Starting IELTS Backend")

	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	itemRepo := repository.NewSkillItemRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	feedbackRepo := repository.NewFeedbackRepository(pool)

	examCache := cache.NewExamCache(rdb, cfg.ExamCacheTTL)
	feedbackQueue := cache.NewFeedbackQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo, cache.NewSessionStore(rdb), log)
	examService := service.NewExamService(examRepo, itemRepo, attemptRepo, examCache, log)
	itemService := service.NewSkillItemService(examRepo, itemRepo, attemptRepo, examCache, log)
	feedbackService := service.NewFeedbackService(examRepo, itemRepo, feedbackRepo, feedbackQueue, cfg.LLMEnabled(), log)
	if cfg.LLMEnabled() {
		examService.WithFeedbackQueue(feedbackQueue)
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Exam:    handler.NewExamHandler(examService, itemService),
		Admin:   handler.NewAdminHandler(examService, itemService),
		Markup:  handler.NewMarkupHandler(itemService),
		Writing: handler.NewWritingHandler(feedbackService),
		WS:      handler.NewWSHandler(rdb, feedbackService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(database.NewChecker(pool, rdb), rdb),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	if cfg.LLMEnabled() {
		assessor := llm.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
		feedbackWorker := worker.NewFeedbackWorker(rdb, itemRepo, feedbackRepo, assessor, cfg.FeedbackMaxRetries, cfg.LLMTimeout, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			feedbackWorker.Start(workerCtx)
		}()
	} else {
		log.Warn().Msg("LLM_API_KEY and LLM_BASE_URL unset, AI feedback disabled")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the feedback worker. A job being graded finishes or is
	// requeued before Start returns.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
