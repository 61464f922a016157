package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"lingua-backend/internal/config"
	"lingua-backend/internal/database"
	"lingua-backend/internal/handlers"
	"lingua-backend/internal/logger"
	"lingua-backend/internal/middleware"
	"lingua-backend/internal/repository"
	"lingua-backend/internal/router"
	"lingua-backend/internal/services"
	"lingua-backend/internal/websocket"
	"lingua-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("starting lingua backend", "env", cfg.Env)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatal("redis connection failed", "error", err)
	}
	defer redisClients.Close()
	log.Info("redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsPath, log); err != nil {
		log.Fatal("database migration failed", "error", err)
	}

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	courseRepo := repository.NewCourseRepo(pool)
	progressRepo := repository.NewProgressRepo(pool)
	presenceRepo := repository.NewPresenceRepo(pool)
	speechRepo := repository.NewSpeechSessionRepo(pool)
	achievementRepo := repository.NewAchievementRepo(pool)
	chatRepo := repository.NewChatRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Step 5: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, log)
	if err != nil {
		log.Fatal("gemini client initialization failed", "error", err)
	}
	defer geminiService.Close()

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	bus := services.NewEventBus(redisClients.Events, log)

	authService := services.NewAuthService(userRepo, jwtAuth)
	gamification := services.NewGamificationService(progressRepo)
	achievements := services.NewAchievementEvaluator(speechRepo, achievementRepo, log)
	tracker := services.NewSessionTracker(speechRepo, achievements, gamification, log)
	tutorService := services.NewTutorService(geminiService)
	presenceService := services.NewPresenceService(presenceRepo, bus, bus, log, cfg.OnlineWindow, cfg.HeartbeatInterval)
	chatService := services.NewChatService(chatRepo, bus, log)
	importer := services.NewLessonImporter(courseRepo)
	lessonGenerator := services.NewLessonGenerator(geminiService, courseRepo, bus, log)

	workerPool := worker.NewPool(redisClients.Jobs, jobRepo, lessonGenerator, bus, log, cfg.WorkerCount)
	sweeper := services.NewPresenceSweeper(presenceService, log)
	reaper := services.NewSessionReaper(tracker, cfg.TutorSessionIdleTTL, log)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService, userRepo)
	courseHandler := handlers.NewCourseHandler(courseRepo, importer, jobRepo, workerPool, gamification, log)
	presenceHandler := handlers.NewPresenceHandler(presenceService)
	chatHandler := handlers.NewChatHandler(chatService)
	tutorHandler := handlers.NewTutorHandler(tutorService, tracker, log)
	progressHandler := handlers.NewProgressHandler(gamification, achievements)
	jobHandler := handlers.NewJobHandler(jobRepo)

	wsHub := websocket.NewHub(jwtAuth, bus, chatService, presenceService, log)
	tutorWS := websocket.NewTutorHandler(jwtAuth, tracker, tutorService, log, cfg.TutorListenTimeout, cfg.TutorSpeechRate)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		courseHandler,
		presenceHandler,
		chatHandler,
		tutorHandler,
		progressHandler,
		jobHandler,
		wsHub,
		tutorWS,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return workerPool.Run(gctx)
	})

	g.Go(func() error {
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("presence sweeper: %w", err)
		}
		<-gctx.Done()
		sweeper.Stop()
		return nil
	})

	g.Go(func() error {
		if err := reaper.Start(); err != nil {
			return fmt.Errorf("session reaper: %w", err)
		}
		<-gctx.Done()
		reaper.Stop()
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		wsHub.Shutdown()
		if err := tutorWS.Shutdown(shutdownCtx); err != nil {
			log.Warn("tutor sessions not finalized before shutdown deadline", "error", err)
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
