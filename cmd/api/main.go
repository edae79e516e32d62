package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"quiz-solver/internal/adapter"
	"quiz-solver/internal/adapter/extractor"
	"quiz-solver/internal/adapter/llm"
	"quiz-solver/internal/adapter/renderer"
	"quiz-solver/internal/adapter/submit"
	"quiz-solver/internal/cache"
	"quiz-solver/internal/config"
	"quiz-solver/internal/domain"
	"quiz-solver/internal/handler"
	"quiz-solver/internal/logger"
	"quiz-solver/internal/middleware"
	"quiz-solver/internal/service"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// requestLogger logs every HTTP request with its status and duration.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.IP()),
		)

		return err
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	// LLM provider: Groq preferred, Gemini fallback, chosen once at
	// startup.
	gateway, err := llm.New(context.Background(), cfg)
	if err != nil {
		appLogger.Fatal("Failed to create LLM gateway", zap.Error(err))
	}
	appLogger.Info("LLM gateway initialized", zap.String("provider", cfg.Provider()))

	// Content cache is optional; the solver is correct without it.
	var contentCache domain.Cache
	if cfg.CacheEnabled() {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		contentCache = adapter.NewRedisCacheAdapter(redisClient)
		appLogger.Info("Content cache enabled", zap.String("address", cfg.Redis.Address))
	} else {
		appLogger.Info("Content cache disabled, fetching directly")
	}

	fetcher := service.NewFetcher(cfg, contentCache)
	pageRenderer := renderer.New()
	contentExtractor := extractor.New()
	submitter := submit.New(cfg)

	solver := service.NewSolver(cfg, fetcher, contentExtractor, pageRenderer, gateway, submitter)
	quizHandler := handler.NewQuizHandler(solver, cfg)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
		MaxAge:       300,
	}))
	app.Use(recover.New())

	app.Post("/quiz", quizHandler.SolveQuiz)
	app.Get("/health", quizHandler.Health)

	go func() {
		appLogger.Info("Starting server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)
		if err := app.Listen(cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
