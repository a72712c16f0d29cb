// @title AI Wiki Quiz Generator API
// @version 1.0
// @description Generates multiple-choice quizzes from Wikipedia articles.
// @host localhost:8000
// @BasePath /
// @schemes http https
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "wiki-quiz/cmd/api/docs"
	"wiki-quiz/internal/adapter"
	"wiki-quiz/internal/adapter/quizgen"
	"wiki-quiz/internal/adapter/scraper"
	"wiki-quiz/internal/cache"
	"wiki-quiz/internal/config"
	"wiki-quiz/internal/database"
	"wiki-quiz/internal/domain"
	"wiki-quiz/internal/handler"
	"wiki-quiz/internal/logger"
	"wiki-quiz/internal/middleware"
	"wiki-quiz/internal/repository"
	"wiki-quiz/internal/service"
	"wiki-quiz/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	// Missing credentials fail here, before any request is served.
	if err := cfg.Validate(); err != nil {
		appLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	if cfg.DB.AutoMigrate {
		if err := migrate(cfg.DB, appLogger); err != nil {
			appLogger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// Connect to database
	db, err := database.Connect(cfg.DB, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var quizRepository domain.QuizRepository = repository.NewQuizRecordRepository(db, cfg.DB.Driver)

	// Redis is optional; without it every read goes to the database.
	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		appLogger.Info("Successfully connected to Redis", zap.String("address", cfg.Redis.Address))
		quizRepository = repository.NewCachedQuizRepository(
			quizRepository, adapter.NewRedisCacheAdapter(redisClient), cfg.Cache, appLogger)
	}

	pipeline, err := newPipeline(context.Background(), cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to build quiz pipeline", zap.Error(err))
	}

	quizService := service.NewQuizService(pipeline, quizRepository, appLogger)
	quizHandler := handler.NewQuizHandler(quizService)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept," + middleware.RequestIDHeader,
		MaxAge:       300,
	}))

	app.Get("/swagger/*", swagger.HandlerDefault)
	quizHandler.RegisterRoutes(app)

	go func() {
		appLogger.Info("Starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("env", cfg.Logger.Env),
			zap.String("db_driver", cfg.DB.Driver),
			zap.String("llm_provider", cfg.LLM.Provider))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}

func migrate(cfg config.DBConfig, logger *zap.Logger) error {
	migrator, err := database.NewMigrator(cfg, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()
	return migrator.Up()
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*service.Pipeline, error) {
	prompts, err := quizgen.NewPromptBuilder()
	if err != nil {
		return nil, err
	}
	generator, err := quizgen.NewGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	parser, err := validation.NewQuizParser(cfg.Quiz)
	if err != nil {
		return nil, err
	}

	return service.NewPipeline(
		scraper.NewWikipediaScraper(cfg.Fetcher, logger),
		prompts,
		generator,
		parser,
		logger,
	), nil
}
