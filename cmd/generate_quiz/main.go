// Command generate_quiz runs the quiz pipeline for one or more article URLs
// and stores each result in the quiz history.
//
//	generate_quiz [-concurrency N] [-dry-run] URL...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"wiki-quiz/internal/adapter/quizgen"
	"wiki-quiz/internal/adapter/scraper"
	"wiki-quiz/internal/config"
	"wiki-quiz/internal/database"
	"wiki-quiz/internal/domain"
	"wiki-quiz/internal/logger"
	"wiki-quiz/internal/repository"
	"wiki-quiz/internal/service"
	"wiki-quiz/internal/validation"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type result struct {
	URL   string              `json:"url"`
	ID    int64               `json:"id,omitempty"`
	Title string              `json:"title,omitempty"`
	Quiz  *domain.QuizOutput  `json:"quiz,omitempty"`
	Error *domain.DomainError `json:"error,omitempty"`
}

const usage = "usage: generate_quiz [-concurrency N] [-dry-run] URL..."

type options struct {
	concurrency int
	dryRun      bool
	urls        []string
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("generate_quiz", flag.ContinueOnError)
	opts := &options{}
	fs.IntVar(&opts.concurrency, "concurrency", 2, "number of articles processed at once")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print quizzes without storing them")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.urls = fs.Args()
	if len(opts.urls) == 0 {
		return nil, errors.New("no article URLs given")
	}
	if opts.concurrency < 1 {
		return nil, fmt.Errorf("-concurrency must be at least 1, got %d", opts.concurrency)
	}
	return opts, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	urls := opts.urls

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	l := logger.Get()
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		l.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := newPipeline(ctx, cfg, l)
	if err != nil {
		l.Fatal("Failed to build quiz pipeline", zap.Error(err))
	}

	var repo domain.QuizRepository
	if !opts.dryRun {
		db, err := database.Connect(cfg.DB, l)
		if err != nil {
			l.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		repo = repository.NewQuizRecordRepository(db, cfg.DB.Driver)
	}

	results := make([]result, len(urls))
	validator := validation.NewValidator()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			results[i] = generate(gctx, url, validator, pipeline, repo, l)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	enc := json.NewEncoder(os.Stdout)
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
		if err := enc.Encode(r); err != nil {
			l.Error("Failed to write result", zap.Error(err))
		}
	}

	l.Info("Batch finished", zap.Int("total", len(urls)), zap.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}

func generate(ctx context.Context, url string, validator *validation.Validator, pipeline domain.QuizPipeline, repo domain.QuizRepository, l *zap.Logger) result {
	out := result{URL: url}

	if errs := validator.ValidateGenerateQuizRequest(url); len(errs) > 0 {
		out.Error = domain.NewInvalidInputError(errs.Error())
		return out
	}

	quizResult, err := pipeline.Run(ctx, url)
	if err != nil {
		out.Error = toDomainError(err)
		return out
	}
	out.Title = quizResult.Quiz.Title
	out.Quiz = &quizResult.Quiz

	if repo == nil {
		return out
	}

	record, err := domain.NewQuizRecord(url, quizResult)
	if err == nil {
		err = repo.Create(ctx, record)
	}
	if err != nil {
		l.Error("Failed to store quiz", zap.String("url", url), zap.Error(err))
		out.Error = domain.NewInternalError("Failed to save quiz", err)
		return out
	}
	out.ID = record.ID
	return out
}

func toDomainError(err error) *domain.DomainError {
	if domainErr, ok := domain.AsDomainError(err); ok {
		return domainErr
	}
	return domain.NewInternalError("Quiz generation failed", err)
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
