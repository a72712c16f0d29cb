package quizgen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/domain"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const defaultGenerateTimeout = 60 * time.Second

// Generator implements domain.QuizGenerator on top of a langchaingo model.
// The credential is injected at construction and never re-read.
type Generator struct {
	model       llms.Model
	modelName   string
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

// NewGenerator creates the configured provider client. A missing credential
// is reported as a configuration error before any client is created.
func NewGenerator(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	model, err := newModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Initialized quiz generator",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Float64("temperature", cfg.Temperature))
	return NewGeneratorWithModel(model, cfg, logger), nil
}

// NewGeneratorWithModel wraps an existing model.
func NewGeneratorWithModel(model llms.Model, cfg config.LLMConfig, logger *zap.Logger) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		model:       model,
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeout,
		logger:      logger,
	}
}

func newModel(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, domain.NewConfigurationError([]string{"GEMINI_API_KEY"})
		}
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, domain.NewGenerationError(domain.ReasonProviderError, fmt.Errorf("failed to create Gemini client: %w", err))
		}
		return model, nil
	case config.ProviderOpenAI:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, domain.NewConfigurationError([]string{"LLM_API_KEY"})
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.ServerURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ServerURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, domain.NewGenerationError(domain.ReasonProviderError, fmt.Errorf("failed to create OpenAI client: %w", err))
		}
		return model, nil
	case config.ProviderOllama:
		if cfg.ServerURL == "" {
			return nil, domain.NewConfigurationError([]string{"LLM_SERVER_URL"})
		}
		model, err := ollama.New(
			ollama.WithServerURL(cfg.ServerURL),
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		)
		if err != nil {
			return nil, domain.NewGenerationError(domain.ReasonProviderError, fmt.Errorf("failed to create Ollama client: %w", err))
		}
		return model, nil
	default:
		return nil, domain.NewError(domain.CodeConfiguration, "",
			fmt.Sprintf("Unsupported LLM provider %q", cfg.Provider), nil)
	}
}

// Generate sends prompt to the model and returns its raw text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	response, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, llms.WithTemperature(g.temperature))
	if err != nil {
		reason := classifyError(err)
		g.logger.Error("Quiz generation failed",
			zap.String("model", g.modelName),
			zap.String("reason", string(reason)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return "", domain.NewGenerationError(reason, err)
	}

	g.logger.Debug("Quiz generation completed",
		zap.String("model", g.modelName),
		zap.Int("response_length", len(response)),
		zap.Duration("duration", time.Since(start)))
	return response, nil
}

func classifyError(err error) domain.Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "ratelimit", "quota", "resource_exhausted", "resource exhausted"} {
		if strings.Contains(msg, marker) {
			return domain.ReasonRateLimited
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.ReasonTimeout
		}
		return domain.ReasonTransport
	}
	return domain.ReasonProviderError
}

var _ domain.QuizGenerator = (*Generator)(nil)
