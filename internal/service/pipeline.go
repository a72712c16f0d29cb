package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"wiki-quiz/internal/domain"

	"go.uber.org/zap"
)

// Stage is a step of a single pipeline invocation.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageFetching   Stage = "fetching"
	StagePrompting  Stage = "prompting"
	StageGenerating Stage = "generating"
	StageValidating Stage = "validating"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Pipeline composes fetcher, prompt builder, generator and parser. It keeps
// no state between runs and is safe for concurrent use.
type Pipeline struct {
	fetcher   domain.ArticleFetcher
	prompts   domain.PromptBuilder
	generator domain.QuizGenerator
	parser    domain.QuizParser
	logger    *zap.Logger
}

// NewPipeline creates a new Pipeline.
func NewPipeline(
	fetcher domain.ArticleFetcher,
	prompts domain.PromptBuilder,
	generator domain.QuizGenerator,
	parser domain.QuizParser,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:   fetcher,
		prompts:   prompts,
		generator: generator,
		parser:    parser,
		logger:    logger,
	}
}

// pipelineRun tracks the state of one invocation.
type pipelineRun struct {
	url    string
	stage  Stage
	start  time.Time
	logger *zap.Logger
}

func (r *pipelineRun) advance(next Stage) {
	r.logger.Debug("Pipeline stage transition",
		zap.String("url", r.url),
		zap.String("from", string(r.stage)),
		zap.String("to", string(next)),
	)
	r.stage = next
}

// fail moves the run to StageFailed and returns err tagged with the stage it
// failed in.
func (r *pipelineRun) fail(err error) error {
	failedAt := r.stage
	tagged := tagStageError(failedAt, err)
	r.stage = StageFailed

	r.logger.Warn("Quiz pipeline failed",
		zap.String("url", r.url),
		zap.String("stage", string(failedAt)),
		zap.String("code", string(tagged.Code)),
		zap.String("reason", string(tagged.Reason)),
		zap.Duration("duration", time.Since(r.start)),
		zap.Error(err),
	)
	return tagged
}

// Run executes the stages in order and stops at the first failure. It
// returns either a validated result or exactly one tagged error.
func (p *Pipeline) Run(ctx context.Context, url string) (*domain.QuizResult, error) {
	run := &pipelineRun{url: url, stage: StageIdle, start: time.Now(), logger: p.logger}

	run.advance(StageFetching)
	article, err := p.fetcher.Fetch(ctx, url)
	if err == nil && article == nil {
		err = errors.New("fetcher returned no article")
	}
	if err != nil {
		return nil, run.fail(err)
	}

	run.advance(StagePrompting)
	prompt, err := p.prompts.Build(article.Title, article.Content)
	if err != nil {
		return nil, run.fail(err)
	}

	run.advance(StageGenerating)
	raw, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, run.fail(err)
	}

	run.advance(StageValidating)
	quiz, err := p.parser.Parse(raw)
	if err == nil && quiz == nil {
		err = errors.New("parser returned no quiz")
	}
	if err != nil {
		return nil, run.fail(err)
	}

	// The title is cosmetic; fall back to the scraped one.
	if strings.TrimSpace(quiz.Title) == "" {
		quiz.Title = article.Title
	}

	run.advance(StageDone)
	p.logger.Info("Quiz pipeline completed",
		zap.String("url", url),
		zap.String("title", quiz.Title),
		zap.Int("questions", len(quiz.Questions)),
		zap.Duration("duration", time.Since(run.start)),
	)
	return &domain.QuizResult{Article: *article, Quiz: *quiz}, nil
}

// tagStageError returns a copy of err as a DomainError carrying the failed
// stage. Untagged errors get the code owned by that stage.
func tagStageError(stage Stage, err error) *domain.DomainError {
	var tagged domain.DomainError
	if domainErr, ok := domain.AsDomainError(err); ok {
		tagged = *domainErr
		tagged.Context = make(map[string]interface{}, len(domainErr.Context)+1)
		for k, v := range domainErr.Context {
			tagged.Context[k] = v
		}
	} else {
		switch stage {
		case StageFetching:
			tagged = *domain.NewFetchError(domain.ReasonRequestFailed, "Failed to fetch the article", err)
		case StageGenerating:
			tagged = *domain.NewGenerationError(domain.ReasonProviderError, err)
		case StageValidating:
			tagged = *domain.NewMalformedOutputError(err)
		default:
			tagged = *domain.NewInternalError("Quiz pipeline failed", err)
		}
	}
	return tagged.WithContext("stage", string(stage))
}

var _ domain.QuizPipeline = (*Pipeline)(nil)
