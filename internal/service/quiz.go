package service

import (
	"context"

	"wiki-quiz/internal/domain"
	"wiki-quiz/internal/dto"

	"go.uber.org/zap"
)

// GenerateQuizMessage is returned with every newly stored quiz.
const GenerateQuizMessage = "Quiz generated successfully"

// QuizService defines the interface for quiz-related operations
type QuizService interface {
	GenerateQuiz(ctx context.Context, url string) (*dto.GenerateQuizResponse, error)
	GetHistory(ctx context.Context, url string) ([]dto.HistoryItem, error)
	GetQuiz(ctx context.Context, id int64) (*dto.QuizDetailResponse, error)
}

// quizService implements QuizService
type quizService struct {
	pipeline domain.QuizPipeline
	repo     domain.QuizRepository
	logger   *zap.Logger
}

// NewQuizService creates a new instance of quizService
func NewQuizService(pipeline domain.QuizPipeline, repo domain.QuizRepository, logger *zap.Logger) QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &quizService{
		pipeline: pipeline,
		repo:     repo,
		logger:   logger,
	}
}

// GenerateQuiz runs the pipeline for url and stores the result. Every call
// creates a new record, even for a URL seen before.
func (s *quizService) GenerateQuiz(ctx context.Context, url string) (*dto.GenerateQuizResponse, error) {
	result, err := s.pipeline.Run(ctx, url)
	if err != nil {
		return nil, err
	}

	record, err := domain.NewQuizRecord(url, result)
	if err != nil {
		return nil, domain.NewInternalError("Failed to serialize quiz", err)
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, domain.NewInternalError("Failed to save quiz", err)
	}

	s.logger.Info("Stored generated quiz",
		zap.Int64("id", record.ID),
		zap.String("url", url),
		zap.String("title", record.Title),
	)

	return &dto.GenerateQuizResponse{
		ID:       record.ID,
		QuizData: result.Quiz,
		Message:  GenerateQuizMessage,
	}, nil
}

// GetHistory lists stored quizzes newest first, optionally only those for url.
func (s *quizService) GetHistory(ctx context.Context, url string) ([]dto.HistoryItem, error) {
	var (
		records []*domain.QuizRecord
		err     error
	)
	if url != "" {
		records, err = s.repo.FindByURL(ctx, url)
	} else {
		records, err = s.repo.ListHistory(ctx)
	}
	if err != nil {
		return nil, domain.NewInternalError("Failed to load quiz history", err)
	}

	items := make([]dto.HistoryItem, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewHistoryItem(record))
	}
	return items, nil
}

// GetQuiz returns a stored quiz with its decoded payload.
func (s *quizService) GetQuiz(ctx context.Context, id int64) (*dto.QuizDetailResponse, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get quiz", err)
	}
	if record == nil {
		return nil, domain.NewQuizNotFoundError(id)
	}

	quiz, err := record.DecodeQuiz()
	if err != nil {
		return nil, domain.NewInternalError("Stored quiz data is corrupted", err)
	}

	return &dto.QuizDetailResponse{
		ID:            record.ID,
		URL:           record.URL,
		Title:         record.Title,
		DateGenerated: record.DateGenerated,
		QuizData:      *quiz,
	}, nil
}
