package service

import (
	"context"

	"wiki-quiz/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockArticleFetcher ---
type MockArticleFetcher struct {
	mock.Mock
}

func (m *MockArticleFetcher) Fetch(ctx context.Context, url string) (*domain.ScrapedArticle, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScrapedArticle), args.Error(1)
}

// --- MockPromptBuilder ---
type MockPromptBuilder struct {
	mock.Mock
}

func (m *MockPromptBuilder) Build(title, content string) (string, error) {
	args := m.Called(title, content)
	return args.String(0), args.Error(1)
}

// --- MockQuizGenerator ---
type MockQuizGenerator struct {
	mock.Mock
}

func (m *MockQuizGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// --- MockQuizParser ---
type MockQuizParser struct {
	mock.Mock
}

func (m *MockQuizParser) Parse(raw string) (*domain.QuizOutput, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuizOutput), args.Error(1)
}

// --- MockQuizPipeline ---
type MockQuizPipeline struct {
	mock.Mock
}

func (m *MockQuizPipeline) Run(ctx context.Context, url string) (*domain.QuizResult, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuizResult), args.Error(1)
}

// --- MockQuizRepository ---
type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) Create(ctx context.Context, record *domain.QuizRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockQuizRepository) GetByID(ctx context.Context, id int64) (*domain.QuizRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuizRecord), args.Error(1)
}

func (m *MockQuizRepository) ListHistory(ctx context.Context) ([]*domain.QuizRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QuizRecord), args.Error(1)
}

func (m *MockQuizRepository) FindByURL(ctx context.Context, url string) ([]*domain.QuizRecord, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QuizRecord), args.Error(1)
}
