package domain

import "context"

// ArticleFetcher retrieves a page and extracts usable article text.
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) (*ScrapedArticle, error)
}

// PromptBuilder composes the model instruction for an article.
type PromptBuilder interface {
	Build(title, content string) (string, error)
}

// QuizGenerator sends a prompt to a generative model and returns its raw text.
type QuizGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QuizParser turns raw model text into a validated quiz.
type QuizParser interface {
	Parse(raw string) (*QuizOutput, error)
}

// QuizRepository persists quiz records. Lookups return (nil, nil) when no
// record matches.
type QuizRepository interface {
	// Create inserts record and assigns its ID.
	Create(ctx context.Context, record *QuizRecord) error

	// GetByID returns the record with the given ID.
	GetByID(ctx context.Context, id int64) (*QuizRecord, error)

	// ListHistory returns all records, most recent first, without scraped
	// content or quiz payload.
	ListHistory(ctx context.Context) ([]*QuizRecord, error)

	// FindByURL returns history entries generated for url, most recent first.
	FindByURL(ctx context.Context, url string) ([]*QuizRecord, error)
}

// QuizPipeline runs one article URL through fetch, prompt, generate and parse.
type QuizPipeline interface {
	Run(ctx context.Context, url string) (*QuizResult, error)
}

// TransactionManager runs fn inside a single database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
