package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnknownTitle is used when an article page has no heading.
const UnknownTitle = "Unknown Title"

// ScrapedArticle is the cleaned text of a fetched article.
type ScrapedArticle struct {
	Title   string
	Content string
}

// Question is a single multiple-choice question.
type Question struct {
	Question      string   `json:"question" describe:"The quiz question"`
	Options       []string `json:"options" describe:"List of 4 multiple choice options"`
	CorrectAnswer string   `json:"correct_answer" describe:"The correct answer, copied exactly from the options"`
	Explanation   string   `json:"explanation" describe:"Brief explanation of why the answer is correct"`
	TopicArea     string   `json:"topic_area" describe:"The specific topic covered by the question"`
}

// HasOption reports whether answer is one of the question's options.
func (q *Question) HasOption(answer string) bool {
	for _, opt := range q.Options {
		if opt == answer {
			return true
		}
	}
	return false
}

// QuizOutput is the validated quiz produced by the pipeline.
type QuizOutput struct {
	Title         string     `json:"title" describe:"Title of the Wikipedia article"`
	Summary       string     `json:"summary" describe:"Brief summary of the article (2-3 sentences)"`
	Questions     []Question `json:"questions" describe:"List of 7-10 quiz questions"`
	KeyEntities   []string   `json:"key_entities" describe:"List of 3-5 key entities or concepts from the article"`
	RelatedTopics []string   `json:"related_topics" describe:"List of 3-5 related topics for further reading"`
}

// QuizResult is what one successful pipeline invocation produces.
type QuizResult struct {
	Article ScrapedArticle
	Quiz    QuizOutput
}

// QuizRecord is the persisted form of a generated quiz. Records are
// append-only: created once, never updated or deleted.
type QuizRecord struct {
	ID             int64
	URL            string
	Title          string
	ScrapedContent string
	FullQuizData   string
	DateGenerated  time.Time
}

// NewQuizRecord serializes quiz into a record ready to be inserted.
func NewQuizRecord(url string, result *QuizResult) (*QuizRecord, error) {
	data, err := json.Marshal(result.Quiz)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize quiz: %w", err)
	}
	return &QuizRecord{
		URL:            url,
		Title:          result.Quiz.Title,
		ScrapedContent: result.Article.Content,
		FullQuizData:   string(data),
		DateGenerated:  time.Now().UTC(),
	}, nil
}

// DecodeQuiz decodes the stored quiz payload.
func (r *QuizRecord) DecodeQuiz() (*QuizOutput, error) {
	var quiz QuizOutput
	if err := json.Unmarshal([]byte(r.FullQuizData), &quiz); err != nil {
		return nil, fmt.Errorf("failed to decode quiz data for record %d: %w", r.ID, err)
	}
	return &quiz, nil
}
