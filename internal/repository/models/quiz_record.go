package models

import (
	"database/sql"
	"time"
)

// QuizRecord maps a row of the quiz_records table. History queries leave
// ScrapedContent and FullQuizData empty.
type QuizRecord struct {
	ID             int64          `db:"id"`
	URL            string         `db:"url"`
	Title          string         `db:"title"`
	ScrapedContent sql.NullString `db:"scraped_content"`
	FullQuizData   sql.NullString `db:"full_quiz_data"`
	DateGenerated  time.Time      `db:"date_generated"`
}
