package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/domain"
	"wiki-quiz/internal/repository/models"

	"github.com/jmoiron/sqlx"
)

// Column aliases are quoted so Oracle returns lower-case names for sqlx.
const (
	historyColumns = `id "id", url "url", title "title", date_generated "date_generated"`
	recordColumns  = historyColumns + `, scraped_content "scraped_content", full_quiz_data "full_quiz_data"`
)

// QuizRecordRepository implements domain.QuizRepository using sqlx.
type QuizRecordRepository struct {
	db     *sqlx.DB
	driver string
	tx     domain.TransactionManager
}

// NewQuizRecordRepository creates a repository for the given driver
// (config.DriverSQLite or config.DriverOracle).
func NewQuizRecordRepository(db *sqlx.DB, driver string) *QuizRecordRepository {
	return &QuizRecordRepository{
		db:     db,
		driver: driver,
		tx:     NewTransactionManagerAdapter(db),
	}
}

// Create inserts record and sets record.ID.
func (r *QuizRecordRepository) Create(ctx context.Context, record *domain.QuizRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil quiz record")
	}
	model := fromDomainQuizRecord(record)

	var err error
	if r.driver == config.DriverOracle {
		err = r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			return r.createWithSequence(txCtx, model)
		})
	} else {
		err = r.createAutoIncrement(ctx, model)
	}
	if err != nil {
		return err
	}

	record.ID = model.ID
	return nil
}

// createWithSequence reserves an id from quiz_records_seq before inserting.
// go-ora has no LastInsertId.
func (r *QuizRecordRepository) createWithSequence(ctx context.Context, model *models.QuizRecord) error {
	exec := GetExecutor(ctx, r.db)

	if err := exec.GetContext(ctx, &model.ID, `SELECT quiz_records_seq.NEXTVAL FROM dual`); err != nil {
		return fmt.Errorf("failed to reserve quiz record id: %w", err)
	}

	query := exec.Rebind(`INSERT INTO quiz_records (id, url, title, scraped_content, full_quiz_data, date_generated)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := exec.ExecContext(ctx, query,
		model.ID, model.URL, model.Title, model.ScrapedContent, model.FullQuizData, model.DateGenerated,
	); err != nil {
		return fmt.Errorf("failed to save quiz record: %w", err)
	}
	return nil
}

func (r *QuizRecordRepository) createAutoIncrement(ctx context.Context, model *models.QuizRecord) error {
	exec := GetExecutor(ctx, r.db)

	query := exec.Rebind(`INSERT INTO quiz_records (url, title, scraped_content, full_quiz_data, date_generated)
	VALUES (?, ?, ?, ?, ?)`)
	result, err := exec.ExecContext(ctx, query,
		model.URL, model.Title, model.ScrapedContent, model.FullQuizData, model.DateGenerated,
	)
	if err != nil {
		return fmt.Errorf("failed to save quiz record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read quiz record id: %w", err)
	}
	model.ID = id
	return nil
}

// GetByID returns the record with id, or nil when none exists.
func (r *QuizRecordRepository) GetByID(ctx context.Context, id int64) (*domain.QuizRecord, error) {
	exec := GetExecutor(ctx, r.db)

	var model models.QuizRecord
	query := exec.Rebind(`SELECT ` + recordColumns + ` FROM quiz_records WHERE id = ?`)
	if err := exec.GetContext(ctx, &model, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz record %d: %w", id, err)
	}
	return toDomainQuizRecord(&model), nil
}

// ListHistory returns every record newest first, without content or payload.
func (r *QuizRecordRepository) ListHistory(ctx context.Context) ([]*domain.QuizRecord, error) {
	exec := GetExecutor(ctx, r.db)

	var rows []models.QuizRecord
	query := `SELECT ` + historyColumns + ` FROM quiz_records ORDER BY date_generated DESC, id DESC`
	if err := exec.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list quiz history: %w", err)
	}
	return toDomainQuizRecords(rows), nil
}

// FindByURL returns history entries for url, newest first.
func (r *QuizRecordRepository) FindByURL(ctx context.Context, url string) ([]*domain.QuizRecord, error) {
	exec := GetExecutor(ctx, r.db)

	var rows []models.QuizRecord
	query := exec.Rebind(`SELECT ` + historyColumns + ` FROM quiz_records WHERE url = ? ORDER BY date_generated DESC, id DESC`)
	if err := exec.SelectContext(ctx, &rows, query, url); err != nil {
		return nil, fmt.Errorf("failed to find quiz records for url: %w", err)
	}
	return toDomainQuizRecords(rows), nil
}

func fromDomainQuizRecord(record *domain.QuizRecord) *models.QuizRecord {
	return &models.QuizRecord{
		ID:             record.ID,
		URL:            record.URL,
		Title:          record.Title,
		ScrapedContent: sql.NullString{String: record.ScrapedContent, Valid: true},
		FullQuizData:   sql.NullString{String: record.FullQuizData, Valid: true},
		DateGenerated:  record.DateGenerated,
	}
}

func toDomainQuizRecord(model *models.QuizRecord) *domain.QuizRecord {
	return &domain.QuizRecord{
		ID:             model.ID,
		URL:            model.URL,
		Title:          model.Title,
		ScrapedContent: model.ScrapedContent.String,
		FullQuizData:   model.FullQuizData.String,
		DateGenerated:  model.DateGenerated.UTC(),
	}
}

func toDomainQuizRecords(rows []models.QuizRecord) []*domain.QuizRecord {
	records := make([]*domain.QuizRecord, 0, len(rows))
	for i := range rows {
		records = append(records, toDomainQuizRecord(&rows[i]))
	}
	return records
}

var _ domain.QuizRepository = (*QuizRecordRepository)(nil)
