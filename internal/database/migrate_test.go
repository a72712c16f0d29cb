package database

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/domain"
	"wiki-quiz/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tempSQLiteConfig(t *testing.T) config.DBConfig {
	t.Helper()
	return config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "quiz.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite",
	}
}

func TestMigrator_SQLiteUpDown(t *testing.T) {
	cfg := tempSQLiteConfig(t)

	mg, err := NewMigrator(cfg, zap.NewNop())
	require.NoError(t, err)
	defer mg.Close()

	_, _, ok, err := mg.Version()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mg.Up())
	version, dirty, ok, err := mg.Version()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	// A second run is a no-op.
	require.NoError(t, mg.Up())

	require.NoError(t, mg.Down(true))
	_, _, ok, err = mg.Version()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	cfg := tempSQLiteConfig(t)

	mg, err := NewMigrator(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mg.Up())
	require.NoError(t, mg.Close())

	db, err := Connect(cfg, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewQuizRecordRepository(db, config.DriverSQLite)
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	first := &domain.QuizRecord{
		URL: "https://en.wikipedia.org/wiki/Alan_Turing", Title: "First",
		ScrapedContent: "content", FullQuizData: `{"title":"First"}`, DateGenerated: base,
	}
	second := &domain.QuizRecord{
		URL: "https://en.wikipedia.org/wiki/Ada_Lovelace", Title: "Second",
		ScrapedContent: "content", FullQuizData: `{"title":"Second"}`, DateGenerated: base.Add(time.Minute),
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.Greater(t, second.ID, first.ID)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.FullQuizData, got.FullQuizData)
	assert.True(t, first.DateGenerated.Equal(got.DateGenerated))

	missing, err := repo.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	history, err := repo.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Second", history[0].Title)
	assert.Equal(t, "First", history[1].Title)

	byURL, err := repo.FindByURL(ctx, first.URL)
	require.NoError(t, err)
	require.Len(t, byURL, 1)
	assert.Equal(t, first.ID, byURL[0].ID)
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DBConfig{Driver: "mysql", DSN: "x"}, nil)
	assert.Error(t, err)

	_, err = NewMigrator(config.DBConfig{Driver: "mysql", DSN: "x"}, nil)
	assert.Error(t, err)
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_add_index.up.sql":   {Data: []byte("CREATE INDEX b")},
		"m/000002_add_index.down.sql": {Data: []byte("DROP INDEX b")},
		"m/000001_init.up.sql":        {Data: []byte("CREATE TABLE a")},
		"m/000001_init.down.sql":      {Data: []byte("DROP TABLE a")},
		"m/README.md":                 {Data: []byte("ignored")},
	}

	files, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, uint(1), files[0].version)
	assert.Equal(t, "CREATE TABLE a", files[0].up)
	assert.Equal(t, "DROP INDEX b", files[1].down)

	_, err = loadMigrations(fstest.MapFS{"m/init.up.sql": {Data: []byte("x")}}, "m")
	assert.Error(t, err)
}

func TestEmbeddedOracleMigrations(t *testing.T) {
	files, err := loadMigrations(migrationsFS, "migrations/oracle")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	stmts := splitStatements(files[0].up)
	assert.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], "CREATE SEQUENCE quiz_records_seq")
	for _, stmt := range stmts {
		assert.NotContains(t, stmt, ";")
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id NUMBER);\n\n  DROP TABLE b ;\n")
	assert.Equal(t, []string{"CREATE TABLE a (id NUMBER)", "DROP TABLE b"}, stmts)
	assert.Empty(t, splitStatements(" \n; "))
}

var oracleTestFS = fstest.MapFS{
	"m/000001_init.up.sql":   {Data: []byte("CREATE TABLE a (id NUMBER);\nCREATE INDEX ia ON a (id);")},
	"m/000001_init.down.sql": {Data: []byte("DROP TABLE a;")},
}

func TestRunMigrations_FreshSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE schema_migrations`)).
		WillReturnError(errors.New("ORA-00955: name is already used by an existing object"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version, dirty FROM schema_migrations`)).
		WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations`)).WithArgs(int64(1), 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE a (id NUMBER)`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX ia ON a (id)`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations`)).WithArgs(int64(1), 0).WillReturnResult(sqlmock.NewResult(0, 1))

	err = RunMigrations(db, oracleTestFS, "m", zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_UpToDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version, dirty FROM schema_migrations`)).
		WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}).AddRow(1, 0))

	err = RunMigrations(db, oracleTestFS, "m", zap.NewNop())
	assert.ErrorIs(t, err, migrate.ErrNoChange)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_Dirty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version, dirty FROM schema_migrations`)).
		WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}).AddRow(1, 1))

	err = RunMigrations(db, oracleTestFS, "m", zap.NewNop())
	assert.ErrorContains(t, err, "dirty")
}

func TestRollbackMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version, dirty FROM schema_migrations`)).
		WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}).AddRow(1, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations`)).WithArgs(int64(1), 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE a`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 1))

	err = RollbackMigrations(db, oracleTestFS, "m", false, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
