package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"wiki-quiz/internal/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations. SQLite goes through
// golang-migrate; Oracle, which golang-migrate has no driver for, uses a
// small runner that keeps the same schema_migrations bookkeeping.
type Migrator struct {
	driver string
	db     *sql.DB
	m      *migrate.Migrate
	logger *zap.Logger
}

// NewMigrator opens a dedicated connection for migrations. Close releases it.
func NewMigrator(cfg config.DBConfig, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sql.Open(config.DriverSQLite, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("could not open database: %w", err)
		}
		m, err := newSQLiteMigrate(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &Migrator{driver: cfg.Driver, db: db, m: m, logger: logger}, nil
	case config.DriverOracle:
		db, err := NewMigrateOracleDB(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Migrator{driver: cfg.Driver, db: db, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func newSQLiteMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		return nil, fmt.Errorf("could not load migrations: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, config.DriverSQLite, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	return m, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	var err error
	if mg.m != nil {
		err = mg.m.Up()
	} else {
		err = RunMigrations(mg.db, migrationsFS, "migrations/oracle", mg.logger)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	mg.logger.Info("Migrations completed successfully", zap.String("driver", mg.driver))
	return nil
}

// Down rolls back one migration, or all of them when all is set.
func (mg *Migrator) Down(all bool) error {
	var err error
	switch {
	case mg.m != nil && all:
		err = mg.m.Down()
	case mg.m != nil:
		err = mg.m.Steps(-1)
	default:
		err = RollbackMigrations(mg.db, migrationsFS, "migrations/oracle", all, mg.logger)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	mg.logger.Info("Rollback completed", zap.String("driver", mg.driver), zap.Bool("all", all))
	return nil
}

// Version reports the applied schema version. ok is false on an empty schema.
func (mg *Migrator) Version() (version uint, dirty bool, ok bool, err error) {
	if mg.m != nil {
		version, dirty, err = mg.m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, false, nil
		}
		return version, dirty, err == nil, err
	}

	if err := ensureVersionTable(mg.db); err != nil {
		return 0, false, false, err
	}
	return currentVersion(mg.db)
}

func (mg *Migrator) Close() error {
	if mg.m != nil {
		srcErr, dbErr := mg.m.Close()
		return errors.Join(srcErr, dbErr)
	}
	return mg.db.Close()
}

// NewMigrateOracleDB opens a plain database/sql handle through go-ora.
func NewMigrateOracleDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open(config.DriverOracle, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ping database: %w", err)
	}

	return db, nil
}

type migrationFile struct {
	version uint
	up      string
	down    string
}

// loadMigrations reads golang-migrate style files
// ({version}_{title}.up.sql / .down.sql) from dir, ordered by version.
func loadMigrations(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("could not read migrations directory: %w", err)
	}

	byVersion := make(map[uint]*migrationFile)
	for _, entry := range entries {
		name := entry.Name()
		var up bool
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			up = true
		case strings.HasSuffix(name, ".down.sql"):
		default:
			continue
		}

		prefix, _, found := strings.Cut(name, "_")
		if !found {
			return nil, fmt.Errorf("migration file %s has no version prefix", name)
		}
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration file %s has an invalid version: %w", name, err)
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("could not read migration file %s: %w", name, err)
		}

		mf, ok := byVersion[uint(v)]
		if !ok {
			mf = &migrationFile{version: uint(v)}
			byVersion[uint(v)] = mf
		}
		if up {
			mf.up = string(content)
		} else {
			mf.down = string(content)
		}
	}

	files := make([]migrationFile, 0, len(byVersion))
	for _, mf := range byVersion {
		files = append(files, *mf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// splitStatements splits a script on ';'. go-ora executes one statement per
// call, and the migrations contain no PL/SQL blocks.
func splitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ORA-00955")
}

func ensureVersionTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE schema_migrations (version NUMBER(19) NOT NULL, dirty NUMBER(1) NOT NULL)`)
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("could not create schema_migrations: %w", err)
	}
	return nil
}

func currentVersion(db *sql.DB) (uint, bool, bool, error) {
	var version int64
	var dirty int
	err := db.QueryRow(`SELECT version, dirty FROM schema_migrations`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("could not read schema version: %w", err)
	}
	return uint(version), dirty != 0, true, nil
}

func setVersion(db *sql.DB, version uint, dirty bool) error {
	if _, err := db.Exec(`DELETE FROM schema_migrations`); err != nil {
		return fmt.Errorf("could not reset schema version: %w", err)
	}
	d := 0
	if dirty {
		d = 1
	}
	if _, err := db.Exec(`INSERT INTO schema_migrations (version, dirty) VALUES (:1, :2)`, int64(version), d); err != nil {
		return fmt.Errorf("could not record schema version: %w", err)
	}
	return nil
}

func clearVersion(db *sql.DB) error {
	if _, err := db.Exec(`DELETE FROM schema_migrations`); err != nil {
		return fmt.Errorf("could not reset schema version: %w", err)
	}
	return nil
}

func execScript(db *sql.DB, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RunMigrations applies the pending .up.sql files under dir in version order.
func RunMigrations(db *sql.DB, fsys fs.FS, dir string, logger *zap.Logger) error {
	files, err := loadMigrations(fsys, dir)
	if err != nil {
		return err
	}
	if err := ensureVersionTable(db); err != nil {
		return err
	}

	current, dirty, ok, err := currentVersion(db)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d", current)
	}

	applied := 0
	for _, mf := range files {
		if ok && mf.version <= current {
			continue
		}
		if err := setVersion(db, mf.version, true); err != nil {
			return err
		}
		if err := execScript(db, mf.up); err != nil {
			return fmt.Errorf("could not execute migration %d: %w", mf.version, err)
		}
		if err := setVersion(db, mf.version, false); err != nil {
			return err
		}
		applied++
		logger.Info("Executed migration", zap.Uint("version", mf.version))
	}

	if applied == 0 {
		return migrate.ErrNoChange
	}
	return nil
}

// RollbackMigrations runs .down.sql files from the current version downwards,
// one step or all of them.
func RollbackMigrations(db *sql.DB, fsys fs.FS, dir string, all bool, logger *zap.Logger) error {
	files, err := loadMigrations(fsys, dir)
	if err != nil {
		return err
	}
	if err := ensureVersionTable(db); err != nil {
		return err
	}

	current, _, ok, err := currentVersion(db)
	if err != nil {
		return err
	}
	if !ok {
		return migrate.ErrNoChange
	}

	for i := len(files) - 1; i >= 0; i-- {
		mf := files[i]
		if mf.version > current {
			continue
		}
		if err := setVersion(db, mf.version, true); err != nil {
			return err
		}
		if err := execScript(db, mf.down); err != nil {
			return fmt.Errorf("could not roll back migration %d: %w", mf.version, err)
		}
		if i > 0 {
			err = setVersion(db, files[i-1].version, false)
		} else {
			err = clearVersion(db)
		}
		if err != nil {
			return err
		}
		logger.Info("Rolled back migration", zap.Uint("version", mf.version))
		if !all {
			break
		}
	}
	return nil
}
