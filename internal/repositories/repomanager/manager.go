// Package repomanager opens the metadata database, applies the embedded goose
// migrations for its dialect, and vends repositories bound to either the
// database or a transaction.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/filex"
	"github.com/dmitrijs2005/mediakeeper/internal/migrations"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/media"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/metadata"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

type RepositoryManager interface {
	DB() *sql.DB
	Dialect() dbx.Dialect
	Media(db dbx.DBTX) media.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

// SQLRepositoryManager vends SQLite or Postgres backed repositories.
type SQLRepositoryManager struct {
	db      *sql.DB
	dialect dbx.Dialect
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// New wraps an already opened database.
func New(db *sql.DB, dialect dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{db: db, dialect: dialect}
}

// Open connects to dsn, configures the pool for the dialect and runs the
// migrations. The dialect is inferred from the DSN.
func Open(ctx context.Context, dsn string) (*SQLRepositoryManager, error) {
	dialect := dbx.DialectFromDSN(dsn)

	if dialect == dbx.SQLite {
		if file := filex.SQLiteFile(dsn); file != "" {
			if _, err := filex.EnsureParentDir(file); err != nil {
				return nil, fmt.Errorf("failed to prepare database directory: %w", err)
			}
		}
	}

	db, err := sqlOpen(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	m := New(db, dialect)
	if err := m.configure(ctx, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return m, nil
}

// configure serialises SQLite access through one connection so transactions
// never meet SQLITE_BUSY, and enables WAL for file databases.
func (m *SQLRepositoryManager) configure(ctx context.Context, dsn string) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach %s database: %w", m.dialect, err)
	}
	if m.dialect != dbx.SQLite {
		return nil
	}

	m.db.SetMaxOpenConns(1)
	pragmas := []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"}
	if !strings.Contains(dsn, ":memory:") && !strings.Contains(dsn, "mode=memory") {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := m.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// RunMigrations applies the embedded migrations for the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return err
	}
	return gooseUpContext(ctx, m.db, migrations.Dir(m.dialect))
}

func (m *SQLRepositoryManager) DB() *sql.DB { return m.db }

func (m *SQLRepositoryManager) Dialect() dbx.Dialect { return m.dialect }

// Media returns a media.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Media(db dbx.DBTX) media.Repository {
	return media.NewSQLRepository(db, m.dialect)
}

// Metadata returns a metadata.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Close() error {
	return m.db.Close()
}
