package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/media"
	"github.com/dmitrijs2005/mediakeeper/internal/repositories/metadata"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	m := New(db, dbx.Postgres)

	var _ RepositoryManager = m
	var _ media.Repository = m.Media(db)
	var _ metadata.Repository = m.Metadata(db)
	assert.Same(t, db, m.DB())
	assert.Equal(t, dbx.Postgres, m.Dialect())
}

func TestRunMigrations_UsesDialectDir(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	orig := gooseUpContext
	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	defer func() { gooseUpContext = orig }()

	require.NoError(t, New(db, dbx.Postgres).RunMigrations(context.Background()))
	assert.Equal(t, "postgres", gotDir)

	require.NoError(t, New(db, dbx.SQLite).RunMigrations(context.Background()))
	assert.Equal(t, "sqlite", gotDir)
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := New(db, dbx.Postgres).RunMigrations(context.Background())
	require.EqualError(t, err, "boom")
}

func TestOpen_SQLiteFile_AppliesSchema(t *testing.T) {
	goose.SetLogger(goose.NopLogger())
	dsn := filepath.Join(t.TempDir(), "media.db")

	m, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, dbx.SQLite, m.Dialect())
	assert.Equal(t, 1, m.DB().Stats().MaxOpenConnections)

	ids, err := m.Media(m.DB()).ListIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, m.Metadata(m.DB()).Set(context.Background(), "k", []byte("v")))
}

func TestOpen_PingFailure_ClosesDB(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("no route"))
	mock.ExpectClose()

	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driver)
		return db, nil
	}
	defer func() { sqlOpen = orig }()

	_, err = Open(context.Background(), "postgres://localhost/media")
	require.ErrorContains(t, err, "no route")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_SQLiteFile_CreatesParentDirectory(t *testing.T) {
	goose.SetLogger(goose.NopLogger())
	dir := filepath.Join(t.TempDir(), "state", "nested")

	m, err := Open(context.Background(), "file:"+filepath.Join(dir, "media.db"))
	require.NoError(t, err)
	defer m.Close()

	assert.DirExists(t, dir)
}
