package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE sync_state (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestSetAndGet_InsertThenGet(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "last_sync_at", []byte("1700000000")))

	v, err := r.Get(ctx, "last_sync_at")
	require.NoError(t, err)
	require.Equal(t, []byte("1700000000"), v)
}

func TestGet_NotExists_ReturnsNilNil(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSet_UpsertOverwritesValue(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("old")))
	require.NoError(t, r.Set(ctx, "k", []byte("new")))

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)
}

func TestList_FiltersByPrefix(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "pending_finalize:1", []byte{0x01}))
	require.NoError(t, r.Set(ctx, "pending_finalize:2", []byte{0x02}))
	require.NoError(t, r.Set(ctx, "last_sync_at", []byte("x")))

	m, err := r.List(ctx, "pending_finalize:")
	require.NoError(t, err)
	assert.Len(t, m, 2)
	assert.Equal(t, []byte{0x01}, m["pending_finalize:1"])

	all, err := r.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDelete_RemovesKey_AndIsIdempotent(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "x", []byte{0x01}))
	require.NoError(t, r.Delete(ctx, "x"))
	require.NoError(t, r.Delete(ctx, "x"))

	v, err := r.Get(ctx, "x")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPostgres_RebindsPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO sync_state \(key, value\) VALUES \(\$1, \$2\)`).
		WithArgs("k", []byte("v")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT value FROM sync_state WHERE key = \$1`).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("v")))

	r := NewSQLRepository(db, dbx.Postgres)
	require.NoError(t, r.Set(context.Background(), "k", []byte("v")))
	v, err := r.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
	require.NoError(t, mock.ExpectationsWereMet())
}
