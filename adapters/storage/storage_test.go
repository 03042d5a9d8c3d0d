package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "utility_bill_history")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "utility_bill_history", `[{"id":"1"}]`))
	v, err := kv.Get(ctx, "utility_bill_history")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, v)

	require.NoError(t, kv.Set(ctx, "utility_bill_history", `[{"id":"1"},{"id":"2"}]`))
	v, err = kv.Get(ctx, "utility_bill_history")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"},{"id":"2"}]`, v)

	require.NoError(t, kv.Remove(ctx, "utility_bill_history"))
	_, err = kv.Get(ctx, "utility_bill_history")
	assert.ErrorIs(t, err, ErrNotFound)

	// removing twice is fine
	require.NoError(t, kv.Remove(ctx, "utility_bill_history"))
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestFileKV(t *testing.T) {
	kv, err := NewFileKV(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)
	exerciseKV(t, kv)
}

func TestFileKVKeepsKeysInsideDirectory(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Set(context.Background(), "../escape", "x"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.Contains(entries[0].Name(), "/"))
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bills.db")

	kv, err := NewSQLiteKV(ctx, path, "")
	require.NoError(t, err)
	exerciseKV(t, kv)

	require.NoError(t, kv.Set(ctx, "k", "persisted"))
	require.NoError(t, kv.Close())

	reopened, err := NewSQLiteKV(ctx, path, "")
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "persisted", v)
}

func TestPostgresKV(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	kv := NewPostgresKVWithDB(db, "bill_kv")
	ctx := context.Background()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS bill_kv`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, kv.EnsureSchema(ctx))

	mock.ExpectQuery(`SELECT value FROM bill_kv WHERE key = \$1`).
		WithArgs("utility_bill_history").
		WillReturnError(sql.ErrNoRows)
	_, err = kv.Get(ctx, "utility_bill_history")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(`INSERT INTO bill_kv`).
		WithArgs("utility_bill_history", "[]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, kv.Set(ctx, "utility_bill_history", "[]"))

	mock.ExpectQuery(`SELECT value FROM bill_kv WHERE key = \$1`).
		WithArgs("utility_bill_history").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("[]"))
	v, err := kv.Get(ctx, "utility_bill_history")
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	mock.ExpectExec(`DELETE FROM bill_kv WHERE key = \$1`).
		WithArgs("utility_bill_history").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, kv.Remove(ctx, "utility_bill_history"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKVUpdateIsTransactional(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	kv := NewPostgresKVWithDB(db, "bill_kv")
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("bill_kv:utility_bill_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT value FROM bill_kv WHERE key = \$1`).
		WithArgs("utility_bill_history").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`["a"]`))
	mock.ExpectExec(`INSERT INTO bill_kv`).
		WithArgs("utility_bill_history", `["a","b"]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = kv.Update(ctx, "utility_bill_history", func(current string, found bool) (string, error) {
		assert.True(t, found)
		assert.Equal(t, `["a"]`, current)
		return `["a","b"]`, nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKVUpdateRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	kv := NewPostgresKVWithDB(db, "bill_kv")
	refused := errors.New("history unreadable")

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT value FROM bill_kv`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err = kv.Update(context.Background(), "utility_bill_history", func(current string, found bool) (string, error) {
		assert.False(t, found)
		return "", refused
	})
	assert.ErrorIs(t, err, refused)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKVWrapsDriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	kv := NewPostgresKVWithDB(db, "")
	boom := errors.New("connection reset")

	mock.ExpectExec(`INSERT INTO kv_store`).WillReturnError(boom)
	err = kv.Set(context.Background(), "k", "v")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

// Runs against a real server when UTILBILL_TEST_REDIS_ADDR is set.
func TestRedisKV(t *testing.T) {
	addr := os.Getenv("UTILBILL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("UTILBILL_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	kv := NewRedisKVWithClient(client, "utilbill-test-"+strconv.Itoa(os.Getpid())+":")
	defer kv.Close()

	exerciseKV(t, kv)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Backend: BackendMemory}.Validate())
	assert.Error(t, Config{Backend: "etcd"}.Validate())
	assert.Error(t, Config{Backend: BackendFile}.Validate())
	assert.Error(t, Config{Backend: BackendSQLite}.Validate())
	assert.Error(t, Config{Backend: BackendPostgres}.Validate())
	assert.Error(t, Config{Backend: BackendRedis}.Validate())
	assert.NoError(t, Config{Backend: BackendRedis, Redis: RedisConfig{Host: "localhost"}}.Validate())

	sqlite := Config{Backend: BackendSQLite, Path: "bills.db"}
	for _, table := range []string{"bill_kv", "_history2", "BillKV"} {
		sqlite.Table = table
		assert.NoError(t, sqlite.Validate(), table)
	}
	for _, table := range []string{"kv; DROP TABLE users", "bill-kv", "2kv", "public.kv", "kv store"} {
		sqlite.Table = table
		assert.Error(t, sqlite.Validate(), table)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	kv, err = Open(ctx, Config{Backend: BackendFile, Directory: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)

	kv, err = Open(ctx, Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "h.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteKV{}, kv)
	require.NoError(t, kv.Close())

	_, err = Open(ctx, Config{Backend: "etcd"})
	assert.Error(t, err)
}
