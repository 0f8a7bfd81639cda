package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-api/internal/shared/config"
)

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	prev := openDB
	openDB = func(driverName, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driverName)
		return mockDB, nil
	}
	t.Cleanup(func() {
		openDB = prev
		_ = mockDB.Close()
	})
	return mock
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "  ", DefaultServerOptions())
	require.Error(t, err)
}

func TestConnectAppliesOptionsFromConfig(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectPing()

	opts := OptionsFromConfig(DefaultServerOptions(), config.Config{
		DBMaxOpenConns:    7,
		DBMaxIdleConns:    3,
		DBConnMaxLifetime: "20m",
		DBConnMaxIdleTime: "45s",
		DBPingTimeout:     "1s",
	})
	db, err := Connect(context.Background(), "postgres://ignored", opts)
	require.NoError(t, err)

	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
	assert.Equal(t, 3, opts.MaxIdleConns)
	assert.Equal(t, 20*time.Minute, opts.ConnMaxLifetime)
	assert.Equal(t, 45*time.Second, opts.ConnMaxIdleTime)
	assert.Equal(t, time.Second, opts.PingTimeout)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionsFromConfigIgnoresInvalidValues(t *testing.T) {
	t.Setenv("DB_PING_TIMEOUT", "1ms")

	opts := OptionsFromConfig(DefaultMigrateOptions(), config.Config{
		DBMaxOpenConns:    -1,
		DBPingTimeout:     "soon",
		DBConnMaxLifetime: "-5m",
	})
	assert.Equal(t, DefaultMigrateOptions(), opts)
}

func TestConnectFailsWhenPingFails(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err := Connect(context.Background(), "postgres://ignored", DefaultMigrateOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping database")
}
