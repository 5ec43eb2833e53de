package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/univ-erp-api/migrations"
)

func TestEmbeddedMigrationsAreGooseFiles(t *testing.T) {
	for _, dir := range []string{migrations.AuthDir, migrations.ErpDir} {
		entries, err := fs.ReadDir(migrations.FS, dir)
		require.NoError(t, err)
		require.NotEmpty(t, entries, dir)
		for _, entry := range entries {
			raw, err := fs.ReadFile(migrations.FS, dir+"/"+entry.Name())
			require.NoError(t, err)
			body := string(raw)
			assert.True(t, strings.HasPrefix(body, "-- +goose Up"), entry.Name())
			assert.Contains(t, body, "-- +goose Down", entry.Name())
		}
	}
}

func TestMigrateReportsStoreFailure(t *testing.T) {
	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	_, err = Migrate(context.Background(), db, migrations.FS, migrations.ErpDir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate erp")
}

func TestGooseLoggerWritesThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gooseLogger{zap.New(core).Sugar()}.Printf("OK   %s (%s)\n", "0001_academic.sql", "3ms")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "OK   0001_academic.sql (3ms)", entries[0].Message)
}
