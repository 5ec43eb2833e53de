package database

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// goose keeps its base FS, dialect and logger in package state.
var gooseMu sync.Mutex

// Migrate applies every pending goose migration found under dir in fsys and returns the
// resulting schema version.
func Migrate(ctx context.Context, db *sqlx.DB, fsys fs.FS, dir string, logger *zap.Logger) (int64, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{logger.Named("migrate").With(zap.String("dir", dir)).Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return 0, fmt.Errorf("migrate %s: %w", dir, err)
	}
	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return 0, fmt.Errorf("read %s schema version: %w", dir, err)
	}
	return version, nil
}

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.sugar.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.sugar.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}
