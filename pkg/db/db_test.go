package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"

	"tasktracker/pkg/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestDialect(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Type = config.DatabaseSqlite
	cfg.Database.DSN = "file::memory:"

	d, err := Dialect(cfg)
	require.NoError(t, err)
	require.IsType(t, &sqlite.Dialector{}, d)

	cfg.Database.Type = config.DatabasePostgres
	cfg.Database.DSN = ""
	cfg.Database.Host = "db"
	cfg.Database.DBNAME = "tasks"
	d, err = Dialect(cfg)
	require.NoError(t, err)
	pg, ok := d.(*postgres.Dialector)
	require.True(t, ok)
	require.Contains(t, pg.Config.DSN, "host=db")
	require.Contains(t, pg.Config.DSN, "port=5432")
	require.Contains(t, pg.Config.DSN, "dbname=tasks")

	cfg.Database.Type = config.DatabaseMysql
	cfg.Database.User = "root"
	d, err = Dialect(cfg)
	require.NoError(t, err)
	my, ok := d.(*mysql.Dialector)
	require.True(t, ok)
	require.Contains(t, my.Config.DSN, "root:@tcp(db:3306)/tasks")

	cfg.Database.Type = "oracle"
	_, err = Dialect(cfg)
	require.Error(t, err)
}

func TestNewOpensSqlite(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Type = config.DatabaseSqlite
	cfg.Database.DSN = "file::memory:"

	d, err := Dialect(cfg)
	require.NoError(t, err)

	db, err := New(cfg, d)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, sqlDB.Ping())
}

func TestZapGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapGormLogger(zap.New(core), logger.Info, true)

	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sql, nil)
	require.Equal(t, 1, logs.FilterMessage("gorm.query").Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	require.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, 1, logs.FilterMessage("gorm.slow_query").Len())

	before := logs.Len()
	l.Trace(context.Background(), time.Now(), sql, logger.ErrRecordNotFound)
	require.Equal(t, before+1, logs.Len(), "record not found is logged as a plain query")
}

func TestZapGormLoggerSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapGormLogger(zap.New(core), logger.Info, true).LogMode(logger.Silent)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	l.Error(context.Background(), "boom %d", 1)
	require.Equal(t, 0, logs.Len())
}
