package db

import (
	"context"
	"fmt"
	"time"

	"tasktracker/pkg/config"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/prometheus"
)

var Module = fx.Module("database",
	fx.Provide(
		Dialect,
		New,
	),
	fx.Invoke(RegisterConnectionPool),
)

const (
	connectAttempts = 5
	connectBackoff  = 3 * time.Second
)

// Dialect picks the gorm driver for DATABASE.TYPE. DATABASE.DSN wins over the
// individual HOST/PORT/... keys when both are set.
func Dialect(cfg *config.Config) (gorm.Dialector, error) {
	d := cfg.Database
	switch d.Type {
	case config.DatabaseSqlite:
		return sqlite.Open(d.DSN), nil
	case config.DatabasePostgres:
		dsn := d.DSN
		if dsn == "" {
			port := d.Port
			if port == "" {
				port = "5432"
			}
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
				d.Host, d.User, d.Password, d.DBNAME, port, d.SSLMode, d.Timezone)
		}
		return postgres.Open(dsn), nil
	case config.DatabaseMysql:
		dsn := d.DSN
		if dsn == "" {
			port := d.Port
			if port == "" {
				port = "3306"
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				d.User, d.Password, d.Host, port, d.DBNAME)
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", d.Type)
	}
}

func New(cfg *config.Config, dialector gorm.Dialector) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	logLevel := logger.Info
	showSQL := true
	if cfg.IsProduction() {
		logLevel = logger.Warn
		showSQL = false
	}

	gormLogger := NewZapGormLogger(zap.L(), logLevel, showSQL)

	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger:  gormLogger,
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
		if err == nil {
			break
		}
		zap.L().Warn("[DB] Database not ready, retrying...", zap.Int("retry", i+1), zap.Duration("backoff", connectBackoff), zap.Error(err))
		time.Sleep(connectBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", cfg.Database.Type, err)
	}

	if cfg.Otel.Addr != "" {
		if err := Otel(db); err != nil {
			return nil, err
		}
	}

	if cfg.Metrics.Enable {
		if err := Metric(db, cfg); err != nil {
			return nil, err
		}
	}

	zap.L().Info("[DB] Database connection successfully configured.", zap.String("type", cfg.Database.Type))

	return db, nil
}

type connectionPoolParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Config    *config.Config
}

func RegisterConnectionPool(p connectionPoolParams) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB from gorm: %w", err)
	}

	cp := p.Config.Database.ConnectionPool
	maxOpen := cp.MaxOpenConns
	if p.Config.Database.Type == config.DatabaseSqlite {
		// sqlite allows a single writer; more connections only produce SQLITE_BUSY.
		maxOpen = 1
	}

	sqlDB.SetMaxIdleConns(cp.MaxIdleConn)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(cp.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cp.ConnMaxIdleTime)

	zap.L().Info("[DB] Connection pool configured", zap.Int("max_open", maxOpen), zap.Int("max_idle", cp.MaxIdleConn))
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			zap.L().Info("[DB] Closing connection pool...")
			return sqlDB.Close()
		},
	})

	return nil
}

func Otel(db *gorm.DB) error {
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		zap.L().Error("failed to register db telemetry", zap.Error(err))
		return err
	}

	return nil
}

// Metric registers the gorm prometheus collectors on the default registry,
// which the /metrics endpoint serves.
func Metric(db *gorm.DB, cfg *config.Config) error {
	var collectors []prometheus.MetricsCollector
	switch cfg.Database.Type {
	case config.DatabasePostgres:
		collectors = append(collectors, &prometheus.Postgres{
			VariableNames: []string{"Threads_running"},
		})
	case config.DatabaseMysql:
		collectors = append(collectors, &prometheus.MySQL{
			VariableNames: []string{"Threads_running"},
		})
	}

	if err := db.Use(prometheus.New(prometheus.Config{
		DBName:           dbName(cfg),
		RefreshInterval:  15,
		StartServer:      false,
		MetricsCollector: collectors,
	})); err != nil {
		zap.L().Error("failed to register db metrics", zap.Error(err))
		return err
	}
	return nil
}

func dbName(cfg *config.Config) string {
	if cfg.Database.Type == config.DatabaseSqlite {
		return cfg.Database.DSN
	}
	if cfg.Database.DBNAME != "" {
		return cfg.Database.DBNAME
	}
	return "unknown"
}
