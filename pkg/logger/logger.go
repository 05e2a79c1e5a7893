package logger

import (
	"tasktracker/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("zap",
	fx.Provide(
		New,
	),
)

type ConfigParams struct {
	fx.In
	Cfg *config.Config
}

func New(p ConfigParams) (*zap.Logger, error) {
	log, err := Build(p.Cfg)
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(log)

	return log, nil
}

// Build returns a development logger, or a JSON logger when running in production.
func Build(cfg *config.Config) (*zap.Logger, error) {
	if cfg == nil || !cfg.IsProduction() {
		log, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		return withService(log, cfg), nil
	}

	zc := zap.NewProductionConfig()
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.StacktraceKey = "stacktrace"
	zc.EncoderConfig.LevelKey = "severity"
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.EncoderConfig.CallerKey = "caller"
	zc.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	zc.Encoding = "json"
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}

	log, err := zc.Build()
	if err != nil {
		return nil, err
	}

	return withService(log, cfg), nil
}

func withService(log *zap.Logger, cfg *config.Config) *zap.Logger {
	if cfg == nil {
		return log
	}
	return log.With(
		zap.String("env", cfg.AppEnv),
		zap.String("service_name", cfg.AppName),
	)
}
