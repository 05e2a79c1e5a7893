package otelcol

import (
	"context"

	"tasktracker/pkg/config"
	"tasktracker/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("otelcol", fx.Provide(ProvideTracerProvider))

func defaultTraceProviderOption(cfg *config.Config) []sdktrace.TracerProviderOption {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
	if err != nil {
		res = resource.Default()
	}
	return []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
}

func ProvideTrace(exporter sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append(opts, sdktrace.WithBatcher(exporter))

	return sdktrace.NewTracerProvider(opts...)
}

// ProvideTracerProvider exports spans over OTLP/HTTP when OTEL.ADDR is set and
// installs the provider globally. Without an address the global no-op provider is returned.
func ProvideTracerProvider(lc fx.Lifecycle, cfg *config.Config) (trace.TracerProvider, error) {
	if cfg.Otel.Addr == "" {
		return otel.GetTracerProvider(), nil
	}

	exporter, err := exporters.ProvideHttp(cfg)
	if err != nil {
		return nil, err
	}

	tp := ProvideTrace(exporter, defaultTraceProviderOption(cfg)...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	zap.L().Info("[Otel] exporting traces", zap.String("addr", cfg.Otel.Addr))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}
