package exporters

import (
	"context"
	"net/url"
	"strings"
	"time"

	"tasktracker/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

// ProvideHttp builds an OTLP/HTTP span exporter for OTEL.ADDR. The address is
// either host:port (plain HTTP) or a full http(s) URL.
func ProvideHttp(cfg *config.Config) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return otlptrace.New(ctx, otlptracehttp.NewClient(clientOptions(cfg.Otel.Addr)...))
}

func clientOptions(addr string) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}

	if !strings.Contains(addr, "://") {
		return append(opts, otlptracehttp.WithEndpoint(addr), otlptracehttp.WithInsecure())
	}

	u, err := url.Parse(addr)
	if err != nil {
		return append(opts, otlptracehttp.WithEndpoint(addr), otlptracehttp.WithInsecure())
	}

	opts = append(opts, otlptracehttp.WithEndpoint(u.Host))
	if u.Path != "" && u.Path != "/" {
		opts = append(opts, otlptracehttp.WithURLPath(u.Path))
	}
	if u.Scheme != "https" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}
