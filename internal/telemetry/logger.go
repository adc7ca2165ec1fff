package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// InitLoggerProvider initializes the OpenTelemetry logger provider.
// It configures an OTLP gRPC exporter and returns a slog.Logger that
// bridges to OpenTelemetry for log-trace correlation.
func InitLoggerProvider(ctx context.Context, serviceName, otlpEndpoint, environment string) (*sdklog.LoggerProvider, *slog.Logger, error) {
	conn, err := dial(otlpEndpoint)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	res, err := newResource(serviceName, environment)
	if err != nil {
		return nil, nil, err
	}

	// Create logger provider with batch processor
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)

	global.SetLoggerProvider(lp)

	logger := otelslog.NewLogger(serviceName)

	return lp, logger, nil
}

// NewLocalLogger builds a slog.Logger on top of zap for runs without a
// collector. pretty selects the colored console encoder, otherwise JSON.
// The returned func flushes buffered entries.
func NewLocalLogger(level string, pretty bool) (*slog.Logger, func() error, error) {
	var cfg zap.Config
	if pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	base, err := cfg.Build(zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return nil, nil, fmt.Errorf("build zap logger: %w", err)
	}

	return slog.New(zapslog.NewHandler(base.Core())), base.Sync, nil
}

// ParseLevel maps debug, info, warn and error to zap levels. An empty
// string means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
