// Package logger wraps zap behind the small interface the rest of the module logs through.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface used across packages.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	DebugObj(msg, event string, obj map[string]any)
	InfoObj(msg, event string, obj map[string]any)
	WarnObj(msg, event string, obj map[string]any)
	ErrorObj(msg, event string, obj map[string]any)

	With(fields ...zap.Field) Logger
	Sync() error
}

// Options controls logger construction.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a zap-backed Logger writing to stderr.
func New(opts Options) (Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level))
	return &zapLogger{z: zap.New(core)}, nil
}

// FromZap adapts an existing zap logger.
func FromZap(z *zap.Logger) Logger {
	if z == nil {
		return NopLogger{}
	}
	return &zapLogger{z: z}
}

// ParseLevel converts a textual level into a zap level. Empty means info.
func ParseLevel(raw string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", raw)
	}
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field) { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field) { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

func (l *zapLogger) DebugObj(msg, event string, obj map[string]any) {
	l.z.Debug(msg, objFields(event, obj)...)
}

func (l *zapLogger) InfoObj(msg, event string, obj map[string]any) {
	l.z.Info(msg, objFields(event, obj)...)
}

func (l *zapLogger) WarnObj(msg, event string, obj map[string]any) {
	l.z.Warn(msg, objFields(event, obj)...)
}

func (l *zapLogger) ErrorObj(msg, event string, obj map[string]any) {
	l.z.Error(msg, objFields(event, obj)...)
}

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) Sync() error { return l.z.Sync() }

// objFields flattens an event tag and attribute map into zap fields.
func objFields(event string, obj map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(obj)+1)
	if event != "" {
		fields = append(fields, zap.String("event", event))
	}
	for k, v := range obj {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...zap.Field) {}
func (NopLogger) Info(string, ...zap.Field) {}
func (NopLogger) Warn(string, ...zap.Field) {}
func (NopLogger) Error(string, ...zap.Field) {}
func (NopLogger) DebugObj(string, string, map[string]any) {}
func (NopLogger) InfoObj(string, string, map[string]any) {}
func (NopLogger) WarnObj(string, string, map[string]any) {}
func (NopLogger) ErrorObj(string, string, map[string]any) {}
func (n NopLogger) With(...zap.Field) Logger { return n }
func (NopLogger) Sync() error { return nil }

// Ensure returns log, or a NopLogger when log is nil.
func Ensure(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}
