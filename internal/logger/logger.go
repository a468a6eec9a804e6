// internal/logger/logger.go
package logger

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger оборачивает zap.Logger и знает, как корректно синхронизироваться.
type Logger struct {
	*zap.Logger
}

// New tees a console core on stdout with a JSON core writing to a rotated
// file. Either side can be switched off through Quiet and an empty LogFile.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Development {
		level.SetLevel(zapcore.DebugLevel)
	}
	enc := encoderConfig()

	var cores []zapcore.Core
	if !cfg.Quiet {
		console := zapcore.NewConsoleEncoder(enc)
		cores = append(cores, zapcore.NewCore(console, zapcore.Lock(os.Stdout), level))
	}
	if cfg.LogFile != "" {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(cfg.rotator()), level))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return &Logger{Logger: zap.New(zapcore.NewTee(cores...), opts...)}, nil
}

// одинаковые ключи для консоли и файла
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func (c *Config) rotator() *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// Sync ignores the errors terminals return for fsync on stdout.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

// WithOperation tags base with an operation name and a fresh correlation id.
func WithOperation(base *zap.Logger, operation string) *zap.Logger {
	return base.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.NewString()),
	)
}

// WithComponent names the subsystem an entry came from.
func WithComponent(base *zap.Logger, component string) *zap.Logger {
	return base.With(zap.String("component", component))
}

// Track logs the start of operation at debug and returns a func that logs
// its duration and outcome. Failures are logged at warn.
func Track(base *zap.Logger, operation string) (done func(err error)) {
	start := time.Now()
	opLogger := WithOperation(base, operation)
	opLogger.Debug("Starting operation")

	return func(err error) {
		fields := []zap.Field{
			zap.Duration("duration", time.Since(start)),
			zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		}
		if err != nil {
			opLogger.Warn("Operation failed", append(fields, zap.Error(err))...)
			return
		}
		opLogger.Debug("Operation completed", fields...)
	}
}
