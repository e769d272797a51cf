package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var base = newDefault()

// Options controls log output destination and verbosity.
type Options struct {
	Level      string // debug, info, warn, error
	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
}

func newDefault() *zap.Logger {
	enc := zapcore.NewConsoleEncoder(devEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), zapcore.InfoLevel)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func devEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// Init reconfigures the package logger. Safe to call once at startup.
func Init(opts Options) {
	level := zapcore.InfoLevel
	if err := level.Set(opts.Level); err != nil {
		level = zapcore.InfoLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(devEncoderConfig()), zapcore.Lock(os.Stdout), level),
	}
	if opts.FilePath != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), w, level))
	}

	base = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

// Pair builds a structured key/value field.
func Pair(key string, value any) zap.Field {
	return zap.Any(key, value)
}

func Debug(msg string, fields ...zap.Field) { base.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { base.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { base.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { base.Error(msg, fields...) }

// Sync flushes buffered log entries.
func Sync() { _ = base.Sync() }
