package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/lumberjack.v3"
)

type Options struct {
	Level      string // debug, info, warn, error; LOG_LEVEL overrides
	Filename   string // empty disables the rotating JSON file
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days
	Console    bool
	// Extra receives console-formatted entries, e.g. the dashboard log panel.
	Extra io.Writer
}

func DefaultOptions() Options {
	return Options{
		Level:      "info",
		Filename:   "logs/app.log",
		MaxSize:    5,
		MaxBackups: 10,
		MaxAge:     14,
		Console:    true,
	}
}

// ParseLevel resolves the effective level: LOG_LEVEL first, then the configured value.
func ParseLevel(configured string) zapcore.Level {
	level := zap.InfoLevel
	if configured != "" {
		if parsed, err := zapcore.ParseLevel(configured); err == nil {
			level = parsed
		}
	}
	if levelEnv := os.Getenv("LOG_LEVEL"); levelEnv != "" {
		if parsed, err := zapcore.ParseLevel(levelEnv); err == nil {
			level = parsed
		}
	}
	return level
}

func New(opts Options) (*zap.Logger, error) {
	logLevel := zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	productionCfg := zap.NewProductionEncoderConfig()
	productionCfg.TimeKey = "timestamp"
	productionCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	developmentCfg := zap.NewDevelopmentEncoderConfig()
	developmentCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	plainCfg := zap.NewDevelopmentEncoderConfig()
	plainCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	plainCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	var cores []zapcore.Core
	if opts.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(developmentCfg), zapcore.AddSync(os.Stdout), logLevel))
	}
	if opts.Extra != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(plainCfg), zapcore.AddSync(opts.Extra), logLevel))
	}
	if opts.Filename != "" {
		fileHandler, err := lumberjack.New(
			lumberjack.WithFileName(opts.Filename),
			lumberjack.WithMaxBytes(int64(opts.MaxSize*1024*1024)),
			lumberjack.WithMaxBackups(opts.MaxBackups),
			lumberjack.WithMaxDays(opts.MaxAge),
			lumberjack.WithCompress(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create file handler: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(productionCfg), zapcore.AddSync(fileHandler), logLevel))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
