// Package logging builds the zap loggers used across peerpanel.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New
type Options struct {
	// Level is debug, info, warn or error
	Level string
	// File, when set, receives JSON logs through a rotating writer
	File string
	// JSON switches stderr output from console to JSON encoding
	JSON bool
}

// Rotation limits for the log file
const (
	maxSizeMB  = 20
	maxBackups = 3
	maxAgeDays = 14
)

// New returns a logger writing to stderr and, optionally, a rotating file
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var stderrEnc zapcore.Encoder
	if opts.JSON {
		stderrEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		stderrEnc = zapcore.NewConsoleEncoder(consoleCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stderrEnc, zapcore.Lock(os.Stderr), level),
	}
	if opts.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    maxSizeMB,
				MaxBackups: maxBackups,
				MaxAge:     maxAgeDays,
			}),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (supported: debug, info, warn, error)", s)
	}
}
