// Package log provides the logging abstraction used throughout the PSI
// server and client. It wraps zap so every component logs structured,
// leveled statements without depending on zap directly.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface used across the codebase.
//
//nolint:interfacebloat // kept wide on purpose: one interface for every log site.
type Logger interface {
	Info(keyvals ...interface{})
	Debug(keyvals ...interface{})
	Warn(keyvals ...interface{})
	Error(keyvals ...interface{})
	Fatal(keyvals ...interface{})
	Infow(msg string, keyvals ...interface{})
	Debugw(msg string, keyvals ...interface{})
	Warnw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	With(args ...interface{}) Logger
	Named(s string) Logger
}

type log struct {
	*zap.SugaredLogger
}

func (l *log) With(args ...interface{}) Logger {
	return &log{l.SugaredLogger.With(args...)}
}

func (l *log) Named(s string) Logger {
	return &log{l.SugaredLogger.Named(s)}
}

const (
	InfoLevel  = int(zapcore.InfoLevel)
	DebugLevel = int(zapcore.DebugLevel)
	ErrorLevel = int(zapcore.ErrorLevel)
	WarnLevel  = int(zapcore.WarnLevel)
)

// DefaultLevel is the level the package-level default logger is configured
// at before ConfigureDefaultLogger is called.
var DefaultLevel = InfoLevel

var isDefaultLoggerSet sync.Once
var defaultLogger Logger

func newZapLogger(level int, jsonFormat bool) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if jsonFormat {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.Level(level))
	l := zap.New(core, zap.AddCaller())
	return &log{l.Sugar()}
}

// ConfigureDefaultLogger (re)configures the process-wide default logger.
func ConfigureDefaultLogger(level int, jsonFormat bool) {
	defaultLogger = newZapLogger(level, jsonFormat)
}

// DefaultLogger returns the process-wide default logger, configuring it
// with DefaultLevel on first use if ConfigureDefaultLogger was never called.
func DefaultLogger() Logger {
	isDefaultLoggerSet.Do(func() {
		if defaultLogger == nil {
			defaultLogger = newZapLogger(DefaultLevel, false)
		}
	})
	return defaultLogger
}
