// Package logging wraps zap.Logger with the hierarchical-naming and
// clone-on-configure conventions used across this codebase's packages.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors zapcore levels so callers need not import zap directly.
type Level int8

const (
	DebugLevel Level = -1
	InfoLevel  Level = 0
	WarnLevel  Level = 1
	ErrorLevel Level = 2
)

// Logger is a named, cloneable wrapper around *zap.Logger.
type Logger struct {
	*zap.Logger
	config *zap.Config
	name   string
}

// New builds a root logger for the given environment ("dev" or "prod").
func New(env string) *Logger {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	built, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: built, config: &cfg}
}

// Named returns a child logger whose name is dotted onto the parent's.
func (l *Logger) Named(name string) *Logger {
	newName := name
	if l.name != "" {
		newName = fmt.Sprintf("%s.%s", l.name, name)
	}
	return &Logger{Logger: l.Logger.Named(name), config: l.config, name: newName}
}

// With returns a child logger carrying the given structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...), config: l.config, name: l.name}
}

// SetLevel adjusts the atomic level shared by this logger and its clones.
func (l *Logger) SetLevel(level Level) {
	l.config.Level.SetLevel(zapcore.Level(level))
}

// AtExit flushes buffered log entries; call via defer at process shutdown.
func (l *Logger) AtExit() {
	if l.Logger != nil {
		_ = l.Logger.Sync()
	}
}
