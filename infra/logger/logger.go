package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	corelogger "github.com/kilianp07/gcsproxy/core/logger"
)

// Alias the core interface for convenience.
// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.NopLogger

// Options controls the process wide log output.
type Options struct {
	// Level is a zerolog level name: debug, info, warn, error.
	Level string
	// Format is "json" or "console". Empty falls back to APP_ENV detection.
	Format string
	// File enables rotating file output in addition to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu     sync.RWMutex
	output io.Writer = os.Stdout
	format string
)

// Configure applies opts to every logger created afterwards.
func Configure(opts Options) error {
	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		lvl = l
	}
	var w io.Writer = os.Stdout
	if opts.File != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
	}
	zerolog.SetGlobalLevel(lvl)
	mu.Lock()
	output = w
	format = strings.ToLower(opts.Format)
	mu.Unlock()
	return nil
}

// New returns a Logger for the given component. The environment is detected via
// the APP_ENV variable unless a format was configured.
func New(component string) Logger {
	return NewZerologLogger(component)
}
