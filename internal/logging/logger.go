// Package logging builds the structured zap loggers used by hgboot.
// Loggers are created once at startup and handed to each component; every
// component logs under its own category name so a single startup run can be
// filtered per stage.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryStartup   Category = "startup"   // Sequencer, readiness wait
	CategoryConnect   Category = "connect"   // Gateway discovery, Galaxy connection
	CategoryImport    Category = "import"    // Dataset import and linking
	CategoryGenome    Category = "genome"    // Chromosome size downloads
	CategoryRegister  Category = "register"  // Tileset ingestion
	CategoryViewConf  Category = "viewconf"  // View configuration synthesis
	CategoryWebServer Category = "webserver" // nginx config swap, index rewrite, reload
	CategoryExec      Category = "exec"      // Child process execution
	CategoryStore     Category = "store"     // higlass-server database access
)

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Options struct {
	Debug  bool
	Format string // console, json
}

// New builds the root logger. Debug enables debug level and caller/stack
// annotations the way zap's development config does.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch strings.ToLower(opts.Format) {
	case "", "console", "text":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		cfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q (valid: console, json)", opts.Format)
	}

	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Development = true
	}
	// Startup output is short; sampling would drop per-dataset lines.
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Named returns a child logger for the given category.
func Named(l *zap.Logger, category Category) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.Named(string(category))
}

// Timer tracks operation duration
type Timer struct {
	logger *zap.Logger
	op     string
	start  time.Time
}

// StartTimer creates a timer for measuring operation duration
func StartTimer(l *zap.Logger, operation string) *Timer {
	if l == nil {
		l = zap.NewNop()
	}
	return &Timer{
		logger: l,
		op:     operation,
		start:  time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Debug(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Info(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}
