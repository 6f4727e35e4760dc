// Package logger provides structured logging for the storage engine.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with engine-specific helpers.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger.
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "minisql").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

func (l *Logger) Info(msg string) *zerolog.Event  { return l.zlog.Info().Str("msg", msg) }
func (l *Logger) Debug(msg string) *zerolog.Event { return l.zlog.Debug().Str("msg", msg) }
func (l *Logger) Warn(msg string) *zerolog.Event  { return l.zlog.Warn().Str("msg", msg) }
func (l *Logger) Error(msg string) *zerolog.Event { return l.zlog.Error().Str("msg", msg) }

// WithFields returns a logger with additional fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// Component returns a logger tagged with the given subsystem name, the way
// the storage engine's layers (disk, buffer, btree, catalog) identify
// themselves in structured log output.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// LogEviction logs a buffer-pool frame eviction.
func (l *Logger) LogEviction(pageID int32, dirty bool) {
	l.zlog.Debug().
		Str("component", "buffer").
		Int32("page_id", pageID).
		Bool("dirty", dirty).
		Msg("evicting frame")
}

// LogExtentGrowth logs the disk manager creating a new extent.
func (l *Logger) LogExtentGrowth(extentIndex int) {
	l.zlog.Debug().
		Str("component", "disk").
		Int("extent", extentIndex).
		Msg("allocated new extent")
}

// LogSplit logs a B+-tree node split.
func (l *Logger) LogSplit(pageID int32, leaf bool) {
	l.zlog.Debug().
		Str("component", "btree").
		Int32("page_id", pageID).
		Bool("leaf", leaf).
		Msg("node split")
}

// LogMerge logs a B+-tree coalesce/redistribute decision.
func (l *Logger) LogMerge(pageID int32, redistributed bool) {
	l.zlog.Debug().
		Str("component", "btree").
		Int32("page_id", pageID).
		Bool("redistributed", redistributed).
		Msg("node underflow handled")
}

// LogTableCreated logs catalog registration of a new table.
func (l *Logger) LogTableCreated(name string, tableID uint32) {
	l.zlog.Debug().
		Str("component", "catalog").
		Str("table", name).
		Uint32("table_id", tableID).
		Msg("table created")
}

// LogTableDropped logs catalog removal of a table.
func (l *Logger) LogTableDropped(name string, tableID uint32) {
	l.zlog.Debug().
		Str("component", "catalog").
		Str("table", name).
		Uint32("table_id", tableID).
		Msg("table dropped")
}

// LogIndexCreated logs catalog registration of a new index, including the
// number of existing rows it backfilled from.
func (l *Logger) LogIndexCreated(name, table string, indexID uint32, backfilled int) {
	l.zlog.Debug().
		Str("component", "catalog").
		Str("index", name).
		Str("table", table).
		Uint32("index_id", indexID).
		Int("backfilled", backfilled).
		Msg("index created")
}

// LogIndexDropped logs catalog removal of an index.
func (l *Logger) LogIndexDropped(name, table string, indexID uint32) {
	l.zlog.Debug().
		Str("component", "catalog").
		Str("index", name).
		Str("table", table).
		Uint32("index_id", indexID).
		Msg("index dropped")
}

// Global logger instance, lazily initialized on first use.
var globalLogger *Logger

// InitGlobalLogger initializes the global logger.
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance, initializing it with
// sane defaults on first use.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{Level: "info", Pretty: false})
	}
	return globalLogger
}
