// Package logging provides config-driven categorized file-based logging for researchNERD.
// Logs are written to .nerd/logs/ with separate files per category.
// Logging is controlled by debug_mode in the research config - when false, no logs are written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system.
type Category string

const (
	// Core system categories
	CategoryBoot      Category = "boot"      // Boot/initialization
	CategoryConductor Category = "conductor" // Research orchestration
	CategoryAPI       Category = "api"       // LLM API calls

	// Retrieval categories
	CategoryRetriever Category = "retriever" // Search retriever fan-out
	CategoryScraper   Category = "scraper"   // URL scraping
	CategoryMCP       Category = "mcp"       // MCP client, tool selection, tool calls

	// Context categories
	CategoryContext   Category = "context"   // Context ranking and compression
	CategoryEmbedding Category = "embedding" // Embedding engine
	CategoryStore     Category = "store"     // Vector store operations

	// Output categories
	CategoryReport Category = "report" // Report generation
	CategoryStream Category = "stream" // Stream event publishing
)

// Logger wraps a zap sugared logger bound to a category file.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	enabled  bool
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	logsDir   string
	debugMode bool
	logLevel  zapcore.Level = zapcore.InfoLevel
	nopLogger               = &Logger{sugar: zap.NewNop().Sugar()}
)

// Initialize sets up the logging directory. Should be called once at startup
// with the workspace path. When debug is false, all loggers are silent no-ops.
func Initialize(workspace string, debug bool, level string) error {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	debugMode = debug
	switch level {
	case "debug":
		logLevel = zapcore.DebugLevel
	case "warn":
		logLevel = zapcore.WarnLevel
	case "error":
		logLevel = zapcore.ErrorLevel
	default:
		logLevel = zapcore.InfoLevel
	}

	if !debugMode {
		return nil
	}
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	logsDir = filepath.Join(workspace, ".nerd", "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := getLocked(CategoryBoot)
	boot.Info("=== researchNERD logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", logLevel)
	return nil
}

// Get returns the logger for a category, creating it on first use.
func Get(category Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	return getLocked(category)
}

func getLocked(category Category) *Logger {
	if l, ok := loggers[category]; ok {
		return l
	}
	if !debugMode {
		loggers[category] = nopLogger
		return nopLogger
	}

	path := filepath.Join(logsDir, string(category)+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] failed to open %s: %v\n", path, err)
		loggers[category] = nopLogger
		return nopLogger
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(file),
		logLevel,
	)
	l := &Logger{
		category: category,
		sugar:    zap.New(core).Sugar().Named(string(category)),
		enabled:  true,
	}
	loggers[category] = l
	return l
}

// Sync flushes all open category loggers.
func Sync() {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	for _, l := range loggers {
		if l.enabled {
			_ = l.sugar.Sync()
		}
	}
}

// Reset closes all loggers and clears state. Intended for tests.
func Reset() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.enabled {
			_ = l.sugar.Sync()
		}
	}
	loggers = make(map[Category]*Logger)
	debugMode = false
	logsDir = ""
}

// Debug logs a debug-level message.
func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warn-level message.
func (l *Logger) Warn(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error-level message.
func (l *Logger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// Convenience wrappers for the chattiest categories.

// Conductor logs an info message to the conductor category.
func Conductor(format string, args ...any) { Get(CategoryConductor).Info(format, args...) }

// Scraper logs an info message to the scraper category.
func Scraper(format string, args ...any) { Get(CategoryScraper).Info(format, args...) }

// MCP logs an info message to the mcp category.
func MCP(format string, args ...any) { Get(CategoryMCP).Info(format, args...) }

// Retriever logs an info message to the retriever category.
func Retriever(format string, args ...any) { Get(CategoryRetriever).Info(format, args...) }
