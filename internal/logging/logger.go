package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// ParseLevel maps debug, info, warn(ing) and error to a level; anything else
// is INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "info"
	}
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	OutputFile string // Path to log file (empty = stderr only)
	MaxSize    int    // Max size in megabytes before rotation (default: 10)
	MaxBackups int    // Number of old log files to keep (default: 3)
	JSONFormat bool
	AddSource  bool
	// Console receives every record besides the file; defaults to stderr so
	// command output on stdout stays machine-readable
	Console io.Writer
}

// Logger owns the slog handler and the optional rotating log file
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *lumberjack.Logger
	mu     sync.Mutex
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// Initialize builds a logger from config and installs it as the slog default,
// so every component logger derived from slog.Default picks it up. A second
// call replaces the first and closes its file.
func Initialize(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	globalMu.Lock()
	prev := globalLogger
	globalLogger = logger
	globalMu.Unlock()

	slog.SetDefault(logger.slog)
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// NewLogger creates a new logger instance with the given configuration
func NewLogger(config Config) (*Logger, error) {
	if config.MaxSize == 0 {
		config.MaxSize = 10
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 3
	}
	if config.Console == nil {
		config.Console = os.Stderr
	}

	logger := &Logger{config: config}
	writers := []io.Writer{config.Console}

	if config.OutputFile != "" {
		// lumberjack creates the directory and rotates while the process runs
		logger.file = &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
		}
		writers = append(writers, logger.file)
	}

	out := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{
		Level:     config.Level.slogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.JSONFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	logger.slog = slog.New(handler)
	return logger, nil
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog returns the underlying slog logger
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// With returns a new logger with additional context
func (l *Logger) With(args ...any) *slog.Logger {
	return l.slog.With(args...)
}

// Rotate moves the current log file aside and starts a new one
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Rotate()
}

// Close closes the log file if one is open
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Global helpers log through the slog default, which Initialize replaces

func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// With returns the slog default with additional context
func With(args ...any) *slog.Logger {
	return slog.Default().With(args...)
}

// Close closes the global logger's file
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// GetLogFilePath returns the current log file path
func GetLogFilePath() string {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		return globalLogger.config.OutputFile
	}
	return ""
}

// DebugConfig returns a configuration for interactive debugging
func DebugConfig() Config {
	return Config{
		Level:     DEBUG,
		AddSource: true,
	}
}

// ProductionConfig returns a configuration for unattended runs
func ProductionConfig(logFile string) Config {
	return Config{
		Level:      INFO,
		OutputFile: logFile,
		MaxSize:    50,
		MaxBackups: 10,
		JSONFormat: true,
	}
}
