package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/microhabits/internal/constants"
)

var (
	// Logger is the global logger instance
	Logger *log.Logger
)

// Config holds logger configuration
type Config struct {
	Debug     bool
	ConfigDir string
	// Level overrides the level implied by Debug: debug, info, warn or error.
	Level string
	// Format is text (default), json or logfmt.
	Format string
	// Console mirrors output to stderr without switching to debug level.
	// Long-running commands such as serve and watch set it.
	Console bool
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	level, err := parseLevel(cfg)
	if err != nil {
		return err
	}
	formatter, err := parseFormat(cfg.Format)
	if err != nil {
		return err
	}

	logDir := filepath.Join(cfg.ConfigDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, constants.AppName+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	var writer io.Writer = fileWriter
	if cfg.Debug || cfg.Console {
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
		Formatter:       formatter,
	})

	return nil
}

func parseLevel(cfg Config) (log.Level, error) {
	if cfg.Level != "" {
		level, err := log.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return 0, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		return level, nil
	}
	if cfg.Debug {
		return log.DebugLevel, nil
	}
	// A console without --debug still wants lifecycle messages
	if cfg.Console {
		return log.InfoLevel, nil
	}
	return log.WarnLevel, nil
}

func parseFormat(format string) (log.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("invalid log format %q, want text, json or logfmt", format)
	}
}

// With returns a child logger carrying the given key/value pairs.
// It falls back to a discarding logger when Init has not been called.
func With(keyvals ...interface{}) *log.Logger {
	if Logger == nil {
		return log.New(io.Discard)
	}
	return Logger.With(keyvals...)
}

// ForComponent returns a child logger tagged with the subsystem name.
func ForComponent(component string) *log.Logger {
	return With("component", component)
}

// ForOwner returns a child logger tagged with the subsystem and the habit owner
// it works for, so one user's loop can be followed through a shared log file.
func ForOwner(component, owner string) *log.Logger {
	return With("component", component, "owner", owner)
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
