// Package logger is the process-wide structured log: a rotating file under
// the state directory, mirrored to stderr in debug mode.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/filialwatch/internal/constants"
)

// Rotation of the log file.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

var (
	// Logger is nil until Init or InitWriter; the helpers below are no-ops
	// until then.
	Logger *log.Logger

	filePath string
)

type Config struct {
	Debug     bool
	ConfigDir string
	// Quiet keeps stderr clean even in debug mode (the TUI owns the terminal).
	Quiet bool
}

func (c Config) level() log.Level {
	if c.Debug {
		return log.DebugLevel
	}
	return log.InfoLevel
}

// Init logs to <ConfigDir>/logs/filialwatch.log, and also to stderr when
// Debug is set and Quiet is not.
func Init(cfg Config) error {
	dir := filepath.Join(cfg.ConfigDir, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	filePath = filepath.Join(dir, constants.AppName+".log")

	var out io.Writer = &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	if cfg.Debug && !cfg.Quiet {
		out = io.MultiWriter(os.Stderr, out)
	}

	Logger = newLogger(out, cfg.level())
	Logger.SetReportCaller(cfg.Debug)
	return nil
}

// InitWriter sends the log to w only. Tests use it to capture warnings.
func InitWriter(w io.Writer, level log.Level) {
	filePath = ""
	Logger = newLogger(w, level)
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})
}

// FilePath is the current log file, or "" when logging elsewhere.
func FilePath() string {
	return filePath
}

// logAt expects a non-nil Logger. Callers mark themselves as helpers so
// caller reporting points at the code that logged.
func logAt(level log.Level, msg string, keyvals []interface{}) {
	Logger.Helper()
	Logger.Log(level, msg, keyvals...)
}

func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Helper()
		logAt(log.DebugLevel, msg, keyvals)
	}
}

func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Helper()
		logAt(log.InfoLevel, msg, keyvals)
	}
}

func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Helper()
		logAt(log.WarnLevel, msg, keyvals)
	}
}

func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Helper()
		logAt(log.ErrorLevel, msg, keyvals)
	}
}
