package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	initOnce sync.Once
	initErr  error

	mu     sync.RWMutex
	logger = log.NewWithOptions(io.Discard, log.Options{Level: log.InfoLevel})
	level  = log.InfoLevel
)

// Init sets up the logger output. Safe to call multiple times; only the first
// call performs initialization. An empty path logs to stderr.
func Init(logPath string) error {
	initOnce.Do(func() {
		var writer io.Writer = os.Stderr

		if logPath != "" {
			if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
				initErr = err
				return
			}
			writer = &lumberjack.Logger{
				Filename:   logPath,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
		}

		SetOutput(writer)
	})

	return initErr
}

// SetOutput swaps the destination writer, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "qsched",
	})
}

// SetLevel updates the global log level (debug, info, warn, error).
func SetLevel(value string) {
	mu.Lock()
	defer mu.Unlock()
	level = parseLevel(value)
	logger.SetLevel(level)
}

func parseLevel(value string) log.Level {
	switch strings.ToLower(value) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// With returns a logger carrying the given key/value pairs.
func With(keyvals ...interface{}) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With(keyvals...)
}

func Debugf(format string, args ...interface{}) {
	current().Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...interface{}) {
	current().Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...interface{}) {
	current().Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	current().Error(fmt.Sprintf(format, args...))
}

func current() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
