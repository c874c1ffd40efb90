package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
)

var (
	rootLogger arbor.ILogger
	rootMu     sync.Mutex
)

// -----------------------------------------------------------------------------

// Logger is a named, printf-style facade over the process-wide arbor logger.
type Logger struct {
	name   string
	logger arbor.ILogger
}

// LevelSource is anything that can report the configured log level.
type LevelSource interface {
	GetLogLevel() string
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. The first call fixes the level for the process.
func NewLogger(config LevelSource, name string) *Logger {
	return &Logger{
		name:   name,
		logger: root(config),
	}
}

// -----------------------------------------------------------------------------

// Discard returns a logger without writers. Used by tests.
func Discard(name string) *Logger {
	return &Logger{name: name, logger: arbor.NewLogger()}
}

// -----------------------------------------------------------------------------

func root(config LevelSource) arbor.ILogger {
	rootMu.Lock()
	defer rootMu.Unlock()

	if rootLogger != nil {
		return rootLogger
	}

	level := "info"
	if config != nil && config.GetLogLevel() != "" {
		level = strings.ToLower(config.GetLogLevel())
	}
	if level == "warning" {
		level = "warn"
	}

	rootLogger = arbor.NewLogger().WithConsoleWriter(arbormodels.WriterConfiguration{
		Type:       arbormodels.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	}).WithLevelFromString(level)
	return rootLogger
}

// -----------------------------------------------------------------------------

// Name returns the component name.
func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// With returns a child logger for a sub-component.
func (l *Logger) With(name string) *Logger {
	return &Logger{name: l.name + "." + name, logger: l.logger}
}

// -----------------------------------------------------------------------------

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug().Str("component", l.name).Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn().Str("component", l.name).Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info().Str("component", l.name).Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error().Str("component", l.name).Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.Error().Str("component", l.name).Str("severity", "critical").Msg(fmt.Sprintf(format, args...))
	os.Exit(1)
}
