// Package logging provides structured logging for the CLI.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures NewLogger.
type Options struct {
	// Console is where human-readable output goes. Defaults to stderr so that
	// stdout stays clean for command output.
	Console io.Writer

	// LogFile additionally writes JSON lines to a rotated file (empty = disabled).
	LogFile string

	// Verbose enables debug level.
	Verbose bool
}

// Logger wraps zerolog with console and optional rotated-file output.
type Logger struct {
	mu     sync.RWMutex
	zlog   zerolog.Logger
	output io.Writer
	file   *lumberjack.Logger
}

// NewLogger creates a logger from opts.
func NewLogger(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	l := &Logger{}
	if opts.LogFile != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	l.setOutput(console)

	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	l.zlog = l.zlog.Level(level)

	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger(Options{})
}

// NewNop returns a logger that discards everything. Used in tests and library callers
// that don't care about logs.
func NewNop() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard}
}

func (l *Logger) setOutput(console io.Writer) {
	l.output = console
	var out io.Writer = zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: "15:04:05",
	}
	if l.file != nil {
		out = zerolog.MultiLevelWriter(out, l.file)
	}
	l.zlog = zerolog.New(out).With().Timestamp().Logger()
}

func (l *Logger) logger() *zerolog.Logger {
	if l == nil {
		nop := zerolog.Nop()
		return &nop
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &l.zlog
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.logger().Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.logger().Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.logger().Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.logger().Warn()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.logger().With()
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return *l.logger()
}

// SetOutput changes the console writer for the logger.
// This is useful for redirecting logs through progress bars.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	level := l.zlog.GetLevel()
	l.setOutput(w)
	l.zlog = l.zlog.Level(level)
}

// Output returns the current console writer.
func (l *Logger) Output() io.Writer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.output
}

// Close flushes and closes the rotated log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger().Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger().Info().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger().Warn().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger().Error().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
