package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fadedpez/pagebot/internal/types"
	"github.com/rs/zerolog"
)

// Level represents a logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

var zerologLevels = map[Level]zerolog.Level{
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
}

// String returns the level name
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel converts a level name such as "debug" or "WARN" into a Level.
// Unknown names fall back to INFO.
func ParseLevel(name string) Level {
	for level, levelName := range levelNames {
		if strings.EqualFold(levelName, name) {
			return level
		}
	}
	return INFO
}

// Logger wraps a zerolog.Logger behind the printf-style API used throughout the bot
type Logger struct {
	zl    zerolog.Logger
	level Level
}

// NewLogger creates a logger writing JSON lines to w
func NewLogger(level Level, w io.Writer) *Logger {
	zl := zerolog.New(w).
		Level(zerologLevels[level]).
		With().
		Timestamp().
		Logger()
	return &Logger{zl: zl, level: level}
}

// NewConsoleLogger creates a human readable logger for development
func NewConsoleLogger(level Level) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05.000",
	}
	return NewLogger(level, output)
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), level: ERROR}
}

// With returns a child logger carrying an extra structured field
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{
		zl:    l.zl.With().Interface(key, value).Logger(),
		level: l.level,
	}
}

// Level returns the minimum level this logger emits
func (l *Logger) Level() Level {
	return l.level
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// LogError logs an error, expanding BotError context when present
func (l *Logger) LogError(err error) {
	var botErr *types.BotError
	if types.As(err, &botErr) {
		event := l.zl.Error().
			Str("code", string(botErr.Code)).
			Str("detail", botErr.Message)
		if botErr.Err != nil {
			event = event.AnErr("cause", botErr.Err)
		}
		event.Msg("bot error occurred")
		return
	}
	l.zl.Error().Err(err).Msg("unexpected error")
}

// Default logger instance
var Default = NewLogger(INFO, os.Stdout)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
