package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

//go:generate mockgen -destination=../../internal/domain/mocks/mock_logger.go -package=mocks github.com/Notifuse/emailbuilder/pkg/logger Logger

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

type zerologLogger struct {
	logger zerolog.Logger
}

func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout, zerolog.InfoLevel)
}

// NewLoggerWithLevel creates a stdout logger filtered at the given level name
// ("debug", "info", "warn", "error"). Unknown names fall back to info.
func NewLoggerWithLevel(level string) Logger {
	return NewLoggerWithWriter(os.Stdout, ParseLevel(level))
}

// NewLoggerWithWriter creates a logger writing JSON lines to w
func NewLoggerWithWriter(w io.Writer, level zerolog.Level) Logger {
	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &zerologLogger{
		logger: logger,
	}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return &zerologLogger{
		logger: zerolog.Nop(),
	}
}

// ParseLevel converts a level name into a zerolog level
func ParseLevel(level string) zerolog.Level {
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	default:
		parsed, err := zerolog.ParseLevel(name)
		if err != nil {
			return zerolog.InfoLevel
		}
		return parsed
	}
}

func (l *zerologLogger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *zerologLogger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *zerologLogger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

func (l *zerologLogger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

func (l *zerologLogger) Fatal(msg string) {
	l.logger.Fatal().Msg(msg)
}

func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return &zerologLogger{
		logger: l.logger.With().Interface(key, value).Logger(),
	}
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &zerologLogger{
		logger: ctx.Logger(),
	}
}
