package observability

import (
	"io"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger builds a structured logger writing to w.
func NewZerologLogger(w io.Writer) *ZerologLogger {
	return &ZerologLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

func (l *ZerologLogger) emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, field := range fields {
		ev = ev.Interface(field.Key, field.Value)
	}
	ev.Msg(msg)
}

// Trace implements Logger.
func (l *ZerologLogger) Trace(msg string, fields ...Field) {
	l.emit(l.logger.Trace(), msg, fields)
}

// Debug implements Logger.
func (l *ZerologLogger) Debug(msg string, fields ...Field) {
	l.emit(l.logger.Debug(), msg, fields)
}

// Info implements Logger.
func (l *ZerologLogger) Info(msg string, fields ...Field) {
	l.emit(l.logger.Info(), msg, fields)
}

// Warn implements Logger.
func (l *ZerologLogger) Warn(msg string, fields ...Field) {
	l.emit(l.logger.Warn(), msg, fields)
}

// Error implements Logger.
func (l *ZerologLogger) Error(msg string, fields ...Field) {
	l.emit(l.logger.Error(), msg, fields)
}

// Emergency implements Logger. Emergencies log at error level with a
// severity marker so alerting rules can page on them.
func (l *ZerologLogger) Emergency(msg string, fields ...Field) {
	l.emit(l.logger.Error().Str("severity", "emergency"), msg, fields)
}
