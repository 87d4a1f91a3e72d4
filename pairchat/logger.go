package pairchat

import "github.com/rs/zerolog"

// Logger is a minimal logging interface accepted by the SDK.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// noopLogger discards all logs.
type noopLogger struct{}

func (noopLogger) Debug(string, map[string]any) {}
func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Warn(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

// zerologLogger forwards to a zerolog.Logger.
type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger adapts l to the Logger interface.
func NewZerologLogger(l zerolog.Logger) Logger {
	return zerologLogger{l: l}
}

func (z zerologLogger) Debug(msg string, fields map[string]any) { z.l.Debug().Fields(fields).Msg(msg) }
func (z zerologLogger) Info(msg string, fields map[string]any)  { z.l.Info().Fields(fields).Msg(msg) }
func (z zerologLogger) Warn(msg string, fields map[string]any)  { z.l.Warn().Fields(fields).Msg(msg) }
func (z zerologLogger) Error(msg string, fields map[string]any) { z.l.Error().Fields(fields).Msg(msg) }
