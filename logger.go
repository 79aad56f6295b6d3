package mjpeg

import "log/slog"

// Logger is the structured logging interface used by the transport and the extractor.
// It is compatible with *slog.Logger; applications can pass their own implementation.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger returns slog.Default().
func defaultLogger() Logger {
	return slog.Default()
}

// sessionLogger prefixes every record with the session attribute of one
// extraction session, so that interleaved reconnects stay distinguishable.
type sessionLogger struct {
	Logger
	attrs []any
}

func withSession(l Logger, session string) Logger {
	return &sessionLogger{Logger: l, attrs: []any{"session", session}}
}

func (l *sessionLogger) with(args []any) []any {
	out := make([]any, 0, len(l.attrs)+len(args))
	out = append(out, l.attrs...)
	return append(out, args...)
}

func (l *sessionLogger) Debug(msg string, args ...any) { l.Logger.Debug(msg, l.with(args)...) }
func (l *sessionLogger) Info(msg string, args ...any)  { l.Logger.Info(msg, l.with(args)...) }
func (l *sessionLogger) Warn(msg string, args ...any)  { l.Logger.Warn(msg, l.with(args)...) }
func (l *sessionLogger) Error(msg string, args ...any) { l.Logger.Error(msg, l.with(args)...) }
