package logging

import "github.com/rs/zerolog"

// DispatcherLogger writes dispatcher messages through zerolog. Key-value
// pairs become fields; a pair with a non-string key or a trailing key
// without value is dropped.
type DispatcherLogger struct {
	zl zerolog.Logger
}

// NewDispatcherLogger wraps l.
func NewDispatcherLogger(l zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{zl: l}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.log(zerolog.DebugLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.log(zerolog.InfoLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.log(zerolog.ErrorLevel, msg, keysAndValues)
}

func (l *DispatcherLogger) log(level zerolog.Level, msg string, kv []any) {
	l.zl.WithLevel(level).Fields(kv).Msg(msg)
}
