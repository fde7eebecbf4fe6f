// Package logging sets up the process loggers: slog for the application and
// zerolog for the database and telemetry layers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName names the otelslog logger and the GELF facility.
const InstrumentationName = "swarmsim"

// SlogManager owns the application logger and the OTel provider it flushes.
type SlogManager struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider
}

// NewSlogManager creates a manager. Logger returns slog.Default until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel accepts debug, info, warn and error in any case. Anything else
// is info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func handlerOptions(level slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: utcTime,
	}
}

// utcTime renders record timestamps as RFC3339 UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey || a.Value.Kind() != slog.KindTime {
		return a
	}
	return slog.String(a.Key, a.Value.Time().UTC().Format(time.RFC3339))
}

// Setup replaces the logger. Text goes to out (stderr when nil), records are
// also bridged to provider when set, and every extra handler (GELF) receives
// them too.
func (m *SlogManager) Setup(out io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	if out == nil {
		out = os.Stderr
	}
	lvl := ParseLevel(level)
	m.provider = provider

	handlers := append([]slog.Handler{slog.NewTextHandler(out, handlerOptions(lvl))}, extra...)
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(provider)))
	}

	m.logger = slog.New(Fanout(handlers...))
	m.logger.Info("Logging initialized", "level", lvl.String())
}

// WithContext adds the attributes of provider to every later record.
func (m *SlogManager) WithContext(provider ContextProvider) {
	m.logger = slog.New(WithDynamicAttrs(m.Logger().Handler(), provider))
}

// Logger returns the configured logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records. It is a no-op without a provider.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
