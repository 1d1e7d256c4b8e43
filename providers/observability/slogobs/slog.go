// Package slogobs provides an observability.Observer implementation backed by
// Go's standard library log/slog package. The main entry point is [New];
// output destination and minimum level can be tuned with [WithOutput] and
// [WithLevel].
package slogobs

import (
	"io"
	"log/slog"
	"os"

	"github.com/okalas/relay/providers/observability"
)

// SlogObserver adapts a *slog.Logger to the observability.Observer interface.
type SlogObserver struct {
	logger *slog.Logger
}

// Option configures a SlogObserver during construction.
type Option func(*options)

type options struct {
	output io.Writer
	level  slog.Level
}

// WithOutput sets the destination for log output (default os.Stderr).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithLevel sets the minimum level that is emitted (default slog.LevelInfo).
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// New returns a SlogObserver writing line-oriented structured logs.
func New(opts ...Option) *SlogObserver {
	cfg := options{output: os.Stderr, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(&cfg)
	}
	handler := slog.NewTextHandler(cfg.output, &slog.HandlerOptions{Level: cfg.level})
	return &SlogObserver{logger: slog.New(handler)}
}

// FromLogger wraps an existing slog.Logger.
func FromLogger(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

var _ observability.Observer = (*SlogObserver)(nil)

func (s *SlogObserver) Debug(msg string, attrs ...observability.Attribute) {
	s.logger.Debug(msg, toArgs(attrs)...)
}

func (s *SlogObserver) Info(msg string, attrs ...observability.Attribute) {
	s.logger.Info(msg, toArgs(attrs)...)
}

func (s *SlogObserver) Warn(msg string, attrs ...observability.Attribute) {
	s.logger.Warn(msg, toArgs(attrs)...)
}

func (s *SlogObserver) Error(msg string, attrs ...observability.Attribute) {
	s.logger.Error(msg, toArgs(attrs)...)
}

// toArgs flattens attributes into the alternating key/value form slog expects.
func toArgs(attrs []observability.Attribute) []any {
	args := make([]any, 0, len(attrs)*2)
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value)
	}
	return args
}
