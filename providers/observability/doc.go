// Package observability defines the logging and tracing abstractions used
// throughout relay. An [Observer] (structured, levelled logging) and an
// optional [Span] travel through a [context.Context] via [ContextWithObserver]
// and [ContextWithSpan]; components retrieve them with [ObserverFromContext]
// and [SpanFromContext] and degrade to no-ops when absent.
//
// The semconv.go file holds the standard attribute-key and event-name
// constants so observations stay consistent across packages. The slogobs
// subpackage provides the log/slog-backed Observer used in production.
package observability
