// Package utils provides shared low-level helpers used throughout the relay
// internals. It covers HTTP request helpers for both synchronous and
// streaming (SSE) communication with AI provider APIs, a lenient JSON decoder
// that repairs slightly malformed payloads before giving up, and small string
// utilities.
//
// Key entry points: [DoPostSync] for synchronous JSON round-trips,
// [DoPostStream] together with [SSEScanner] for Server-Sent Events streaming,
// and [UnmarshalLenient] for decoding provider stream payloads.
package utils
