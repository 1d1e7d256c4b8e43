// Package ai defines the canonical conversation model shared by every LLM
// provider adapter: the [Message] / [ChatRequest] / [ChatResponse] types, the
// [Provider] and [StreamProvider] interfaces, and the [ChatStream] abstraction
// that unifies streaming and non-streaming responses into a single lazy,
// cancellable sequence of text deltas.
//
// Provider-specific wire formats live in the subpackages (openai, anthropic,
// groq); they translate to and from the types defined here.
package ai
