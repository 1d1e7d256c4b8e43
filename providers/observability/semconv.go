package observability

// Standard attribute keys used when recording observations, so the same
// concept is always reported under the same name across packages.
const (
	// LLM request attributes
	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"
	AttrLLMEndpoint = "llm.endpoint"

	// HTTP attributes
	AttrHTTPMethod          = "http.method"
	AttrHTTPURL             = "http.url"
	AttrHTTPStatusCode      = "http.status_code"
	AttrHTTPRequestBodySize = "http.request_body_size"

	// Session attributes
	AttrSessionID       = "session.id"
	AttrSessionMessages = "session.messages"
	AttrSessionReaped   = "session.reaped"

	// Request content attributes
	AttrRequestMessagesCount = "request.messages_count"
)

// Standard span event names.
const (
	EventLLMRequestStart = "llm.request.start"
	EventLLMRequestEnd   = "llm.request.end"
	EventSessionTrim     = "session.trim"
	EventStoreSweep      = "store.sweep"
)
