package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Token endpoint unreachable after the retry budget.
	ReasonAuthFetch ReasonCode = "auth_fetch"
	// Token payload present but malformed; terminal, never retried.
	ReasonAuthParse ReasonCode = "auth_parse"

	// Connection, TLS, or timeout failure after all retry tiers.
	ReasonNetwork ReasonCode = "network"
	// Well-formed non-2xx response from the synthesis endpoint.
	ReasonRemote ReasonCode = "remote_status"

	ReasonVoicesFetch ReasonCode = "voices_fetch"
)
