package gateway

import "github.com/siteassist/gateway/observability"

// Gateway event types emitted during request handling.
const (
	EventTurnStart         observability.EventType = "chat.turn.start"
	EventTurnComplete      observability.EventType = "chat.turn.complete"
	EventRateLimited       observability.EventType = "chat.rate_limited"
	EventProviderError     observability.EventType = "chat.provider.error"
	EventRecordFailed      observability.EventType = "chat.record.failed"
	EventOrderVerified     observability.EventType = "chat.order.verified"
	EventOrderVerifyFailed observability.EventType = "chat.order.verify_failed"
	EventOrderLookupFailed observability.EventType = "chat.order.lookup_failed"
	EventLeadCaptured      observability.EventType = "chat.lead.captured"
)
