package billing

// EventType is the RevenueCat webhook event type.
type EventType string

const (
	EventInitialPurchase EventType = "INITIAL_PURCHASE"
	EventRenewal         EventType = "RENEWAL"
	EventExpiration      EventType = "EXPIRATION"
	EventTransfer        EventType = "TRANSFER"
	EventCancellation    EventType = "CANCELLATION"
	EventUncancellation  EventType = "UNCANCELLATION"
	EventBillingIssue    EventType = "BILLING_ISSUE"
	EventProductChange   EventType = "PRODUCT_CHANGE"
	EventTest            EventType = "TEST"
)

// WebhookPayload is the body RevenueCat posts to the webhook endpoint. The
// endpoint forwards it unchanged onto the billing queue.
type WebhookPayload struct {
	APIVersion string `json:"api_version"`
	Event      Event  `json:"event"`
}

// Event carries the fields the reconciler reads. Customer identifiers are
// RevenueCat app user IDs, stored as customer_id on athletes and clubs.
type Event struct {
	ID               string    `json:"id"`
	Type             EventType `json:"type"`
	AppUserID        string    `json:"app_user_id"`
	EntitlementIDs   []string  `json:"entitlement_ids"`
	TransferredFrom  []string  `json:"transferred_from"`
	TransferredTo    []string  `json:"transferred_to"`
	EventTimestampMS int64     `json:"event_timestamp_ms"`
	Environment      string    `json:"environment"`
}
