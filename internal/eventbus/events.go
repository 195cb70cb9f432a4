package eventbus

// Event types published by the notification pipeline.
const (
	TypeEnqueued     = "notifier.enqueued"
	TypeSent         = "notifier.sent"
	TypeFailed       = "notifier.failed"
	TypeRecipientErr = "notifier.recipient_error"
	TypeRemoved      = "registry.removed"
	TypeSubscribed   = "registry.subscribed"
)

// Delivery describes one notification on its way to a recipient.
type Delivery struct {
	ClientID  string `json:"client_id"`
	DedupeKey string `json:"dedupe_key"`
	Err       string `json:"err,omitempty"`
}

// Recipient describes a registration-level change.
type Recipient struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
