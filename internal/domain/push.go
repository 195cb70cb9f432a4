package domain

// Subscription is a browser push subscription as produced by PushManager.subscribe().
type Subscription struct {
	Endpoint       string           `json:"endpoint" validate:"required,url"`
	ExpirationTime *int64           `json:"expirationTime,omitempty"`
	Keys           SubscriptionKeys `json:"keys" validate:"required"`
}

type SubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}
