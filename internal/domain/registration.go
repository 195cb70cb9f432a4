package domain

import (
	"maps"
	"slices"
)

// Registration is everything the server knows about one push client.
type Registration struct {
	ClientID          string               `json:"clientId"`
	Subscription      Subscription         `json:"subscription"`
	Assignments       []Assignment         `json:"assignments"`
	LastNotified      map[string]int64     `json:"lastNotified"`
	NotificationQueue []QueuedNotification `json:"notificationQueue"`
	LastQueueDrainAt  int64                `json:"lastQueueDrainAt"`
	RefreshToken      string               `json:"refreshToken,omitempty"`
	UserID            string               `json:"userId,omitempty"`
	CreatedAt         int64                `json:"createdAt"`
	UpdatedAt         int64                `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand out of the registry lock.
func (r Registration) Clone() Registration {
	out := r
	out.Assignments = slices.Clone(r.Assignments)
	out.LastNotified = maps.Clone(r.LastNotified)
	if out.LastNotified == nil {
		out.LastNotified = map[string]int64{}
	}
	out.NotificationQueue = make([]QueuedNotification, len(r.NotificationQueue))
	for i, q := range r.NotificationQueue {
		q.Payload = slices.Clone(q.Payload)
		out.NotificationQueue[i] = q
	}
	return out
}

// Queued reports whether key is waiting in the queue.
func (r *Registration) Queued(key string) bool {
	for _, q := range r.NotificationQueue {
		if q.DedupeKey == key {
			return true
		}
	}
	return false
}

// Enqueue appends n unless its dedupe key is already queued.
func (r *Registration) Enqueue(n QueuedNotification) bool {
	if r.Queued(n.DedupeKey) {
		return false
	}
	r.NotificationQueue = append(r.NotificationQueue, n)
	return true
}

// Head returns the oldest queued notification.
func (r *Registration) Head() (QueuedNotification, bool) {
	if len(r.NotificationQueue) == 0 {
		return QueuedNotification{}, false
	}
	return r.NotificationQueue[0], true
}

// PopHead removes the oldest queued notification.
func (r *Registration) PopHead() (QueuedNotification, bool) {
	head, ok := r.Head()
	if !ok {
		return head, false
	}
	r.NotificationQueue = slices.Delete(r.NotificationQueue, 0, 1)
	return head, true
}

// MarkNotified records a delivery time; older timestamps never overwrite newer ones.
func (r *Registration) MarkNotified(key string, atMillis int64) {
	if r.LastNotified == nil {
		r.LastNotified = map[string]int64{}
	}
	if atMillis > r.LastNotified[key] {
		r.LastNotified[key] = atMillis
	}
}

// ResetDelivery drops everything tied to the previous account.
func (r *Registration) ResetDelivery() {
	r.LastNotified = map[string]int64{}
	r.NotificationQueue = nil
	r.LastQueueDrainAt = 0
}
