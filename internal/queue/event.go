// Package queue carries notification deliveries over RabbitMQ.
package queue

// NotificationEvent is published once the audit record for a notification
// is written. It holds the already localized text and the routing fields,
// so the consumer can deliver without querying the primary database.
type NotificationEvent struct {
	NotificationID uint64            `json:"notification_id"`
	RecipientID    uint64            `json:"recipient_id"`
	Type           string            `json:"type"`
	LessonID       uint64            `json:"lesson_id,omitempty"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Data           map[string]string `json:"data,omitempty"`
	PushToken      string            `json:"push_token,omitempty"`
	Email          string            `json:"email,omitempty"`
	Name           string            `json:"name,omitempty"`
	Language       string            `json:"language"`
	CreatedAt      string            `json:"created_at"`
}
