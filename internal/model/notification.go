package model

import "time"

// Notification types carried in the push data payload.
const (
	NotifyLessonRequest   = "lesson_request"
	NotifyTeacherInterest = "teacher_interest"
	NotifyCounterOffer    = "counter_offer"
	NotifyLessonApproved  = "lesson_approved"
	NotifyPaymentReceived = "payment_received"
	NotifyLessonStarted   = "lesson_started"
	NotifyLessonEnded     = "lesson_ended"
	NotifyLessonCanceled  = "lesson_canceled"
	NotifyLessonCompleted = "lesson_completed"
)

// Notification mirrors the `notifications` audit table. One row is written
// per dispatched message whether or not delivery succeeds.
type Notification struct {
	ID          uint64    `db:"id" json:"id"`
	SenderID    *uint64   `db:"sender_id" json:"sender_id,omitempty"`
	RecipientID uint64    `db:"recipient_id" json:"recipient_id"`
	Type        string    `db:"type" json:"type"`
	LessonID    *uint64   `db:"lesson_id" json:"lesson_id,omitempty"`
	Title       string    `db:"title" json:"title"`
	Message     string    `db:"message" json:"message"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Localized holds the same text in each supported language.
type Localized struct {
	En string `json:"en"`
	Ar string `json:"ar"`
}

// In returns the text for lang, defaulting to English.
func (l Localized) In(lang string) string {
	if lang == "ar" && l.Ar != "" {
		return l.Ar
	}
	return l.En
}

// NotificationMessage is what the lesson engine hands to the dispatcher.
type NotificationMessage struct {
	SenderID    *uint64
	RecipientID uint64
	Type        string
	LessonID    uint64
	Title       Localized
	Body        Localized
	Data        map[string]string
}
