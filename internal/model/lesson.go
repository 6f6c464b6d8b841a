package model

import "time"

// Lesson lifecycle status values stored in lessons.status.
const (
	LessonPending   = "pending"
	LessonApproved  = "approved"
	LessonCompleted = "completed"
	LessonCanceled  = "canceled"
)

// Request types. A direct request targets one teacher, an open request is
// broadcast to every matching teacher.
const (
	RequestDirect = "direct"
	RequestOpen   = "open"
)

// Meeting status values stored in lessons.meeting_status.
const (
	MeetingUpcoming = "upcoming"
	MeetingOngoing  = "ongoing"
	MeetingFinished = "finished"
	MeetingCanceled = "canceled"
)

// Payment sub-state of a lesson (lessons.payment_status).
const (
	PaymentUnpaid   = "unpaid"
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentHeld     = "held"
	PaymentReleased = "released"
	PaymentRefunded = "refunded"
)

// Status of the latest gateway interaction (lessons.payment_state).
const (
	ChargePending  = "pending"
	ChargePaid     = "paid"
	ChargeFailed   = "failed"
	ChargeReleased = "released"
	ChargeRefunded = "refunded"
)

// Lesson mirrors the `lessons` table. Interested teachers and offers live in
// their own tables (lesson_interests, lesson_offers) so that concurrent
// teachers never overwrite each other.
//
// Join tokens are per participant and never serialized with the lesson; the
// meeting-token endpoint hands each caller only their own.
type Lesson struct {
	ID                uint64    `db:"id" json:"id"`
	StudentID         uint64    `db:"student_id" json:"student_id"`
	Subject           string    `db:"subject" json:"subject"`
	Title             string    `db:"title" json:"title"`
	Description       string    `db:"description" json:"description,omitempty"`
	Price             float64   `db:"price" json:"price"`
	RequestedDate     time.Time `db:"requested_date" json:"requested_date"`
	DurationMinutes   int       `db:"duration_minutes" json:"duration_in_minutes"`
	RequestType       string    `db:"request_type" json:"request_type"`
	TargetTeacherID   *uint64   `db:"target_teacher_id" json:"target_teacher_id,omitempty"`
	AcceptedTeacherID *uint64   `db:"accepted_teacher_id" json:"accepted_teacher_id,omitempty"`
	Status            string    `db:"status" json:"status"`

	MeetingRoomID    *string    `db:"meeting_room_id" json:"meeting_room_id,omitempty"`
	MeetingStatus    string     `db:"meeting_status" json:"meeting_status"`
	MeetingStartTime *time.Time `db:"meeting_start_time" json:"meeting_start_time,omitempty"`
	MeetingEndTime   *time.Time `db:"meeting_end_time" json:"meeting_end_time,omitempty"`
	StudentJoinToken *string    `db:"student_join_token" json:"-"`
	TeacherJoinToken *string    `db:"teacher_join_token" json:"-"`

	PaymentStatus        string  `db:"payment_status" json:"payment_status"`
	PaymentAmount        float64 `db:"payment_amount" json:"-"`
	PaymentOrderID       *string `db:"payment_order_id" json:"-"`
	MerchantOrderID      *string `db:"merchant_order_id" json:"-"`
	PaymentTransactionID *string `db:"payment_transaction_id" json:"-"`
	PaymentState         string  `db:"payment_state" json:"-"`
	AmountPaid           float64 `db:"amount_paid" json:"amount_paid"`
	TeacherPayoutID      *string `db:"teacher_payout_id" json:"teacher_payout_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PaymentRecord is the nested payment view of a lesson.
type PaymentRecord struct {
	Amount         float64 `json:"amount"`
	GatewayOrderID string  `json:"gateway_order_id,omitempty"`
	TransactionID  string  `json:"transaction_id,omitempty"`
	Status         string  `json:"status,omitempty"`
}

// Payment assembles the nested payment record from the flat columns.
func (l Lesson) Payment() PaymentRecord {
	return PaymentRecord{
		Amount:         l.PaymentAmount,
		GatewayOrderID: deref(l.PaymentOrderID),
		TransactionID:  deref(l.PaymentTransactionID),
		Status:         l.PaymentState,
	}
}

// HasAcceptedTeacher reports whether teacherID is the lesson's accepted teacher.
func (l Lesson) HasAcceptedTeacher(teacherID uint64) bool {
	return l.AcceptedTeacherID != nil && *l.AcceptedTeacherID == teacherID
}

// Offer is a teacher's proposed price for a lesson. There is at most one
// offer per (lesson, teacher); a new one replaces the previous.
type Offer struct {
	LessonID      uint64    `db:"lesson_id" json:"lesson_id"`
	TeacherID     uint64    `db:"teacher_id" json:"teacher_id"`
	ProposedPrice float64   `db:"proposed_price" json:"proposed_price"`
	Message       string    `db:"message" json:"message"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Acceptance carries everything the accept transition writes in one update.
type Acceptance struct {
	LessonID     uint64
	StudentID    uint64
	TeacherID    uint64
	FinalPrice   float64
	RoomID       string
	StudentToken string
	TeacherToken string
}

// PaymentIntent is what initiating a payment persists on the lesson.
type PaymentIntent struct {
	OrderID         string
	MerchantOrderID string
	Amount          float64
}

// LessonFilter narrows role-scoped listings. Exactly one of the scope fields
// is expected to be set (none for admins).
type LessonFilter struct {
	StudentID *uint64 // student scope: own lessons
	TeacherID *uint64 // teacher scope: taught subjects, interested or accepted
	Status    string
	Subject   string
	Sort      string // column name, "-" prefix for descending
	Limit     int
	Offset    int
}

// LessonDetails is a lesson plus the related records a caller asked to expand.
type LessonDetails struct {
	Lesson
	PaymentInfo        PaymentRecord `json:"payment"`
	Student            *UserSummary  `json:"student,omitempty"`
	AcceptedTeacher    *UserSummary  `json:"accepted_teacher,omitempty"`
	InterestedTeachers []UserSummary `json:"interested_teachers,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
