package service

import (
	"context"
	"time"

	"github.com/iliyamo/tutor-marketplace/internal/gateway/paymob"
	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// LessonStore persists lessons. Transition methods are conditional updates
// and report whether the row was in the expected prior state.
type LessonStore interface {
	Create(ctx context.Context, l *model.Lesson) error
	GetByID(ctx context.Context, id uint64) (model.Lesson, error)
	GetByRoomID(ctx context.Context, roomID string) (model.Lesson, error)
	List(ctx context.Context, f model.LessonFilter) ([]model.Lesson, int64, error)
	ListRequestsForTeacher(ctx context.Context, teacherID uint64, limit, offset int) ([]model.Lesson, error)

	AddInterest(ctx context.Context, lessonID, teacherID uint64) (bool, error)
	IsInterested(ctx context.Context, lessonID, teacherID uint64) (bool, error)
	InterestedTeacherIDs(ctx context.Context, lessonID uint64) ([]uint64, error)
	UpsertOffer(ctx context.Context, o model.Offer) (bool, error)
	Offers(ctx context.Context, lessonID uint64) ([]model.Offer, error)
	OfferFor(ctx context.Context, lessonID, teacherID uint64) (*model.Offer, error)

	UpdatePrice(ctx context.Context, lessonID, studentID uint64, price float64) (bool, error)
	AcceptTeacher(ctx context.Context, a model.Acceptance) (bool, error)
	Complete(ctx context.Context, lessonID, teacherID uint64, at time.Time) (bool, error)
	Cancel(ctx context.Context, lessonID, studentID uint64) (bool, error)

	MarkPaymentPending(ctx context.Context, lessonID, studentID uint64, p model.PaymentIntent) (bool, error)
	MarkPaid(ctx context.Context, lessonID uint64, transactionID string, amount float64) (bool, error)
	MarkPaymentFailed(ctx context.Context, lessonID uint64, merchantOrderID, transactionID string) (bool, error)
	ClaimRelease(ctx context.Context, lessonID uint64) (bool, error)
	FinishRelease(ctx context.Context, lessonID uint64, payoutID string) (bool, error)
	AbortRelease(ctx context.Context, lessonID uint64) (bool, error)
	PayoutHistory(ctx context.Context, teacherID uint64) ([]model.Lesson, error)

	StartMeeting(ctx context.Context, lessonID uint64, at time.Time) (bool, error)
	EndMeeting(ctx context.Context, lessonID uint64, at time.Time) (bool, error)
}

// UserStore reads users and maintains teacher profiles.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Summaries(ctx context.Context, ids []uint64) ([]model.UserSummary, error)
	TeachersBySubject(ctx context.Context, subject string) ([]model.TeacherCandidate, error)
	TeacherProfile(ctx context.Context, userID uint64) (model.TeacherProfile, error)
	SavePaymentInfo(ctx context.Context, teacherID uint64, info model.PaymentInfo) error
	SetPayoutRecipient(ctx context.Context, teacherID uint64, recipientID string) error
	MarkPayoutFailed(ctx context.Context, teacherID uint64, reason string) error
	SetDevice(ctx context.Context, id uint64, pushToken *string, lang string) error
}

// PointsStore keeps reward balances.
type PointsStore interface {
	AdjustPoints(ctx context.Context, userID uint64, delta int) (model.PointsBalance, error)
	Points(ctx context.Context, userID uint64) (model.PointsBalance, error)
	LevelCounts(ctx context.Context) (map[string]int, error)
	ListByPoints(ctx context.Context, limit, offset int) ([]model.PointsBalance, error)
}

// ReviewStore persists reviews; a second review per lesson is a duplicate.
type ReviewStore interface {
	Create(ctx context.Context, r *model.Review) error
}

// NotificationStore reads the notification audit trail.
type NotificationStore interface {
	ListForRecipient(ctx context.Context, recipientID uint64, limit, offset int) ([]model.Notification, error)
}

// Notifier delivers a localized message to one user.
type Notifier interface {
	Notify(ctx context.Context, msg model.NotificationMessage) error
}

// PaymentGateway is the payment provider.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, req paymob.OrderRequest) (paymob.PaymentLink, error)
	VerifyCallback(obj map[string]any, signature string) bool
	Payout(ctx context.Context, req paymob.PayoutRequest) (string, error)
	RegisterRecipient(ctx context.Context, req paymob.RecipientRequest) (string, error)
}

// MeetingProvider allocates rooms and participant tokens.
type MeetingProvider interface {
	NewRoom() string
	JoinToken(roomID string, userID uint64, role string) (string, error)
	TokenValid(raw, roomID string, userID uint64) bool
}

// ReplayGuard remembers processed webhooks. It is an optimization only.
type ReplayGuard interface {
	Seen(ctx context.Context, key string) bool
	Mark(ctx context.Context, key string)
}
