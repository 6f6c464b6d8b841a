package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/config"
	"github.com/iliyamo/tutor-marketplace/internal/gateway/paymob"
	"github.com/iliyamo/tutor-marketplace/internal/model"
)

const hmacSecret = "test-hmac-secret"

type harness struct {
	users    *memUsers
	store    *memLessons
	reviews  *memReviews
	notes    *memNotifications
	gateway  *fakeGateway
	guard    *memGuard
	rooms    *fakeMeetings
	points   *PointsService
	payments *PaymentService
	lessons  *LessonService
	meetings *MeetingService
	teachers *TeacherService
	review   *ReviewService
	accounts *AccountService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zap.NewNop()
	h := &harness{
		users:   newMemUsers(),
		reviews: &memReviews{},
		notes:   &memNotifications{},
		gateway: &fakeGateway{secret: hmacSecret},
		guard:   &memGuard{},
		rooms:   &fakeMeetings{},
	}
	h.store = newMemLessons(h.users)
	h.points = NewPointsService(h.users, config.PointsConfig{Complete: 20, Cancel: 15, Review: 10}, logger)
	h.payments = NewPaymentService(h.store, h.users, h.gateway, h.notes, h.guard, logger)
	h.lessons = NewLessonService(h.store, h.users, h.points, h.payments, h.notes, h.rooms, logger)
	h.meetings = NewMeetingService(h.store, h.notes, logger)
	h.teachers = NewTeacherService(h.users, h.store, h.gateway, logger)
	h.review = NewReviewService(h.reviews, h.store, h.points, logger)
	h.accounts = NewAccountService(h.users, h.notes)
	return h
}

func mathLesson(price float64, minutes int) CreateLessonInput {
	return CreateLessonInput{
		Subject:         "Math",
		Title:           "Algebra help",
		Price:           price,
		RequestedDate:   time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC),
		DurationMinutes: minutes,
	}
}

// approvedLesson creates a Math lesson, has teacher express interest and
// selects that teacher.
func (h *harness) approvedLesson(t *testing.T, student, teacher uint64) model.Lesson {
	t.Helper()

	ctx := context.Background()
	res, err := h.lessons.CreateLessonRequest(ctx, student, mathLesson(100, 60))
	require.NoError(t, err)
	_, err = h.lessons.RespondToLessonRequest(ctx, teacher, res.Lesson.ID, "accept")
	require.NoError(t, err)
	sel, err := h.lessons.ChooseTeacher(ctx, student, res.Lesson.ID, teacher, nil)
	require.NoError(t, err)
	return sel.Lesson
}

// paidLesson takes an approved lesson through a successful payment.
func (h *harness) paidLesson(t *testing.T, student, teacher uint64) model.Lesson {
	t.Helper()

	l := h.approvedLesson(t, student, teacher)
	session, err := h.payments.InitiatePayment(context.Background(), student, l.ID)
	require.NoError(t, err)
	obj, sig := signedCallback(t, session.MerchantOrderID, "tx-"+session.MerchantOrderID, true, session.AmountCents)
	_, err = h.payments.HandleCallback(context.Background(), obj, sig)
	require.NoError(t, err)
	return h.lesson(t, l.ID)
}

func (h *harness) registerPayout(t *testing.T, teacher uint64) {
	t.Helper()

	_, err := h.teachers.UpdatePaymentInfo(context.Background(), teacher, model.PaymentInfo{
		Method: PayoutWallet, WalletProvider: "vodafone", PhoneNumber: "01000000000",
	})
	require.NoError(t, err)
}

func (h *harness) lesson(t *testing.T, id uint64) model.Lesson {
	t.Helper()

	l, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return l
}

// signedCallback builds a gateway callback object decoded the way the HTTP
// handler decodes it, and signs it with hmacSecret.
func signedCallback(t *testing.T, merchantOrderID, txID string, success bool, cents int64) (map[string]any, string) {
	t.Helper()

	raw := fmt.Sprintf(`{
		"id": %q, "pending": false, "amount_cents": %d, "success": %t,
		"is_auth": false, "is_capture": false, "is_standalone_payment": true, "is_voided": false,
		"is_refunded": false, "is_3d_secure": true, "integration_id": 77, "has_parent_transaction": false,
		"order": {"id": 555, "merchant_order_id": %q},
		"created_at": "2025-03-01T12:00:00", "currency": "EGP",
		"source_data": {"pan": "1234", "type": "card", "sub_type": "Visa"},
		"error_occured": false, "owner": 9
	}`, txID, cents, success, merchantOrderID)
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var obj map[string]any
	require.NoError(t, dec.Decode(&obj))
	return obj, paymob.Sign(hmacSecret, obj)
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()

	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se), "expected *service.Error, got %T: %v", err, err)
	require.Equal(t, kind, se.Kind, "unexpected kind for %v", err)
}
