package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/gateway/paymob"
	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/notify"
	"github.com/iliyamo/tutor-marketplace/internal/repository"
)

// PaymentSession is what the student needs to complete a payment.
type PaymentSession struct {
	LessonID        uint64  `json:"lesson_id"`
	OrderID         string  `json:"order_id"`
	MerchantOrderID string  `json:"merchant_order_id"`
	Amount          float64 `json:"amount"`
	AmountCents     int64   `json:"amount_cents"`
	PaymentURL      string  `json:"payment_url"`
}

// CallbackResult summarizes how a gateway callback was handled.
type CallbackResult struct {
	LessonID      uint64 `json:"lesson_id"`
	TransactionID string `json:"transaction_id"`
	Success       bool   `json:"success"`
	Applied       bool   `json:"applied"`
}

// PaymentService moves money: charge initiation, callback settlement and
// release to the teacher.
type PaymentService struct {
	lessons  LessonStore
	users    UserStore
	gateway  PaymentGateway
	notifier Notifier
	guard    ReplayGuard
	logger   *zap.Logger
	orderRef func() string
}

func NewPaymentService(lessons LessonStore, users UserStore, gateway PaymentGateway, notifier Notifier,
	guard ReplayGuard, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		lessons:  lessons,
		users:    users,
		gateway:  gateway,
		notifier: notifier,
		guard:    guard,
		logger:   logger,
		orderRef: uuid.NewString,
	}
}

// InitiatePayment creates a gateway order for the lesson price and returns
// the hosted payment URL. Retrying while a payment is pending replaces the
// order; a late callback for the old order can still settle the lesson.
func (s *PaymentService) InitiatePayment(ctx context.Context, studentID, lessonID uint64) (PaymentSession, error) {
	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return PaymentSession{}, storeErr("lesson", err)
	}
	if l.StudentID != studentID {
		return PaymentSession{}, errForbidden("you do not own this lesson")
	}
	if l.Status == model.LessonCanceled {
		return PaymentSession{}, errConflict("lesson is canceled")
	}
	if paymentSettled(l.PaymentStatus) {
		return PaymentSession{}, errConflict("lesson is already paid")
	}

	merchantOrderID := fmt.Sprintf("%d-%s", l.ID, s.orderRef())
	cents := toCents(l.Price)
	billing := paymob.Billing{}
	if u, err := s.users.GetByID(ctx, studentID); err == nil {
		billing = paymob.Billing{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
	}

	link, err := s.gateway.CreatePaymentLink(ctx, paymob.OrderRequest{
		AmountCents:     cents,
		MerchantOrderID: merchantOrderID,
		Billing:         billing,
	})
	if err != nil {
		return PaymentSession{}, errUpstream("payment gateway unavailable", err)
	}

	ok, err := s.lessons.MarkPaymentPending(ctx, lessonID, studentID, model.PaymentIntent{
		OrderID:         link.OrderID,
		MerchantOrderID: merchantOrderID,
		Amount:          l.Price,
	})
	if err != nil {
		return PaymentSession{}, errInternal("record payment", err)
	}
	if !ok {
		return PaymentSession{}, errConflict("lesson can no longer be paid")
	}

	s.logger.Info("payment initiated", zap.Uint64("lesson_id", lessonID), zap.String("order_id", link.OrderID),
		zap.String("merchant_order_id", merchantOrderID), zap.Int64("amount_cents", cents))
	return PaymentSession{
		LessonID:        lessonID,
		OrderID:         link.OrderID,
		MerchantOrderID: merchantOrderID,
		Amount:          l.Price,
		AmountCents:     cents,
		PaymentURL:      link.URL,
	}, nil
}

// HandleCallback verifies and applies a transaction callback. Nothing is
// read or written before the signature checks out. Replays match no row in
// the conditional updates and change nothing.
func (s *PaymentService) HandleCallback(ctx context.Context, obj map[string]any, signature string) (CallbackResult, error) {
	if !s.gateway.VerifyCallback(obj, signature) {
		s.logger.Warn("payment callback rejected: bad signature")
		return CallbackResult{}, errValidation("invalid callback signature")
	}
	tx, err := paymob.ParseTransaction(obj)
	if err != nil {
		return CallbackResult{}, errValidation(err.Error())
	}
	lessonID, err := tx.LessonID()
	if err != nil {
		return CallbackResult{}, errValidation(err.Error())
	}
	res := CallbackResult{LessonID: lessonID, TransactionID: tx.ID, Success: tx.Success}

	key := fmt.Sprintf("paymob:%s:%t", tx.ID, tx.Success)
	if s.guard != nil && s.guard.Seen(ctx, key) {
		return res, nil
	}
	if tx.Pending && !tx.Success {
		s.logger.Info("payment still pending", zap.Uint64("lesson_id", lessonID), zap.String("transaction_id", tx.ID))
		return res, nil
	}

	if tx.Success {
		res.Applied, err = s.lessons.MarkPaid(ctx, lessonID, tx.ID, float64(tx.AmountCents)/100)
	} else {
		res.Applied, err = s.lessons.MarkPaymentFailed(ctx, lessonID, tx.MerchantOrderID, tx.ID)
	}
	if err != nil {
		return res, errInternal("apply payment callback", err)
	}
	if s.guard != nil {
		s.guard.Mark(ctx, key)
	}
	if !res.Applied {
		s.logger.Info("payment callback ignored", zap.Uint64("lesson_id", lessonID),
			zap.String("transaction_id", tx.ID), zap.Bool("success", tx.Success))
		return res, nil
	}

	s.logger.Info("payment callback applied", zap.Uint64("lesson_id", lessonID),
		zap.String("transaction_id", tx.ID), zap.Bool("success", tx.Success))
	if !tx.Success {
		return res, nil
	}

	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		s.logger.Warn("reload paid lesson", zap.Uint64("lesson_id", lessonID), zap.Error(err))
		return res, nil
	}
	if l.Status == model.LessonCanceled {
		s.logger.Warn("payment captured for a canceled lesson", zap.Uint64("lesson_id", lessonID),
			zap.String("transaction_id", tx.ID))
	}
	amount := float64(tx.AmountCents) / 100
	sendNotification(ctx, s.notifier, s.logger, notify.PaymentReceived(l, l.StudentID, amount))
	if l.AcceptedTeacherID != nil {
		sendNotification(ctx, s.notifier, s.logger, notify.PaymentReceived(l, *l.AcceptedTeacherID, amount))
	}
	return res, nil
}

// ReleaseForCaller releases a lesson's payment on behalf of an admin or the
// accepted teacher.
func (s *PaymentService) ReleaseForCaller(ctx context.Context, caller Caller, lessonID uint64) (model.Lesson, error) {
	if caller.Role != model.RoleAdmin {
		l, err := s.lessons.GetByID(ctx, lessonID)
		if err != nil {
			return l, storeErr("lesson", err)
		}
		if caller.Role != model.RoleTeacher || !l.HasAcceptedTeacher(caller.ID) {
			return l, errForbidden("only the accepted teacher or an admin can release this payment")
		}
	}
	return s.Release(ctx, lessonID)
}

// Release pays the accepted teacher. The payment is claimed (paid -> held)
// before the gateway is called so concurrent releases cannot both pay out;
// a gateway failure puts it back to paid for a later retry.
func (s *PaymentService) Release(ctx context.Context, lessonID uint64) (model.Lesson, error) {
	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return l, storeErr("lesson", err)
	}
	if l.Status != model.LessonCompleted {
		return l, errConflict("payment can only be released for a completed lesson")
	}
	if l.PaymentStatus != model.PaymentPaid {
		return l, errConflict(fmt.Sprintf("payment is %s, not releasable", l.PaymentStatus))
	}
	if l.AcceptedTeacherID == nil {
		return l, errConflict("lesson has no accepted teacher")
	}
	profile, err := s.users.TeacherProfile(ctx, *l.AcceptedTeacherID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return l, errInternal("load teacher profile", err)
	}
	if !profile.HasPayoutRecipient() {
		return l, errConflict("teacher has not registered a payout account")
	}

	ok, err := s.lessons.ClaimRelease(ctx, lessonID)
	if err != nil {
		return l, errInternal("claim release", err)
	}
	if !ok {
		return l, errConflict("payment release already in progress")
	}

	cents := payoutCents(l)
	if cents != toCents(l.Price) {
		s.logger.Warn("amount paid differs from lesson price", zap.Uint64("lesson_id", lessonID),
			zap.Float64("price", l.Price), zap.Float64("amount_paid", l.AmountPaid))
	}
	payoutID, err := s.gateway.Payout(ctx, paymob.PayoutRequest{
		AmountCents: cents,
		RecipientID: *profile.PayoutRecipientID,
		Description: fmt.Sprintf("Lesson #%d %s", l.ID, l.Subject),
	})
	if err != nil {
		if _, abortErr := s.lessons.AbortRelease(ctx, lessonID); abortErr != nil {
			s.logger.Error("release abort failed, lesson left held", zap.Uint64("lesson_id", lessonID), zap.Error(abortErr))
		}
		s.logger.Warn("payout failed", zap.Uint64("lesson_id", lessonID), zap.Error(err))
		return l, errUpstream("payout failed", err)
	}

	ok, err = s.lessons.FinishRelease(ctx, lessonID, payoutID)
	if err != nil || !ok {
		s.logger.Error("payout sent but not recorded", zap.Uint64("lesson_id", lessonID),
			zap.String("payout_id", payoutID), zap.Error(err))
		return l, errInternal("record payout", err)
	}
	s.logger.Info("payment released", zap.Uint64("lesson_id", lessonID), zap.String("payout_id", payoutID),
		zap.Int64("amount_cents", cents))

	if l, err = s.lessons.GetByID(ctx, lessonID); err != nil {
		return l, storeErr("lesson", err)
	}
	return l, nil
}

// payoutCents is the amount the gateway actually collected, falling back to
// the price for rows settled before amount_paid was recorded.
func payoutCents(l model.Lesson) int64 {
	if l.AmountPaid > 0 {
		return toCents(l.AmountPaid)
	}
	return toCents(l.Price)
}

func paymentSettled(status string) bool {
	switch status {
	case model.PaymentPaid, model.PaymentHeld, model.PaymentReleased:
		return true
	}
	return false
}
