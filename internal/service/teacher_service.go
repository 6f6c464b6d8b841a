package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/gateway/paymob"
	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// Payout methods.
const (
	PayoutBank   = "bank"
	PayoutWallet = "wallet"
)

// TeacherService manages the account teachers are paid into.
type TeacherService struct {
	users   UserStore
	lessons LessonStore
	gateway PaymentGateway
	logger  *zap.Logger
}

func NewTeacherService(users UserStore, lessons LessonStore, gateway PaymentGateway, logger *zap.Logger) *TeacherService {
	return &TeacherService{users: users, lessons: lessons, gateway: gateway, logger: logger}
}

func validatePaymentInfo(in model.PaymentInfo) error {
	switch in.Method {
	case PayoutBank:
		if in.AccountName == "" || in.AccountNumber == "" || in.BankName == "" {
			return errValidation("bank payouts need account_name, account_number and bank_name")
		}
	case PayoutWallet:
		if in.PhoneNumber == "" || in.WalletProvider == "" {
			return errValidation("wallet payouts need phone_number and wallet_provider")
		}
	default:
		return errValidation("method must be bank or wallet")
	}
	return nil
}

// UpdatePaymentInfo stores the payout account and registers the teacher as
// a gateway recipient. The account is saved (status registering) before the
// gateway is called; a failed registration leaves status failed and can be
// retried by submitting again.
func (s *TeacherService) UpdatePaymentInfo(ctx context.Context, teacherID uint64, in model.PaymentInfo) (model.TeacherProfile, error) {
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	if err := validatePaymentInfo(in); err != nil {
		return model.TeacherProfile{}, err
	}
	if err := s.users.SavePaymentInfo(ctx, teacherID, in); err != nil {
		return model.TeacherProfile{}, storeErr("teacher profile", err)
	}
	profile, err := s.users.TeacherProfile(ctx, teacherID)
	if err != nil {
		return profile, storeErr("teacher profile", err)
	}
	if profile.HasPayoutRecipient() {
		return profile, nil
	}

	u, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		return profile, storeErr("teacher", err)
	}
	req := paymob.RecipientRequest{
		Name:  firstNonEmpty(in.AccountName, u.FullName()),
		Email: u.Email,
		Phone: in.PhoneNumber,
		Type:  in.Method,
	}
	if in.Method == PayoutBank {
		req.AccountNumber, req.BankName = in.AccountNumber, in.BankName
	} else {
		req.BankName = in.WalletProvider
	}

	recipientID, err := s.gateway.RegisterRecipient(ctx, req)
	if err != nil {
		if markErr := s.users.MarkPayoutFailed(ctx, teacherID, err.Error()); markErr != nil {
			s.logger.Error("mark payout registration failed", zap.Uint64("teacher_id", teacherID), zap.Error(markErr))
		}
		return profile, errUpstream("payout account registration failed", err)
	}
	if err := s.users.SetPayoutRecipient(ctx, teacherID, recipientID); err != nil {
		s.logger.Error("recipient registered but not stored", zap.Uint64("teacher_id", teacherID),
			zap.String("recipient_id", recipientID), zap.Error(err))
		return profile, errInternal("store payout recipient", err)
	}
	s.logger.Info("payout recipient registered", zap.Uint64("teacher_id", teacherID), zap.String("recipient_id", recipientID))

	profile, err = s.users.TeacherProfile(ctx, teacherID)
	if err != nil {
		return profile, storeErr("teacher profile", err)
	}
	return profile, nil
}

// GetPaymentInfo returns the stored payout account.
func (s *TeacherService) GetPaymentInfo(ctx context.Context, teacherID uint64) (model.TeacherProfile, error) {
	profile, err := s.users.TeacherProfile(ctx, teacherID)
	if err != nil {
		return profile, storeErr("teacher profile", err)
	}
	if profile.PayoutMethod == nil {
		return profile, errNotFound("payment info not found")
	}
	return profile, nil
}

// PayoutHistory lists the teacher's lessons whose money was collected.
func (s *TeacherService) PayoutHistory(ctx context.Context, teacherID uint64) ([]model.Lesson, error) {
	out, err := s.lessons.PayoutHistory(ctx, teacherID)
	if err != nil {
		return nil, errInternal("payout history", err)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
