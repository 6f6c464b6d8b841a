package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// TeacherAPI is implemented by *service.TeacherService.
type TeacherAPI interface {
	UpdatePaymentInfo(ctx context.Context, teacherID uint64, in model.PaymentInfo) (model.TeacherProfile, error)
	GetPaymentInfo(ctx context.Context, teacherID uint64) (model.TeacherProfile, error)
	PayoutHistory(ctx context.Context, teacherID uint64) ([]model.Lesson, error)
}

type TeacherHandler struct {
	Teachers TeacherAPI
}

func NewTeacherHandler(t TeacherAPI) *TeacherHandler {
	return &TeacherHandler{Teachers: t}
}

// Field requirements per method are checked by the service.
type paymentInfoReq struct {
	Method         string `json:"method" validate:"required,notblank"`
	AccountName    string `json:"account_name" validate:"max=150"`
	AccountNumber  string `json:"account_number" validate:"max=64"`
	BankName       string `json:"bank_name" validate:"max=100"`
	WalletProvider string `json:"wallet_provider" validate:"max=50"`
	PhoneNumber    string `json:"phone_number" validate:"omitempty,max=20,numeric"`
}

// UpdatePaymentInfo stores the payout account and registers it with the
// gateway.
func (h *TeacherHandler) UpdatePaymentInfo(c echo.Context) error {
	var req paymentInfoReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, gatewayTimeout)
	defer cancel()

	profile, err := h.Teachers.UpdatePaymentInfo(ctx, caller(c).ID, model.PaymentInfo{
		Method:         req.Method,
		AccountName:    req.AccountName,
		AccountNumber:  req.AccountNumber,
		BankName:       req.BankName,
		WalletProvider: req.WalletProvider,
		PhoneNumber:    req.PhoneNumber,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *TeacherHandler) GetPaymentInfo(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	profile, err := h.Teachers.GetPaymentInfo(ctx, caller(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *TeacherHandler) PayoutHistory(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	items, err := h.Teachers.PayoutHistory(ctx, caller(c).ID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.Lesson{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
