package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// AccountAPI is implemented by *service.AccountService.
type AccountAPI interface {
	Me(ctx context.Context, userID uint64) (model.User, error)
	RegisterDevice(ctx context.Context, userID uint64, pushToken, lang string) error
	Notifications(ctx context.Context, userID uint64, page, limit int) ([]model.Notification, error)
}

type AccountHandler struct {
	Accounts AccountAPI
}

func NewAccountHandler(a AccountAPI) *AccountHandler {
	return &AccountHandler{Accounts: a}
}

type deviceReq struct {
	PushToken string `json:"push_token" validate:"max=4096"`
	Language  string `json:"language"`
}

func (h *AccountHandler) Me(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	u, err := h.Accounts.Me(ctx, caller(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// RegisterDevice stores the FCM token and notification language. An empty
// push_token unregisters the device.
func (h *AccountHandler) RegisterDevice(c echo.Context) error {
	var req deviceReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Accounts.RegisterDevice(ctx, caller(c).ID, req.PushToken, req.Language); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AccountHandler) Notifications(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	items, err := h.Accounts.Notifications(ctx, caller(c).ID, page, limit)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
