package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/service"
)

// maxCallbackBytes bounds webhook bodies.
const maxCallbackBytes = 1 << 20

// PaymentAPI is implemented by *service.PaymentService.
type PaymentAPI interface {
	InitiatePayment(ctx context.Context, studentID, lessonID uint64) (service.PaymentSession, error)
	HandleCallback(ctx context.Context, obj map[string]any, signature string) (service.CallbackResult, error)
	ReleaseForCaller(ctx context.Context, caller service.Caller, lessonID uint64) (model.Lesson, error)
}

type PaymentHandler struct {
	Payments PaymentAPI
}

func NewPaymentHandler(p PaymentAPI) *PaymentHandler {
	return &PaymentHandler{Payments: p}
}

type callbackBody struct {
	Type string         `json:"type"`
	Obj  map[string]any `json:"obj"`
	HMAC string         `json:"hmac"`
}

// Initiate creates a gateway order for the lesson and returns the hosted
// payment URL.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, gatewayTimeout)
	defer cancel()

	sess, err := h.Payments.InitiatePayment(ctx, caller(c).ID, lessonID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

// Release pays the teacher of a completed, paid lesson.
func (h *PaymentHandler) Release(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, gatewayTimeout)
	defer cancel()

	l, err := h.Payments.ReleaseForCaller(ctx, caller(c), lessonID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

// Callback receives transaction webhooks. Numbers are decoded as
// json.Number so the signed string form of each value is preserved.
func (h *PaymentHandler) Callback(c echo.Context) error {
	var body callbackBody
	dec := json.NewDecoder(http.MaxBytesReader(c.Response(), c.Request().Body, maxCallbackBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body.Obj == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid callback body")
	}
	signature := strings.TrimSpace(body.HMAC)
	if signature == "" {
		signature = strings.TrimSpace(c.QueryParam("hmac"))
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	res, err := h.Payments.HandleCallback(ctx, body.Obj, signature)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
