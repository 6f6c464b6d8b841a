package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/service"
)

// MeetingAPI is implemented by *service.MeetingService.
type MeetingAPI interface {
	HandleEvent(ctx context.Context, ev service.MeetingEvent) (service.MeetingResult, error)
}

// CallbackVerifier checks the provider's callback signature.
// *zego.Provider implements it.
type CallbackVerifier interface {
	VerifyCallback(signature, timestamp, nonce string) bool
}

type ZegoHandler struct {
	Meetings MeetingAPI
	Verifier CallbackVerifier
	Logger   *zap.Logger
}

func NewZegoHandler(m MeetingAPI, v CallbackVerifier, logger *zap.Logger) *ZegoHandler {
	return &ZegoHandler{Meetings: m, Verifier: v, Logger: logger}
}

type zegoCallbackReq struct {
	Event     string          `json:"event"`
	RoomID    string          `json:"room_id"`
	UserID    json.RawMessage `json:"user_id"`
	EventTime json.RawMessage `json:"event_time"`
	Signature string          `json:"signature"`
	Timestamp json.RawMessage `json:"timestamp"`
	Nonce     json.RawMessage `json:"nonce"`
}

// eventTime accepts unix seconds or milliseconds. Zero means unknown.
func eventTime(raw json.RawMessage) time.Time {
	v, err := strconv.ParseInt(rawString(raw), 10, 64)
	if err != nil || v <= 0 {
		return time.Time{}
	}
	// anything past year 5138 in seconds is really milliseconds
	if v > 1e11 {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

// rawString renders a JSON scalar (string or number) as plain text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Callback applies room join and leave events. When a callback secret is
// configured the body must carry signature, timestamp and nonce.
func (h *ZegoHandler) Callback(c echo.Context) error {
	var req zegoCallbackReq
	if err := json.NewDecoder(http.MaxBytesReader(c.Response(), c.Request().Body, maxCallbackBytes)).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid callback body")
	}
	if h.Verifier != nil && !h.Verifier.VerifyCallback(req.Signature, rawString(req.Timestamp), rawString(req.Nonce)) {
		h.Logger.Warn("meeting callback rejected: bad signature", zap.String("room_id", req.RoomID))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid callback signature")
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	res, err := h.Meetings.HandleEvent(ctx, service.MeetingEvent{
		Event:     req.Event,
		RoomID:    req.RoomID,
		UserID:    rawString(req.UserID),
		EventTime: eventTime(req.EventTime),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
