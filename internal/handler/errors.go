package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/middleware"
	"github.com/iliyamo/tutor-marketplace/internal/service"
)

// ErrorReporter receives server errors. *app.Reporter implements it.
type ErrorReporter interface {
	Error(err error, userID uint64, extras map[string]interface{})
}

// NewHTTPErrorHandler maps handler errors onto JSON responses:
// service errors by kind, validation errors as a field map and anything
// unexpected as a 500 that is reported.
func NewHTTPErrorHandler(v *Validator, reporter ErrorReporter, logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			code    int
			message interface{}
			report  bool
		)

		var (
			httpErr  *echo.HTTPError
			svcErr   *service.Error
			validErr validator.ValidationErrors
		)
		switch {
		case errors.As(err, &svcErr):
			code = svcErr.Kind.HTTPStatus()
			message = svcErr.Msg
			if svcErr.Kind == service.KindInternal {
				message = http.StatusText(code)
			}
			report = code >= http.StatusInternalServerError
		case errors.As(err, &validErr):
			code = http.StatusBadRequest
			message = v.Messages(validErr)
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message
			report = code >= http.StatusInternalServerError
		default:
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			report = true
		}

		if report {
			reporter.Error(err, middleware.UserID(c), map[string]interface{}{
				"method": c.Request().Method,
				"path":   c.Path(),
				"status": code,
			})
		} else if code >= http.StatusBadRequest {
			logger.Debug("request rejected", zap.Int("status", code), zap.Error(err))
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			logger.Error("write error response", zap.Error(err))
		}
	}
}
