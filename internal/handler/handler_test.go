package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/middleware"
	"github.com/iliyamo/tutor-marketplace/internal/service"
)

type reportSpy struct {
	errs  []error
	users []uint64
}

func (r *reportSpy) Error(err error, userID uint64, _ map[string]interface{}) {
	r.errs = append(r.errs, err)
	r.users = append(r.users, userID)
}

func newTestEcho() (*echo.Echo, *reportSpy) {
	e := echo.New()
	v := NewValidator()
	e.Validator = v
	spy := &reportSpy{}
	e.HTTPErrorHandler = NewHTTPErrorHandler(v, spy, zap.NewNop())
	return e, spy
}

// as stands in for the JWT middleware.
func as(id uint64, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.ContextUserID, id)
			c.Set(middleware.ContextRole, role)
			return next(c)
		}
	}
}

func do(e *echo.Echo, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHTTPErrorHandler(t *testing.T) {
	upstream := &service.Error{Kind: service.KindUpstream, Msg: "payment gateway unavailable", Err: errors.New("dial tcp")}

	tests := []struct {
		name     string
		err      error
		status   int
		body     string
		reported bool
	}{
		{"validation", &service.Error{Kind: service.KindValidation, Msg: "price must be greater than zero"},
			http.StatusBadRequest, `{"error":"price must be greater than zero"}`, false},
		{"conflict", &service.Error{Kind: service.KindConflict, Msg: "lesson is no longer pending"},
			http.StatusBadRequest, `{"error":"lesson is no longer pending"}`, false},
		{"forbidden", &service.Error{Kind: service.KindForbidden, Msg: "not your lesson"},
			http.StatusForbidden, `{"error":"not your lesson"}`, false},
		{"not found", &service.Error{Kind: service.KindNotFound, Msg: "lesson not found"},
			http.StatusNotFound, `{"error":"lesson not found"}`, false},
		{"upstream", upstream, http.StatusBadGateway, `{"error":"payment gateway unavailable"}`, true},
		{"wrapped", fmt.Errorf("initiate: %w", upstream), http.StatusBadGateway, `{"error":"payment gateway unavailable"}`, true},
		{"internal hides detail", &service.Error{Kind: service.KindInternal, Msg: "load lesson", Err: errors.New("db down")},
			http.StatusInternalServerError, `{"error":"Internal Server Error"}`, true},
		{"echo error", echo.NewHTTPError(http.StatusConflict, "email already exists"),
			http.StatusConflict, `{"error":"email already exists"}`, false},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, `{"error":"Internal Server Error"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, spy := newTestEcho()
			e.GET("/fail", func(c echo.Context) error { return tt.err }, as(7, "student"))

			rec := do(e, http.MethodGet, "/fail", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
			if tt.reported {
				require.Len(t, spy.errs, 1)
				assert.Equal(t, uint64(7), spy.users[0])
			} else {
				assert.Empty(t, spy.errs)
			}
		})
	}
}

func TestHTTPErrorHandler_UnknownRoute(t *testing.T) {
	e, spy := newTestEcho()
	rec := do(e, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
	assert.Empty(t, spy.errs)
}

func TestValidatorMessages(t *testing.T) {
	type input struct {
		Name  string `json:"name" validate:"required,notblank"`
		Email string `json:"email" validate:"omitempty,email"`
	}
	e, _ := newTestEcho()
	e.POST("/v", func(c echo.Context) error {
		var in input
		if err := bindValid(c, &in); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})

	rec := do(e, http.MethodPost, "/v", `{"name":"","email":"nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "this field is required", body["name"])
	assert.Contains(t, body, "email")

	rec = do(e, http.MethodPost, "/v", `{"name":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name must not be blank", decodeMap(t, rec)["name"])

	rec = do(e, http.MethodPost, "/v", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid body"}`, rec.Body.String())
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	e, _ := newTestEcho()
	e.GET("/ok", Health(nil))
	e.GET("/up", Health(pingFunc(func(context.Context) error { return nil })))
	e.GET("/down", Health(pingFunc(func(context.Context) error { return errors.New("gone") })))

	rec := do(e, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/up", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/down", "").Code)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"student", "acceptedTeacher"}, splitList(" student, acceptedTeacher,,"))
	assert.Nil(t, splitList(""))
}
