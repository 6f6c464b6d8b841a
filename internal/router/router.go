package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tutor-marketplace/internal/handler"
	"github.com/iliyamo/tutor-marketplace/internal/middleware"
	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Account  *handler.AccountHandler
	Lessons  *handler.LessonHandler
	Payments *handler.PaymentHandler
	Zego     *handler.ZegoHandler
	Points   *handler.PointsHandler
	Teachers *handler.TeacherHandler
	Reviews  *handler.ReviewHandler
	Health   echo.HandlerFunc
}

// Middlewares are the cross-cutting layers applied per route group. Nil
// entries are skipped.
type Middlewares struct {
	RateLimit        echo.MiddlewareFunc // user-facing API profile
	WebhookRateLimit echo.MiddlewareFunc // provider callbacks
	Cache            echo.MiddlewareFunc // GET listings
}

func use(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Register mounts all routes on e.
func Register(e *echo.Echo, h Handlers, mw Middlewares, jwtSecret string) {
	e.GET("/healthz", h.Health)

	RegisterAuth(e, h.Auth, mw)
	RegisterWebhooks(e, h, mw)

	auth := middleware.JWTAuth(jwtSecret)
	v1 := e.Group("/v1", use(auth, mw.RateLimit)...)
	student := middleware.RequireRole(model.RoleStudent)
	teacher := middleware.RequireRole(model.RoleTeacher)
	admin := middleware.RequireRole(model.RoleAdmin)

	v1.GET("/me", h.Account.Me)
	v1.PUT("/me/device", h.Account.RegisterDevice)
	v1.GET("/me/notifications", h.Account.Notifications)

	lessons := v1.Group("/lessons")
	lessons.POST("", h.Lessons.Create, student)
	lessons.GET("", h.Lessons.List, use(mw.Cache)...)
	lessons.GET("/requests", h.Lessons.Requests, teacher)
	lessons.POST("/requests/:lessonId/respond", h.Lessons.Respond, teacher)
	lessons.POST("/:lessonId/counter-offer", h.Lessons.CounterOffer, teacher)
	lessons.GET("/:lessonId/offers", h.Lessons.Offers, student)
	lessons.PATCH("/:lessonId/update-price", h.Lessons.UpdatePrice, student)
	lessons.POST("/:lessonId/choose-teacher/:teacherId", h.Lessons.ChooseTeacher, student)
	lessons.GET("/:lessonId/interested-teachers", h.Lessons.Interested, student)
	lessons.GET("/:lessonId/meeting-token", h.Lessons.MeetingToken, middleware.RequireRole(model.RoleStudent, model.RoleTeacher))
	lessons.DELETE("/:lessonId/cancel", h.Lessons.Cancel, student)
	lessons.PATCH("/:lessonId/complete", h.Lessons.Complete, teacher)

	payments := v1.Group("/payments")
	payments.POST("/:lessonId/initiate", h.Payments.Initiate, student)
	payments.POST("/:lessonId/release", h.Payments.Release, middleware.RequireRole(model.RoleAdmin, model.RoleTeacher))

	points := v1.Group("/points")
	points.GET("/me", h.Points.Mine)
	points.GET("/levels-stats", h.Points.LevelStats, admin)
	points.GET("/all-users", h.Points.AllUsers, admin)

	teachers := v1.Group("/teachers", teacher)
	teachers.PUT("/payment-info", h.Teachers.UpdatePaymentInfo)
	teachers.GET("/payment-info", h.Teachers.GetPaymentInfo)
	teachers.GET("/payout-history", h.Teachers.PayoutHistory)

	v1.POST("/reviews", h.Reviews.Create, student)
}

// RegisterAuth mounts the session endpoints. None of them require an
// access token; logout also accepts a refresh token alone.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, mw Middlewares) {
	g := e.Group("/v1/auth", use(mw.RateLimit)...)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.POST("/v1/logout", a.Logout, use(mw.RateLimit)...)
}

// RegisterWebhooks mounts provider callbacks. They authenticate by
// signature, not JWT, and use their own rate limit profile.
func RegisterWebhooks(e *echo.Echo, h Handlers, mw Middlewares) {
	g := e.Group("/v1", use(mw.WebhookRateLimit)...)
	g.POST("/payments/callback", h.Payments.Callback)
	g.POST("/zego/callback", h.Zego.Callback)
}
