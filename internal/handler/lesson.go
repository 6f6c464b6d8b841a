package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/service"
)

// LessonAPI is the lesson lifecycle as the HTTP layer sees it.
// *service.LessonService implements it.
type LessonAPI interface {
	CreateLessonRequest(ctx context.Context, studentID uint64, in service.CreateLessonInput) (service.LessonRequestResult, error)
	ListRequestsForTeacher(ctx context.Context, teacherID uint64, page, limit int) ([]model.Lesson, error)
	RespondToLessonRequest(ctx context.Context, teacherID, lessonID uint64, response string) (model.Lesson, error)
	CounterOffer(ctx context.Context, teacherID, lessonID uint64, price float64, message string) (model.Offer, error)
	GetOffers(ctx context.Context, studentID, lessonID uint64) ([]model.Offer, error)
	UpdateLessonPrice(ctx context.Context, studentID, lessonID uint64, price float64) (model.Lesson, error)
	ChooseTeacher(ctx context.Context, studentID, lessonID, teacherID uint64, finalPrice *float64) (service.SelectionResult, error)
	GetInterestedTeachers(ctx context.Context, studentID, lessonID uint64) ([]model.UserSummary, error)
	MeetingToken(ctx context.Context, userID, lessonID uint64) (service.MeetingAccess, error)
	CancelLessonRequest(ctx context.Context, studentID, lessonID uint64) (model.Lesson, error)
	CompleteLesson(ctx context.Context, teacherID, lessonID uint64) (service.CompletionResult, error)
	GetLessons(ctx context.Context, caller service.Caller, q service.LessonQuery) (service.LessonPage, error)
}

type LessonHandler struct {
	Lessons LessonAPI
}

func NewLessonHandler(l LessonAPI) *LessonHandler {
	return &LessonHandler{Lessons: l}
}

type createLessonReq struct {
	TeacherID       *uint64   `json:"teacher_id" validate:"omitempty,gt=0"`
	Subject         string    `json:"subject" validate:"required,notblank,max=100"`
	Title           string    `json:"title" validate:"required,notblank,max=200"`
	Description     string    `json:"description" validate:"max=2000"`
	Price           float64   `json:"price" validate:"required,gt=0"`
	RequestedDate   time.Time `json:"requested_date" validate:"required"`
	DurationMinutes int       `json:"duration_in_minutes" validate:"required,gt=0,lte=600"`
}

type respondReq struct {
	Response string `json:"response" validate:"required,oneof=accept reject"`
}

type counterOfferReq struct {
	ProposedPrice float64 `json:"proposed_price" validate:"required,gt=0"`
	Message       string  `json:"message" validate:"max=1000"`
}

type priceReq struct {
	Price float64 `json:"price" validate:"required,gt=0"`
}

type chooseTeacherReq struct {
	FinalPrice *float64 `json:"final_price" validate:"omitempty,gt=0"`
}

// Create stores a lesson request and notifies matching teachers.
func (h *LessonHandler) Create(c echo.Context) error {
	var req createLessonReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	res, err := h.Lessons.CreateLessonRequest(ctx, caller(c).ID, service.CreateLessonInput{
		TargetTeacherID: req.TeacherID,
		Subject:         req.Subject,
		Title:           req.Title,
		Description:     req.Description,
		Price:           req.Price,
		RequestedDate:   req.RequestedDate.UTC(),
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// List returns the caller's lessons. Query: page, limit, sort, status,
// subject and expand (comma separated).
func (h *LessonHandler) List(c echo.Context) error {
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

	res, err := h.Lessons.GetLessons(ctx, caller(c), service.LessonQuery{
		Page:    page,
		Limit:   limit,
		Sort:    c.QueryParam("sort"),
		Status:  c.QueryParam("status"),
		Subject: c.QueryParam("subject"),
		Expand:  splitList(c.QueryParam("expand")),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Requests lists open and direct requests the teacher can answer.
func (h *LessonHandler) Requests(c echo.Context) error {
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

	items, err := h.Lessons.ListRequestsForTeacher(ctx, caller(c).ID, page, limit)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.Lesson{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *LessonHandler) Respond(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	var req respondReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	l, err := h.Lessons.RespondToLessonRequest(ctx, caller(c).ID, lessonID, req.Response)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"lesson": l, "response": req.Response})
}

func (h *LessonHandler) CounterOffer(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	var req counterOfferReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	o, err := h.Lessons.CounterOffer(ctx, caller(c).ID, lessonID, req.ProposedPrice, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *LessonHandler) Offers(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	items, err := h.Lessons.GetOffers(ctx, caller(c).ID, lessonID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.Offer{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *LessonHandler) UpdatePrice(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	var req priceReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	l, err := h.Lessons.UpdateLessonPrice(ctx, caller(c).ID, lessonID, req.Price)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

// ChooseTeacher accepts an interested teacher. The body is optional and
// may carry an agreed final_price.
func (h *LessonHandler) ChooseTeacher(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	teacherID, err := parseID(c, "teacherId")
	if err != nil {
		return err
	}
	var req chooseTeacherReq
	if c.Request().ContentLength != 0 {
		if err := bindValid(c, &req); err != nil {
			return err
		}
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	res, err := h.Lessons.ChooseTeacher(ctx, caller(c).ID, lessonID, teacherID, req.FinalPrice)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *LessonHandler) Interested(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	items, err := h.Lessons.GetInterestedTeachers(ctx, caller(c).ID, lessonID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.UserSummary{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *LessonHandler) MeetingToken(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	access, err := h.Lessons.MeetingToken(ctx, caller(c).ID, lessonID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, access)
}

func (h *LessonHandler) Cancel(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	l, err := h.Lessons.CancelLessonRequest(ctx, caller(c).ID, lessonID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

// Complete marks the lesson done. A paid lesson is released to the teacher
// in the same call, which may reach the payment gateway.
func (h *LessonHandler) Complete(c echo.Context) error {
	lessonID, err := parseID(c, "lessonId")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, gatewayTimeout)
	defer cancel()

	res, err := h.Lessons.CompleteLesson(ctx, caller(c).ID, lessonID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
