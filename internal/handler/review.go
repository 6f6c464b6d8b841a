package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/service"
)

// ReviewAPI is implemented by *service.ReviewService.
type ReviewAPI interface {
	Create(ctx context.Context, studentID uint64, in service.ReviewInput) (model.Review, error)
}

type ReviewHandler struct {
	Reviews ReviewAPI
}

func NewReviewHandler(r ReviewAPI) *ReviewHandler {
	return &ReviewHandler{Reviews: r}
}

type reviewReq struct {
	LessonID uint64 `json:"lesson_id" validate:"required,gt=0"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Comment  string `json:"comment" validate:"max=2000"`
}

func (h *ReviewHandler) Create(c echo.Context) error {
	var req reviewReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	r, err := h.Reviews.Create(ctx, caller(c).ID, service.ReviewInput{
		LessonID: req.LessonID, Rating: req.Rating, Comment: req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}
