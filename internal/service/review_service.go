package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/repository"
)

// ReviewInput is a student's review of a completed lesson.
type ReviewInput struct {
	LessonID uint64
	Rating   int
	Comment  string
}

// ReviewService records reviews and rewards the reviewer.
type ReviewService struct {
	reviews ReviewStore
	lessons LessonStore
	points  *PointsService
	logger  *zap.Logger
}

func NewReviewService(reviews ReviewStore, lessons LessonStore, points *PointsService, logger *zap.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, lessons: lessons, points: points, logger: logger}
}

// Create stores the one review a completed lesson can have.
func (s *ReviewService) Create(ctx context.Context, studentID uint64, in ReviewInput) (model.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return model.Review{}, errValidation("rating must be between 1 and 5")
	}
	l, err := s.lessons.GetByID(ctx, in.LessonID)
	if err != nil {
		return model.Review{}, storeErr("lesson", err)
	}
	if l.StudentID != studentID {
		return model.Review{}, errForbidden("you do not own this lesson")
	}
	if l.Status != model.LessonCompleted || l.AcceptedTeacherID == nil {
		return model.Review{}, errConflict("only completed lessons can be reviewed")
	}

	rv := model.Review{
		LessonID:  l.ID,
		StudentID: studentID,
		TeacherID: *l.AcceptedTeacherID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	}
	if err := s.reviews.Create(ctx, &rv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Review{}, errConflict("lesson has already been reviewed")
		}
		return model.Review{}, errInternal("save review", err)
	}

	s.points.award(ctx, studentID, s.points.Rewards().Review, "lesson reviewed")
	return rv, nil
}
