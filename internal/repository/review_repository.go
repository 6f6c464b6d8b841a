package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// ReviewRepo persists lesson reviews.
type ReviewRepo struct{ DB *sqlx.DB }

func NewReviewRepo(db *sqlx.DB) *ReviewRepo { return &ReviewRepo{DB: db} }

// Create inserts a review. A second review for the same lesson yields
// ErrDuplicate.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO reviews (lesson_id, student_id, teacher_id, rating, comment)
		VALUES (?,?,?,?,?)`, rv.LessonID, rv.StudentID, rv.TeacherID, rv.Rating, rv.Comment)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}
