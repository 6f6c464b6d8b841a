package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// lessonSortColumns whitelists sortable columns.
var lessonSortColumns = map[string]string{
	"created_at":     "l.created_at",
	"price":          "l.price",
	"requested_date": "l.requested_date",
}

// List returns one page of lessons matching f and the total match count.
func (r *LessonRepo) List(ctx context.Context, f model.LessonFilter) ([]model.Lesson, int64, error) {
	where := []string{}
	args := []any{}

	switch {
	case f.StudentID != nil:
		where = append(where, "l.student_id = ?")
		args = append(args, *f.StudentID)
	case f.TeacherID != nil:
		where = append(where, `(l.subject IN (SELECT ts.subject FROM teacher_subjects ts WHERE ts.user_id = ?)
			OR EXISTS (SELECT 1 FROM lesson_interests i WHERE i.lesson_id = l.id AND i.teacher_id = ?)
			OR l.accepted_teacher_id = ?)`)
		args = append(args, *f.TeacherID, *f.TeacherID, *f.TeacherID)
	}
	if f.Status != "" {
		where = append(where, "l.status = ?")
		args = append(args, f.Status)
	}
	if f.Subject != "" {
		where = append(where, "l.subject = ?")
		args = append(args, f.Subject)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM lessons l WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + lessonColumns + ` FROM lessons l WHERE ` + cond +
		` ORDER BY ` + lessonOrderBy(f.Sort) + ` LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), f.Limit, f.Offset)

	out := make([]model.Lesson, 0, f.Limit)
	if err := r.DB.SelectContext(ctx, &out, dataSQL, argsData...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListRequestsForTeacher returns pending, unaccepted lessons the teacher can
// respond to: open requests in a taught subject and direct requests
// addressed to the teacher.
func (r *LessonRepo) ListRequestsForTeacher(ctx context.Context, teacherID uint64, limit, offset int) ([]model.Lesson, error) {
	out := make([]model.Lesson, 0, limit)
	err := r.DB.SelectContext(ctx, &out, `SELECT `+lessonColumns+` FROM lessons l
		WHERE l.status='pending' AND l.accepted_teacher_id IS NULL
			AND ((l.request_type='open' AND l.subject IN (SELECT ts.subject FROM teacher_subjects ts WHERE ts.user_id=?))
				OR l.target_teacher_id=?)
		ORDER BY l.created_at DESC LIMIT ? OFFSET ?`, teacherID, teacherID, limit, offset)
	return out, err
}

// lessonOrderBy turns "price" / "-price" into a safe ORDER BY clause.
func lessonOrderBy(sort string) string {
	desc := strings.HasPrefix(sort, "-")
	col, ok := lessonSortColumns[strings.TrimPrefix(sort, "-")]
	if !ok {
		return "l.created_at DESC, l.id DESC"
	}
	if desc {
		return col + " DESC, l.id DESC"
	}
	return col + " ASC, l.id ASC"
}
