package model

import "time"

// Review mirrors the `reviews` table; lesson_id is unique.
type Review struct {
	ID        uint64    `db:"id" json:"id"`
	LessonID  uint64    `db:"lesson_id" json:"lesson_id"`
	StudentID uint64    `db:"student_id" json:"student_id"`
	TeacherID uint64    `db:"teacher_id" json:"teacher_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
