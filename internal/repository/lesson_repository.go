package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

const lessonColumns = `l.id, l.student_id, l.subject, l.title, l.description, l.price, l.requested_date,
	l.duration_minutes, l.request_type, l.target_teacher_id, l.accepted_teacher_id, l.status,
	l.meeting_room_id, l.meeting_status, l.meeting_start_time, l.meeting_end_time,
	l.student_join_token, l.teacher_join_token, l.payment_status, l.payment_amount,
	l.payment_order_id, l.merchant_order_id, l.payment_transaction_id, l.payment_state,
	l.amount_paid, l.teacher_payout_id, l.created_at, l.updated_at`

// LessonRepo persists lessons, their interest set and offers. Every state
// transition is a single conditional UPDATE keyed on the expected prior
// state; the boolean result reports whether the transition was applied.
type LessonRepo struct{ DB *sqlx.DB }

func NewLessonRepo(db *sqlx.DB) *LessonRepo { return &LessonRepo{DB: db} }

// Create inserts a pending lesson and sets its ID and defaults.
func (r *LessonRepo) Create(ctx context.Context, l *model.Lesson) error {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO lessons
		(student_id, subject, title, description, price, requested_date, duration_minutes, request_type, target_teacher_id)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		l.StudentID, l.Subject, l.Title, l.Description, l.Price, l.RequestedDate.UTC(), l.DurationMinutes,
		l.RequestType, l.TargetTeacherID)
	if err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*l = created
	return nil
}

// GetByID fetches a lesson by id.
func (r *LessonRepo) GetByID(ctx context.Context, id uint64) (model.Lesson, error) {
	var l model.Lesson
	err := r.DB.GetContext(ctx, &l, `SELECT `+lessonColumns+` FROM lessons l WHERE l.id=? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return l, ErrNotFound
	}
	return l, err
}

// GetByRoomID fetches the lesson owning a meeting room.
func (r *LessonRepo) GetByRoomID(ctx context.Context, roomID string) (model.Lesson, error) {
	var l model.Lesson
	err := r.DB.GetContext(ctx, &l, `SELECT `+lessonColumns+` FROM lessons l WHERE l.meeting_room_id=? LIMIT 1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return l, ErrNotFound
	}
	return l, err
}

// AddInterest adds teacherID to the interest set while the lesson is
// pending. It returns false when nothing was inserted, either because the
// teacher is already interested or because the lesson left pending.
func (r *LessonRepo) AddInterest(ctx context.Context, lessonID, teacherID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT IGNORE INTO lesson_interests (lesson_id, teacher_id)
		SELECT l.id, ? FROM lessons l WHERE l.id=? AND l.status='pending'`, teacherID, lessonID)
	return applied(res, err)
}

// IsInterested reports whether teacherID is in the lesson's interest set.
func (r *LessonRepo) IsInterested(ctx context.Context, lessonID, teacherID uint64) (bool, error) {
	var n int
	err := r.DB.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM lesson_interests WHERE lesson_id=? AND teacher_id=?`, lessonID, teacherID)
	return n > 0, err
}

// InterestedTeacherIDs lists the interest set in the order teachers joined.
func (r *LessonRepo) InterestedTeacherIDs(ctx context.Context, lessonID uint64) ([]uint64, error) {
	ids := []uint64{}
	err := r.DB.SelectContext(ctx, &ids,
		`SELECT teacher_id FROM lesson_interests WHERE lesson_id=? ORDER BY created_at, teacher_id`, lessonID)
	return ids, err
}

// UpsertOffer records or replaces a teacher's offer. The row is only written
// while the lesson is pending and the teacher is interested.
func (r *LessonRepo) UpsertOffer(ctx context.Context, o model.Offer) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO lesson_offers (lesson_id, teacher_id, proposed_price, message)
		SELECT l.id, i.teacher_id, ?, ? FROM lessons l
		JOIN lesson_interests i ON i.lesson_id = l.id AND i.teacher_id = ?
		WHERE l.id=? AND l.status='pending'
		ON DUPLICATE KEY UPDATE proposed_price=VALUES(proposed_price), message=VALUES(message), updated_at=CURRENT_TIMESTAMP`,
		o.ProposedPrice, o.Message, o.TeacherID, o.LessonID)
	return applied(res, err)
}

// Offers lists a lesson's offers, one per teacher.
func (r *LessonRepo) Offers(ctx context.Context, lessonID uint64) ([]model.Offer, error) {
	out := []model.Offer{}
	err := r.DB.SelectContext(ctx, &out, `SELECT lesson_id, teacher_id, proposed_price, message, created_at, updated_at
		FROM lesson_offers WHERE lesson_id=? ORDER BY created_at, teacher_id`, lessonID)
	return out, err
}

// OfferFor returns the teacher's current offer, or nil when there is none.
func (r *LessonRepo) OfferFor(ctx context.Context, lessonID, teacherID uint64) (*model.Offer, error) {
	var o model.Offer
	err := r.DB.GetContext(ctx, &o, `SELECT lesson_id, teacher_id, proposed_price, message, created_at, updated_at
		FROM lesson_offers WHERE lesson_id=? AND teacher_id=? LIMIT 1`, lessonID, teacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdatePrice changes the price while no teacher has been accepted and no
// payment order exists for the current price.
func (r *LessonRepo) UpdatePrice(ctx context.Context, lessonID, studentID uint64, price float64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET price=?
		WHERE id=? AND student_id=? AND status='pending' AND accepted_teacher_id IS NULL
			AND payment_status='unpaid'`,
		price, lessonID, studentID)
	return applied(res, err)
}

// AcceptTeacher performs pending -> approved in one statement. The status
// check, the "no teacher yet" check and interest membership are all part of
// the WHERE clause so concurrent selections cannot both win. Once a payment
// order exists the price is fixed and the final price must match it.
func (r *LessonRepo) AcceptTeacher(ctx context.Context, a model.Acceptance) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons l SET
			l.accepted_teacher_id=?, l.status='approved', l.price=?,
			l.meeting_room_id=?, l.meeting_status='upcoming',
			l.student_join_token=?, l.teacher_join_token=?
		WHERE l.id=? AND l.student_id=? AND l.status='pending' AND l.accepted_teacher_id IS NULL
			AND (l.payment_status='unpaid' OR l.price=?)
			AND EXISTS (SELECT 1 FROM lesson_interests i WHERE i.lesson_id=l.id AND i.teacher_id=?)`,
		a.TeacherID, a.FinalPrice, a.RoomID, a.StudentToken, a.TeacherToken,
		a.LessonID, a.StudentID, a.FinalPrice, a.TeacherID)
	return applied(res, err)
}

// Complete performs approved -> completed for the accepted teacher.
func (r *LessonRepo) Complete(ctx context.Context, lessonID, teacherID uint64, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET status='completed',
			meeting_status='finished', meeting_end_time=COALESCE(meeting_end_time, ?)
		WHERE id=? AND accepted_teacher_id=? AND status='approved'`,
		at.UTC(), lessonID, teacherID)
	return applied(res, err)
}

// Cancel moves a pending or approved lesson to canceled while no money has
// been captured.
func (r *LessonRepo) Cancel(ctx context.Context, lessonID, studentID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET status='canceled',
			meeting_status=IF(meeting_room_id IS NULL, meeting_status, 'canceled')
		WHERE id=? AND student_id=? AND status IN ('pending','approved')
			AND payment_status NOT IN ('paid','held','released')`,
		lessonID, studentID)
	return applied(res, err)
}

// MarkPaymentPending records a freshly created gateway order.
func (r *LessonRepo) MarkPaymentPending(ctx context.Context, lessonID, studentID uint64, p model.PaymentIntent) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET payment_status='pending', payment_state='pending',
			payment_order_id=?, merchant_order_id=?, payment_amount=?
		WHERE id=? AND student_id=? AND status<>'canceled' AND payment_status IN ('unpaid','pending')`,
		p.OrderID, p.MerchantOrderID, p.Amount, lessonID, studentID)
	return applied(res, err)
}

// MarkPaid settles a lesson after a verified success callback. Lessons
// already paid (or beyond) are left untouched, which makes replays no-ops.
// A pending lesson with an accepted teacher is promoted to approved; other
// statuses never move.
func (r *LessonRepo) MarkPaid(ctx context.Context, lessonID uint64, transactionID string, amount float64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET payment_status='paid', payment_state='paid',
			payment_transaction_id=?, amount_paid=?,
			status=IF(status='pending' AND accepted_teacher_id IS NOT NULL, 'approved', status)
		WHERE id=? AND payment_status IN ('unpaid','pending')`,
		transactionID, amount, lessonID)
	return applied(res, err)
}

// MarkPaymentFailed records a failed charge for the current order only, so a
// late failure for a superseded order cannot reset a newer attempt.
func (r *LessonRepo) MarkPaymentFailed(ctx context.Context, lessonID uint64, merchantOrderID, transactionID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET payment_status='unpaid', payment_state='failed',
			payment_transaction_id=?
		WHERE id=? AND payment_status='pending' AND merchant_order_id=?`,
		transactionID, lessonID, merchantOrderID)
	return applied(res, err)
}

// ClaimRelease moves paid -> held on a completed lesson, reserving the
// payout for the caller.
func (r *LessonRepo) ClaimRelease(ctx context.Context, lessonID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET payment_status='held'
		WHERE id=? AND status='completed' AND payment_status='paid'`, lessonID)
	return applied(res, err)
}

// FinishRelease moves held -> released and stores the payout id.
func (r *LessonRepo) FinishRelease(ctx context.Context, lessonID uint64, payoutID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET payment_status='released', payment_state='released',
			teacher_payout_id=?
		WHERE id=? AND payment_status='held'`, payoutID, lessonID)
	return applied(res, err)
}

// AbortRelease moves held -> paid after a failed payout so it can be retried.
func (r *LessonRepo) AbortRelease(ctx context.Context, lessonID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET payment_status='paid'
		WHERE id=? AND payment_status='held'`, lessonID)
	return applied(res, err)
}

// StartMeeting marks the session live on the first join.
func (r *LessonRepo) StartMeeting(ctx context.Context, lessonID uint64, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET meeting_status='ongoing', meeting_start_time=?
		WHERE id=? AND status='approved' AND meeting_status='upcoming'`, at.UTC(), lessonID)
	return applied(res, err)
}

// EndMeeting marks the session finished on the first leave.
func (r *LessonRepo) EndMeeting(ctx context.Context, lessonID uint64, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE lessons SET meeting_status='finished', meeting_end_time=?
		WHERE id=? AND meeting_end_time IS NULL AND meeting_status IN ('upcoming','ongoing')`, at.UTC(), lessonID)
	return applied(res, err)
}

// PayoutHistory lists lessons whose money was collected for teacherID.
func (r *LessonRepo) PayoutHistory(ctx context.Context, teacherID uint64) ([]model.Lesson, error) {
	out := []model.Lesson{}
	err := r.DB.SelectContext(ctx, &out, `SELECT `+lessonColumns+` FROM lessons l
		WHERE l.accepted_teacher_id=? AND l.payment_status IN ('paid','held','released')
		ORDER BY l.created_at DESC`, teacherID)
	return out, err
}

// applied converts an Exec result into "did the conditional update match".
func applied(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
