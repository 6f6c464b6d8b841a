package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/utils"
)

const userColumns = `id, email, password_hash, role, first_name, last_name, is_active, push_token,
	language, points, level, created_at, updated_at`

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user and, for teachers, the teacher profile and subjects
// in the same transaction. Returns the new ID.
func (r *UserRepo) Create(ctx context.Context, nu model.NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	hash, err := utils.HashPassword(nu.Password, cost)
	if err != nil {
		return 0, err
	}
	lang := nu.Language
	if lang != "ar" {
		lang = "en"
	}

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, first_name, last_name, language) VALUES (?,?,?,?,?,?)",
		email, hash, nu.Role, nu.FirstName, nu.LastName, lang)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if nu.Role == model.RoleTeacher {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO teacher_profiles (user_id, hourly_price) VALUES (?,?)", id, nu.HourlyPrice); err != nil {
			return 0, err
		}
		for _, s := range nu.Subjects {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT IGNORE INTO teacher_subjects (user_id, subject) VALUES (?,?)", id, s); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// SetDevice stores the push token and preferred language used for
// notification routing.
func (r *UserRepo) SetDevice(ctx context.Context, id uint64, pushToken *string, lang string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET push_token=?, language=? WHERE id=?", pushToken, lang, id)
	return err
}

// Summaries loads public projections for the given ids. Unknown ids are
// silently absent from the result.
func (r *UserRepo) Summaries(ctx context.Context, ids []uint64) ([]model.UserSummary, error) {
	out := []model.UserSummary{}
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In("SELECT id, first_name, last_name, email, role FROM users WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	err = r.DB.SelectContext(ctx, &out, r.DB.Rebind(q), args...)
	return out, err
}

// TeachersBySubject returns active teachers teaching subject with their
// hourly price. Price matching is left to the caller.
func (r *UserRepo) TeachersBySubject(ctx context.Context, subject string) ([]model.TeacherCandidate, error) {
	out := []model.TeacherCandidate{}
	err := r.DB.SelectContext(ctx, &out, `SELECT u.id, tp.hourly_price
		FROM users u
		JOIN teacher_profiles tp ON tp.user_id = u.id
		JOIN teacher_subjects ts ON ts.user_id = u.id
		WHERE u.role='teacher' AND u.is_active=1 AND ts.subject=?`, subject)
	return out, err
}

// TeacherProfile loads the teacher profile and subjects for userID.
func (r *UserRepo) TeacherProfile(ctx context.Context, userID uint64) (model.TeacherProfile, error) {
	var p model.TeacherProfile
	err := r.DB.GetContext(ctx, &p, `SELECT user_id, hourly_price, is_verified, payout_method, account_name,
			account_number, bank_name, wallet_provider, phone_number, payout_recipient_id, payout_status, payout_error
		FROM teacher_profiles WHERE user_id=? LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Subjects = []string{}
	err = r.DB.SelectContext(ctx, &p.Subjects, "SELECT subject FROM teacher_subjects WHERE user_id=? ORDER BY subject", userID)
	return p, err
}

// SavePaymentInfo stores the payout account. When the teacher has no
// recipient id yet, the row is marked as registering so that an interrupted
// registration is visible and can be retried.
func (r *UserRepo) SavePaymentInfo(ctx context.Context, teacherID uint64, info model.PaymentInfo) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE teacher_profiles SET payout_method=?,
			account_name=COALESCE(NULLIF(?, ''), account_name),
			account_number=COALESCE(NULLIF(?, ''), account_number),
			bank_name=COALESCE(NULLIF(?, ''), bank_name),
			wallet_provider=COALESCE(NULLIF(?, ''), wallet_provider),
			phone_number=COALESCE(NULLIF(?, ''), phone_number),
			payout_status=IF(payout_recipient_id IS NULL, 'registering', payout_status),
			payout_error=NULL
		WHERE user_id=?`,
		info.Method, info.AccountName, info.AccountNumber, info.BankName, info.WalletProvider, info.PhoneNumber, teacherID)
	ok, err := applied(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// SetPayoutRecipient completes registration with the gateway's recipient id.
func (r *UserRepo) SetPayoutRecipient(ctx context.Context, teacherID uint64, recipientID string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE teacher_profiles SET payout_recipient_id=?, payout_status='registered',
		payout_error=NULL WHERE user_id=?`, recipientID, teacherID)
	return err
}

// MarkPayoutFailed leaves registration in a retryable failed state.
func (r *UserRepo) MarkPayoutFailed(ctx context.Context, teacherID uint64, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	_, err := r.DB.ExecContext(ctx, `UPDATE teacher_profiles SET payout_status='failed', payout_error=?
		WHERE user_id=? AND payout_recipient_id IS NULL`, reason, teacherID)
	return err
}
