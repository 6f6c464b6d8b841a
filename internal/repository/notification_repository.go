package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// NotificationRepo writes the notification audit trail.
type NotificationRepo struct{ DB *sqlx.DB }

func NewNotificationRepo(db *sqlx.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// Create appends an audit record and sets its ID.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO notifications
		(sender_id, recipient_id, type, lesson_id, title, message) VALUES (?,?,?,?,?,?)`,
		n.SenderID, n.RecipientID, n.Type, n.LessonID, n.Title, n.Message)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListForRecipient returns a user's most recent notifications.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID uint64, limit, offset int) ([]model.Notification, error) {
	out := []model.Notification{}
	err := r.DB.SelectContext(ctx, &out, `SELECT id, sender_id, recipient_id, type, lesson_id, title, message, created_at
		FROM notifications WHERE recipient_id=? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		recipientID, limit, offset)
	return out, err
}
