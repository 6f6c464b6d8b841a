// Package notify routes lesson notifications to users. Every notification
// gets an audit record; delivery goes through FCM push with an email
// fallback, either inline or through the RabbitMQ dispatch queue.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/queue"
)

// UserLookup loads the recipient's routing fields.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// AuditStore persists the notification trail.
type AuditStore interface {
	Create(ctx context.Context, n *model.Notification) error
}

// Publisher hands events to the dispatch queue.
type Publisher interface {
	Publish(ctx context.Context, ev queue.NotificationEvent) error
}

// Pusher sends a push notification to one device.
type Pusher interface {
	Push(ctx context.Context, token, title, body string, data map[string]string) error
}

// Mailer sends a plain text email.
type Mailer interface {
	Mail(ctx context.Context, toName, toAddress, subject, body string) error
}

// Dispatcher implements the notification pipeline. publisher, push and mail
// are optional; a nil publisher means inline delivery.
type Dispatcher struct {
	users     UserLookup
	audit     AuditStore
	publisher Publisher
	push      Pusher
	mail      Mailer
	logger    *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithPublisher(p Publisher) Option { return func(d *Dispatcher) { d.publisher = p } }
func WithPusher(p Pusher) Option       { return func(d *Dispatcher) { d.push = p } }
func WithMailer(m Mailer) Option       { return func(d *Dispatcher) { d.mail = m } }

func NewDispatcher(users UserLookup, audit AuditStore, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{users: users, audit: audit, logger: logger}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Notify localizes msg for its recipient, records it and delivers it. The
// audit record is written before delivery and independently of its outcome.
func (d *Dispatcher) Notify(ctx context.Context, msg model.NotificationMessage) error {
	u, err := d.users.GetByID(ctx, msg.RecipientID)
	if err != nil {
		return fmt.Errorf("load recipient %d: %w", msg.RecipientID, err)
	}
	lang := u.Language
	if lang != "ar" {
		lang = "en"
	}
	title, body := msg.Title.In(lang), msg.Body.In(lang)

	rec := &model.Notification{
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Type:        msg.Type,
		Title:       title,
		Message:     body,
	}
	if msg.LessonID != 0 {
		id := msg.LessonID
		rec.LessonID = &id
	}
	if err := d.audit.Create(ctx, rec); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	data := map[string]string{"type": msg.Type, "preferredLang": lang}
	if msg.LessonID != 0 {
		data["lessonId"] = strconv.FormatUint(msg.LessonID, 10)
	}
	for k, v := range msg.Data {
		data[k] = v
	}
	ev := queue.NotificationEvent{
		NotificationID: rec.ID,
		RecipientID:    u.ID,
		Type:           msg.Type,
		LessonID:       msg.LessonID,
		Title:          title,
		Body:           body,
		Data:           data,
		Email:          u.Email,
		Name:           u.FullName(),
		Language:       lang,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if u.PushToken != nil {
		ev.PushToken = *u.PushToken
	}

	if d.publisher != nil {
		err := d.publisher.Publish(ctx, ev)
		if err == nil {
			return nil
		}
		d.logger.Warn("notification queue unavailable, delivering inline",
			zap.Uint64("notification_id", rec.ID), zap.Error(err))
	}
	return d.Deliver(ctx, ev)
}

// Deliver sends ev by push, falling back to email when the recipient has no
// device or the push fails. It returns an error only when no channel
// delivered the message.
func (d *Dispatcher) Deliver(ctx context.Context, ev queue.NotificationEvent) error {
	var pushErr error
	if d.push != nil && ev.PushToken != "" {
		pushErr = d.push.Push(ctx, ev.PushToken, ev.Title, ev.Body, ev.Data)
		if pushErr == nil {
			return nil
		}
		d.logger.Warn("push delivery failed", zap.Uint64("recipient_id", ev.RecipientID), zap.Error(pushErr))
	}

	if d.mail != nil && ev.Email != "" {
		err := d.mail.Mail(ctx, ev.Name, ev.Email, ev.Title, ev.Body)
		if err == nil {
			return nil
		}
		d.logger.Warn("email delivery failed", zap.Uint64("recipient_id", ev.RecipientID), zap.Error(err))
		return err
	}

	if pushErr != nil {
		return pushErr
	}
	d.logger.Debug("no delivery channel for recipient", zap.Uint64("recipient_id", ev.RecipientID),
		zap.String("type", ev.Type))
	return nil
}
