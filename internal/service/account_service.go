package service

import (
	"context"
	"strings"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// AccountService serves the caller's own profile, device registration and
// notification inbox.
type AccountService struct {
	users         UserStore
	notifications NotificationStore
}

func NewAccountService(users UserStore, notifications NotificationStore) *AccountService {
	return &AccountService{users: users, notifications: notifications}
}

// Me returns the caller's user record.
func (s *AccountService) Me(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return u, storeErr("user", err)
	}
	return u, nil
}

// RegisterDevice stores the push token and preferred language. An empty
// token unregisters the device.
func (s *AccountService) RegisterDevice(ctx context.Context, userID uint64, pushToken, lang string) error {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "en"
	}
	if lang != "en" && lang != "ar" {
		return errValidation("language must be en or ar")
	}
	var tok *string
	if t := strings.TrimSpace(pushToken); t != "" {
		tok = &t
	}
	if err := s.users.SetDevice(ctx, userID, tok, lang); err != nil {
		return errInternal("register device", err)
	}
	return nil
}

// Notifications lists the caller's notification history, newest first.
func (s *AccountService) Notifications(ctx context.Context, userID uint64, page, limit int) ([]model.Notification, error) {
	limit, offset := pageBounds(page, limit)
	out, err := s.notifications.ListForRecipient(ctx, userID, limit, offset)
	if err != nil {
		return nil, errInternal("list notifications", err)
	}
	return out, nil
}
